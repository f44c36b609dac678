package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/internal/session"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the resolved session.
const ContextSessionKey = "currentSession"

// Session resolves the session cookie into a session handle for the request,
// lazily creating an anonymous session so flash messages work before login.
func Session(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(manager.CookieName()); err == nil && id != "" {
			if found, err := manager.Fetch(c.Request.Context(), id); err == nil {
				sess = found
				_ = sess.Touch(c.Request.Context())
			}
		}

		if sess == nil {
			created, err := manager.Create(c.Request.Context())
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "session store unavailable"))
				c.Abort()
				return
			}
			sess = created
			WriteCookie(c, manager, sess.ID)
		}

		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// WriteCookie sets the session cookie on the response.
func WriteCookie(c *gin.Context, manager *session.Manager, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(manager.CookieName(), id, int(manager.TTL().Seconds()), "/", "", manager.Secure(), true)
}

// CurrentSession returns the session attached to the request, or nil.
func CurrentSession(c *gin.Context) *session.Session {
	if v, exists := c.Get(ContextSessionKey); exists {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return nil
}

// CurrentPrincipal returns the authenticated principal, or nil.
func CurrentPrincipal(c *gin.Context) *models.Principal {
	if sess := CurrentSession(c); sess != nil {
		return sess.Principal()
	}
	return nil
}
