package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/digital-library-api/internal/models"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/response"
)

// LoginPath is where guard failures redirect to.
const LoginPath = "/login"

const (
	msgLoginRequired = "Please login to continue."
	msgAdminOnly     = "Access denied. Admin privileges required."
	msgStudentOnly   = "Access denied. Please login as a student."
)

// RequireRole guards a route group: anonymous or wrong-role requests are
// redirected to the login entry point with a one-shot flash message, before
// any handler body runs.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := CurrentSession(c)
		if sess == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal := sess.Principal()
		if principal == nil {
			_ = sess.FlashError(c.Request.Context(), msgLoginRequired)
			response.Redirect(c, LoginPath)
			c.Abort()
			return
		}

		if principal.Role != role || !principal.Role.Valid() {
			_ = sess.FlashError(c.Request.Context(), denialMessage(role))
			response.Redirect(c, LoginPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

func denialMessage(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return msgAdminOnly
	case models.RoleStudent:
		return msgStudentOnly
	default:
		return msgLoginRequired
	}
}
