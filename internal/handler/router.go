package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/digital-library-api/internal/middleware"
	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/internal/service"
	"github.com/noah-isme/digital-library-api/internal/session"
	"github.com/noah-isme/digital-library-api/pkg/config"
	"github.com/noah-isme/digital-library-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/digital-library-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/digital-library-api/pkg/middleware/requestid"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *AuthHandler
	AdminBooks  *AdminBookHandler
	StudentBook *StudentBookHandler
	Metrics     *service.MetricsService
}

// NewRouter assembles the gin engine: ambient middleware, health endpoints,
// and the public, admin, and student route groups. Every route behind a role
// group passes the session guard before its handler runs.
func NewRouter(cfg *config.Config, logr *zap.Logger, sessions *session.Manager, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	root := r.Group(cfg.APIPrefix)
	root.Use(middleware.Session(sessions))

	root.GET("/", h.Auth.Home)
	root.GET("/login", h.Auth.LoginPage)
	root.POST("/login", h.Auth.Login)
	root.GET("/register", h.Auth.RegisterPage)
	root.POST("/register", h.Auth.Register)
	root.GET("/logout", h.Auth.Logout)

	admin := root.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/dashboard", h.AdminBooks.Dashboard)
	admin.GET("/books", h.AdminBooks.List)
	admin.GET("/books/new", h.AdminBooks.NewForm)
	admin.POST("/books/new", h.AdminBooks.Create)
	admin.GET("/books/:id/delete", h.AdminBooks.Delete)

	student := root.Group("/student", middleware.RequireRole(models.RoleStudent))
	student.GET("/dashboard", h.StudentBook.Dashboard)
	student.GET("/search", h.StudentBook.Search)
	student.GET("/books/:id", h.StudentBook.Detail)
	student.GET("/books/:id/download", h.StudentBook.Download)

	return r
}
