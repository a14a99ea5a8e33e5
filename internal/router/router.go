package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/handler"
	"github.com/ShouryaBatra/homestead-careers-api/internal/middleware"
	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	"github.com/ShouryaBatra/homestead-careers-api/internal/repository"
	"github.com/ShouryaBatra/homestead-careers-api/internal/service"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/config"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/logger"
	corsmiddleware "github.com/ShouryaBatra/homestead-careers-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ShouryaBatra/homestead-careers-api/pkg/middleware/requestid"
)

// Dependencies carries everything the router needs to register routes.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	UserRepo *repository.UserRepository

	AuthService    *service.AuthService
	MetricsService *service.MetricsService

	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Postings     *handler.PostingHandler
	Applications *handler.ApplicationHandler
	Exports      *handler.ExportHandler
	Metrics      *handler.MetricsHandler
}

// New builds the gin engine with all middleware and routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.MetricsService))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.Metrics.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.Auth.Register)
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(deps.AuthService), deps.Auth.Logout)
		auth.GET("/me", middleware.JWT(deps.AuthService), deps.Auth.Me)
	}

	users := api.Group("/users", middleware.JWT(deps.AuthService))
	{
		users.GET("", middleware.RBAC(models.RoleAdmin), deps.Users.List)
		// Non-admins may only fetch themselves; the service enforces it.
		users.GET("/:id", deps.Users.Get)
	}

	postings := api.Group("/postings")
	{
		postings.GET("", middleware.OptionalJWT(deps.AuthService), deps.Postings.ListApproved)
		postings.GET("/mine", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleEmployer, models.RoleAdmin), deps.Postings.ListMine)
		postings.GET("/all", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleAdmin), deps.Postings.ListAll)
		postings.GET("/:id", middleware.OptionalJWT(deps.AuthService), deps.Postings.Get)
		postings.POST("", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleEmployer, models.RoleAdmin), deps.Postings.Create)
		postings.POST("/:id/approve", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleAdmin), deps.Postings.Approve)
		postings.DELETE("/:id", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleAdmin), deps.Postings.Delete)
	}

	applications := api.Group("/applications", middleware.JWT(deps.AuthService))
	{
		applications.POST("", middleware.RBAC(models.RoleStudent), deps.Applications.Submit)
		applications.GET("/mine", middleware.RBAC(models.RoleStudent), deps.Applications.ListMine)
		applications.GET("/review", middleware.RBAC(models.RoleEmployer, models.RoleAdmin), deps.Applications.ListForReview)
		applications.PATCH("/:id/status", middleware.RBAC(models.RoleEmployer, models.RoleAdmin), deps.Applications.SetStatus)
	}

	if deps.Exports != nil {
		exports := api.Group("/exports")
		{
			exports.POST("", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleAdmin), deps.Exports.Request)
			exports.GET("/:id", middleware.JWT(deps.AuthService), middleware.RBAC(models.RoleAdmin), deps.Exports.Get)
			// Download is token-authenticated; the audit trail records who fetched what.
			exports.GET("/download", middleware.Audit(deps.UserRepo, models.AuditActionExportDownload, "exports"), deps.Exports.Download)
		}
	}

	return r
}
