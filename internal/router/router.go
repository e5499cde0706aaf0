// Package router assembles the gin engine serving the ID-card admin API.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/handler"
	"github.com/noah-isme/sma-idcard-api/internal/middleware"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/pkg/config"
	"github.com/noah-isme/sma-idcard-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-idcard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-idcard-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler mounted by New.
type Handlers struct {
	Auth      *handler.AuthHandler
	Settings  *handler.SettingsHandler
	School    *handler.SchoolHandler
	Student   *handler.StudentHandler
	Card      *handler.CardHandler
	CardBatch *handler.CardBatchHandler
	Asset     *handler.AssetHandler
	Export    *handler.ExportHandler
	Health    *handler.HealthHandler
}

// Options carries the cross-cutting dependencies of the middleware chain.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        middleware.RequestObserver
}

// New builds the engine and registers all routes under opts.APIPrefix.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Health.Prometheus)
	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.Audit, opts.Logger, action, resource)
	}
	authenticated := middleware.JWT(opts.Tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	api := r.Group(opts.APIPrefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", authenticated, h.Auth.Logout)
		authGroup.POST("/change-password", authenticated, h.Auth.ChangePassword)
		authGroup.GET("/me", authenticated, h.Auth.Me)
	}

	// Signed links are the credential here.
	api.GET("/card-batches/download/:token", h.CardBatch.Download)

	secured := api.Group("")
	secured.Use(authenticated)

	settings := secured.Group("/settings")
	{
		settings.GET("", h.Settings.Get)
		settings.PUT("", h.Settings.Update)
	}

	schools := secured.Group("/schools")
	{
		schools.GET("", h.School.List)
		schools.GET("/:id", h.School.Get)
		schools.POST("", adminOnly, audit(models.AuditActionCreate, "school"), h.School.Create)
		schools.PUT("/:id", adminOnly, audit(models.AuditActionUpdate, "school"), h.School.Update)
		schools.DELETE("/:id", adminOnly, audit(models.AuditActionDelete, "school"), h.School.Delete)
		schools.PUT("/:id/card-layout", adminOnly, audit(models.AuditActionUpdate, "school_card_layout"), h.School.UpdateCardLayout)
		schools.POST("/:id/logo", adminOnly, audit(models.AuditActionUpload, "school_logo"), h.Asset.UploadLogo)
		schools.POST("/:id/design", adminOnly, audit(models.AuditActionUpload, "school_design"), h.Asset.UploadDesign)
		schools.POST("/:id/card-preview", h.Card.Preview)
		schools.POST("/:id/card-batches", staff, audit(models.AuditActionCreate, "card_batch"), h.CardBatch.Create)
	}

	secured.GET("/card-batches/:id", staff, h.CardBatch.Get)

	students := secured.Group("/students")
	{
		students.GET("/export", h.Export.Students)
		students.GET("/:id/card", h.Card.StudentCard)
		students.GET("/:id/card.pdf", h.Card.StudentCardPDF)

		managed := students.Group("", staff)
		managed.GET("", h.Student.List)
		managed.POST("", audit(models.AuditActionCreate, "student"), h.Student.Create)
		managed.GET("/:id", h.Student.Get)
		managed.PUT("/:id", audit(models.AuditActionUpdate, "student"), h.Student.Update)
		managed.DELETE("/:id", audit(models.AuditActionDelete, "student"), h.Student.Delete)
		managed.POST("/:id/photo", audit(models.AuditActionUpload, "student_photo"), h.Asset.UploadStudentPhoto)
		managed.PATCH("/:id/verify", audit(models.AuditActionUpdate, "student_verification"), h.Student.Verify)
	}

	return r
}
