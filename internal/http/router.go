package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/installsight/backend/internal/classifier"
	"github.com/installsight/backend/internal/config"
	"github.com/installsight/backend/internal/db"
	"github.com/installsight/backend/internal/http/handlers"
	"github.com/installsight/backend/internal/http/middleware"

	_ "github.com/installsight/backend/docs"
)

func Router(cfg config.Config, store *db.Store, adapter classifier.Adapter, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      store,
		Classifier: adapter,
		Validator:  validator.New(),
		Logger:     logger,
		Config:     cfg,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/leads", h.LeadsList)
		api.GET("/leads/export", h.ExportLeads)
		api.GET("/leads/:id", h.LeadDetails)
		api.GET("/accounts", h.AccountsList)
		api.GET("/accounts/:id/gap-analysis", h.GapAnalysis)
		api.GET("/recommendations", h.Recommend)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/import", h.Import)
		admin.POST("/process", h.Process)
		admin.POST("/accounts/renormalize", h.AccountsRenormalize)
		admin.POST("/leads/:id/close", h.LeadClose)
		admin.GET("/debug/score", h.DebugScore)
		admin.POST("/debug/classify", h.DebugClassify)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
