// Package main runs the assessment platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campfire-hq/backend/config"
	"github.com/campfire-hq/backend/internal/analytics"
	"github.com/campfire-hq/backend/internal/auth"
	"github.com/campfire-hq/backend/internal/campaigns"
	"github.com/campfire-hq/backend/internal/emaillogs"
	"github.com/campfire-hq/backend/internal/identity"
	"github.com/campfire-hq/backend/internal/invitations"
	"github.com/campfire-hq/backend/internal/leads"
	"github.com/campfire-hq/backend/internal/mailer"
	"github.com/campfire-hq/backend/internal/middleware"
	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/internal/results"
	"github.com/campfire-hq/backend/internal/tenants"
	"github.com/campfire-hq/backend/internal/worker"
	"github.com/campfire-hq/backend/pkg/database"
	"github.com/campfire-hq/backend/pkg/queue"
	"github.com/campfire-hq/backend/pkg/redis"
	"github.com/campfire-hq/backend/pkg/response"
	"github.com/campfire-hq/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			LogosBucket:          cfg.AWS.LogosBucket,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	var idpClient *identity.Client
	var userSource identity.UserSource
	var orgMembership identity.OrgMembership
	var userMetadata identity.UserMetadata
	if cfg.Identity.BaseURL != "" {
		idpClient = identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey, logger)
		userSource = idpClient
		orgMembership = idpClient
		userMetadata = idpClient
	}

	// Identity and tenants
	profileRepo := identity.NewRepository(pool)
	tenantRepo := tenants.NewRepository(pool)
	resolver := identity.NewResolver(profileRepo, tenantRepo, userSource, orgMembership, userMetadata, logger)
	identityHandler := identity.NewHandler(resolver, profileRepo, logger)
	tenantHandler := tenants.NewHandler(tenantRepo, resolver, idpClient, s3Client, logger)

	// Email dispatch
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo)
	mail := mailer.New(cfg.Email, emailLogsRepo, logger)

	// Invitations
	invitationRepo := invitations.NewRepository(pool)
	invitationHandler := invitations.NewHandler(invitationRepo, tenantRepo, resolver, mail, cfg.App.PublicBaseURL, logger)

	// Campaigns
	campaignRepo := campaigns.NewRepository(pool)
	campaignHandler := campaigns.NewHandler(campaignRepo, invitationRepo, tenantRepo, resolver, profileRepo, mail, cfg.App.PublicBaseURL, logger)

	// Results and report rendering
	jobQueue := queue.NewQueue(rdb.Client, logger)
	resultRepo := results.NewRepository(pool)
	resultHandler := results.NewHandler(resultRepo, invitationRepo, resolver, jobQueue, s3Client, logger)
	reportProcessor := worker.NewReportProcessor(resultRepo, s3Client, jobQueue, cfg.Reports.RendererURL, logger)

	// Leads
	leadRepo := leads.NewRepository(pool)
	leadHandler := leads.NewHandler(leadRepo, rdb, logger)

	// Analytics
	analyticsHandler := analytics.NewHandler(pool, campaignRepo, resolver, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: lead capture, invitee assessment flow, campaign registration, shared reports
	router.POST("/leads", leadHandler.Create)
	router.GET("/invite/:code", invitationHandler.GetByCode)
	router.POST("/invite/:code/track", invitationHandler.Track)
	router.PUT("/invite/:code/metadata", invitationHandler.UpdateMetadata)
	router.POST("/campaigns/register", campaignHandler.Register)
	router.POST("/assessments/results", resultHandler.Create)
	router.GET("/share/:shareId", resultHandler.GetByShare)

	// Protected API (session token required)
	adminRole := string(models.RoleAdmin)
	managerRole := string(models.RoleManager)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Current user
		api.GET("/me", identityHandler.Me)
		api.PATCH("/me", identityHandler.UpdateMe)
		api.POST("/me/tenant", identityHandler.AutoAssignTenant)

		// Tenants
		api.GET("/tenants", tenantHandler.List)
		api.POST("/tenants", middleware.RequireRole(adminRole), tenantHandler.Create)
		api.GET("/tenants/:id", tenantHandler.Get)
		api.PATCH("/tenants/:id", middleware.RequireRole(adminRole), tenantHandler.Update)
		api.POST("/tenants/:id/logo", middleware.RequireRole(adminRole, managerRole), tenantHandler.UploadLogo)
		api.GET("/tenants/:id/members", identityHandler.ListTenantMembers)
		api.DELETE("/tenants/:id", middleware.RequireRole(adminRole), tenantHandler.Delete)

		// Invitations
		api.GET("/invitations", invitationHandler.List)
		api.POST("/invitations", middleware.RequireRole(adminRole, managerRole), invitationHandler.Create)
		api.GET("/invitations/:id", invitationHandler.Get)
		api.POST("/invitations/:id/send", middleware.RequireRole(adminRole, managerRole), invitationHandler.Send)
		api.POST("/invitations/:id/resend", middleware.RequireRole(adminRole, managerRole), invitationHandler.Resend)
		api.DELETE("/invitations/:id", middleware.RequireRole(adminRole, managerRole), invitationHandler.Delete)
		api.GET("/invitations/:id/emails", emailLogsHandler.ListByInvitation)

		// Campaigns
		api.GET("/campaigns", campaignHandler.List)
		api.POST("/campaigns", campaignHandler.Create)
		api.GET("/campaigns/:id", campaignHandler.Get)
		api.GET("/campaigns/:id/stats", campaignHandler.Stats)
		api.POST("/campaigns/:id/launch", middleware.RequireRole(adminRole, managerRole), campaignHandler.Launch)
		api.PATCH("/campaigns/:id/status", campaignHandler.UpdateStatus)
		api.DELETE("/campaigns/:id", middleware.RequireRole(adminRole, managerRole), campaignHandler.Delete)

		// Results
		api.GET("/results", resultHandler.List)
		api.GET("/results/:id", resultHandler.Get)
		api.GET("/results/:id/pdf", resultHandler.DownloadPDF)

		// Leads (admin review)
		api.GET("/leads", middleware.RequireRole(adminRole), leadHandler.List)

		// Dashboard
		api.GET("/analytics/overview", analyticsHandler.Overview)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process report render worker; the standalone cmd/worker binary is for
	// scaled-out deployments.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil && cfg.Reports.RendererURL != "" {
		go reportProcessor.Run(workerCtx)
		logger.Info("report worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
