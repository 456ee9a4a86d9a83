package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backupwiz/internal/blobstore"
	"backupwiz/internal/config"
	cronrunner "backupwiz/internal/cron"
	"backupwiz/internal/db"
	"backupwiz/internal/handler"
	"backupwiz/internal/health"
	"backupwiz/internal/logger"
	"backupwiz/internal/notify"
	gormrepository "backupwiz/internal/repository/gorm"
	"backupwiz/internal/retry"
	"backupwiz/internal/secret"
	syncengine "backupwiz/internal/sync"
)

func main() {
	cfgPath := os.Getenv("BW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	secrets, err := secret.NewBox(cfg.Secrets.Key)
	if err != nil {
		logger.Fatal("secret key invalid", zap.Error(err))
	}

	blobs, err := blobstore.New(cfg.Blob)
	if err != nil {
		logger.Fatal("blobstore init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Fatal("blob bucket init failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	dialer := &syncengine.TunnelDialer{
		Secrets: secrets,
		Source:  cfg.Source,
		Logger:  logger,
	}
	engineSvc := &syncengine.Engine{
		Store:  store,
		Dial:   dialer,
		Blobs:  blobs,
		Logger: logger,
		Config: syncengine.Config{
			BatchSize:           cfg.Sync.BatchSize,
			CycleTimeout:        cfg.Sync.CycleTimeout,
			DivergenceScanEvery: cfg.Sync.DivergenceScanEvery,
			Retry: retry.Policy{
				MaxAttempts:     cfg.Sync.RetryMaxAttempts,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
			},
		},
	}

	var notifier notify.Notifier
	if cfg.Alert.WebhookURL != "" {
		notifier = &notify.WebhookNotifier{
			URL:  cfg.Alert.WebhookURL,
			HTTP: &http.Client{Timeout: cfg.Alert.Timeout},
		}
	}
	monitor := &health.Monitor{
		Store:       store,
		Notifier:    notifier,
		Logger:      logger,
		AlertWindow: cfg.Health.AlertWindow,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	syncHandler := &handler.SyncHandler{Engine: engineSvc, Store: store, Logger: logger}
	syncHandler.Register(engine)
	tenantHandler := &handler.TenantHandler{
		Store:           store,
		Secrets:         secrets,
		Logger:          logger,
		DefaultInterval: cfg.Sync.DefaultInterval,
	}
	tenantHandler.Register(engine)
	reportHandler := &handler.ReportHandler{Monitor: monitor, Logger: logger}
	reportHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.SyncScan, func(ctx context.Context) {
			result, err := engineSvc.SyncAll(ctx, syncengine.Options{})
			if err != nil {
				logger.Warn("cron sync scan failed", zap.Error(err))
				return
			}
			if len(result.Tenants) > 0 {
				logger.Info("cron sync scan done",
					zap.Int("tenants", len(result.Tenants)),
					zap.Int("errors", result.Errors),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register sync scan failed", zap.Error(err))
		}
	}
	if cfg.Cron.Enabled && cfg.Health.Enabled {
		_, err = cronRunner.Add(cfg.Cron.HealthCheck, func(ctx context.Context) {
			report, err := monitor.Run(ctx)
			if err != nil {
				logger.Warn("cron health check failed", zap.Error(err))
				return
			}
			if report.Level != health.LevelOK {
				logger.Warn("health degraded", zap.String("level", report.Level))
			}
		})
		if err != nil {
			logger.Warn("cron register health check failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
