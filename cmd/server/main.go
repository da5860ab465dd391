package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community_activity_backend/internal/app"
	"community_activity_backend/internal/domain/channel"
	"community_activity_backend/internal/infra/config"
	idb "community_activity_backend/internal/infra/database"
	"community_activity_backend/internal/infra/email"
	"community_activity_backend/internal/infra/httpapi"
	"community_activity_backend/internal/infra/logger"
	"community_activity_backend/internal/infra/push"
	"community_activity_backend/internal/infra/realtime"
	"community_activity_backend/internal/infra/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Log
	log.WithFields(map[string]any{
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
	}).Info("Community activity backend starting")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL, idb.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	accountRepo := idb.NewPostgresAccountRepository(db)
	activityRepo := idb.NewPostgresActivityRepository(db)
	attendanceRepo := idb.NewPostgresAttendanceRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	emailSender := email.NewSMTPSender(cfg)

	var pushSender channel.PushSender = push.Disabled{}
	if cfg.FCMCredentialsFile != "" {
		fcm, err := push.NewFCMSender(context.Background(), cfg.FCMCredentialsFile)
		if err != nil {
			log.Fatalf("Could not initialize FCM client: %v", err)
		}
		pushSender = fcm
		log.Info("FCM push delivery enabled")
	} else {
		log.Warn("FCM_CREDENTIALS_FILE not set, push delivery disabled")
	}

	hub := realtime.NewHub(log)

	authService := app.NewAuthService(accountRepo, emailSender, log, cfg.PublicBaseURL)
	taskService := app.NewTaskService(activityRepo, log)
	attendanceService := app.NewAttendanceService(attendanceRepo, activityRepo, accountRepo, emailSender, log)
	notificationService := app.NewNotificationConfigService(notificationRepo, activityRepo, log)
	adminService := app.NewAdminService(activityRepo, attendanceRepo, accountRepo, emailSender, hub, log)
	dispatchService := app.NewDispatchService(
		notificationRepo, activityRepo, accountRepo, attendanceRepo,
		emailSender, pushSender, hub, log,
		app.DispatchOptions{
			Location:         cfg.Location(),
			BatchSize:        cfg.DispatchBatchSize,
			BatchPause:       cfg.DispatchBatchPause,
			EmailMaxAttempts: cfg.EmailMaxAttempts,
			EmailRetryBase:   cfg.EmailRetryBase,
		})

	dispatchScheduler := scheduler.NewDispatchScheduler(dispatchService, log, cfg.CronSpecDispatch, cfg.Location())
	if err := dispatchScheduler.Start(); err != nil {
		log.Fatalf("Could not start dispatch scheduler: %v", err)
	}

	apiServer := httpapi.NewServer(
		authService, taskService, attendanceService, notificationService,
		adminService, dispatchService, hub, log, cfg.JWTSecret)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	dispatchScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("Application shut down gracefully")
}
