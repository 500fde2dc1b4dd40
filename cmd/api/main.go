package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/config"
	appHTTP "github.com/sobat-hris/sobat-backend-go/internal/handler/http"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/cron"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/database"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/email"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/idempotency"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/jwt"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/pdf"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/sse"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/storage"
	"github.com/sobat-hris/sobat-backend-go/internal/repository/postgresql"
	serviceAuth "github.com/sobat-hris/sobat-backend-go/internal/service/auth"
	"github.com/sobat-hris/sobat-backend-go/internal/service/file"
	notificationService "github.com/sobat-hris/sobat-backend-go/internal/service/notification"
	policyService "github.com/sobat-hris/sobat-backend-go/internal/service/policy"
	requestService "github.com/sobat-hris/sobat-backend-go/internal/service/request"
)

const appName = "Sobat HRIS"

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	userRepo := postgresql.NewUserRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	orgRepo := postgresql.NewOrganizationRepository(db)
	requestRepo := postgresql.NewRequestRepository(db)
	approvalRepo := postgresql.NewApprovalRepository(db)
	policyRepo := postgresql.NewPolicyRepository(db)
	overtimeRepo := postgresql.NewOvertimeRepository(db)
	notificationRepo := postgresql.NewNotificationRepository(db)

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration)
	if err != nil {
		return fmt.Errorf("init jwt: %w", err)
	}

	var fileStorage storage.FileStorage
	switch cfg.Storage.Type {
	case "local":
		fileStorage, err = storage.NewLocalStorage(cfg.Storage.BasePath, cfg.Storage.BaseURL)
		if err != nil {
			return fmt.Errorf("init local storage: %w", err)
		}
	case "minio":
		fileStorage, err = storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("init minio storage: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	emailService, err := email.NewEmailService(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("init email: %w", err)
	}

	hub := sse.NewHub()
	defer hub.Close()

	notifService := notificationService.NewNotificationService(notificationRepo, hub, emailService, notificationService.Config{
		BatchSize:     cfg.Notification.BatchSize,
		FlushInterval: cfg.Notification.FlushInterval,
		WorkerCount:   cfg.Notification.WorkerCount,
		QueueSize:     cfg.Notification.QueueSize,
	})
	defer notifService.Stop()

	renderer, err := pdf.NewRenderer()
	if err != nil {
		return fmt.Errorf("init pdf renderer: %w", err)
	}

	fileService := file.NewFileService(fileStorage)
	authService := serviceAuth.NewAuthService(userRepo, JWTService)
	policySvc := policyService.NewPolicyService(policyRepo)
	requestSvc := requestService.NewRequestService(
		postgresql.NewTransactor(db),
		requestRepo,
		approvalRepo,
		employeeRepo,
		orgRepo,
		policySvc,
		overtimeRepo,
		fileService,
		notifService,
		renderer,
		appName,
	)

	// A nil store leaves Idempotency-Key headers unhandled.
	var idemStore idempotency.Store
	if cfg.Redis.Addr != "" {
		rdb, err := idempotency.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		idemStore = idempotency.NewRedisStore(rdb)
	} else {
		slog.Warn("REDIS_ADDR not set, idempotency keys are ignored")
	}

	router := appHTTP.NewRouter(cfg.App, JWTService, idemStore, cfg.Redis.Idempotency, appHTTP.Handlers{
		Auth:         appHTTP.NewAuthHandler(authService),
		Request:      appHTTP.NewRequestHandler(requestSvc),
		Policy:       appHTTP.NewPolicyHandler(policySvc),
		Notification: appHTTP.NewNotificationHandler(notifService, JWTService),
		File:         appHTTP.NewFileHandler(fileService),
	})

	if cfg.Reconciler.Enabled {
		scheduler := cron.NewScheduler(logger)
		cron.NewReconcileJobs(requestSvc, logger).RegisterJobs(scheduler, cfg.Reconciler.Interval)
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Open notification streams never go idle on their own.
	srv.RegisterOnShutdown(hub.Close)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", srv.Addr, "env", cfg.App.Env, "version", cfg.App.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
