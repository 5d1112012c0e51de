package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/config"
	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	"github.com/Vast-Academy/account-android-app-backend/internal/database"
	"github.com/Vast-Academy/account-android-app-backend/internal/retry"
	"github.com/Vast-Academy/account-android-app-backend/internal/service"
	"github.com/Vast-Academy/account-android-app-backend/internal/tracing"
	"github.com/Vast-Academy/account-android-app-backend/pkg/identity"
	"github.com/Vast-Academy/account-android-app-backend/pkg/push"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("accountd %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting accountd")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	verifier := identity.NewClient(cfg.Auth.VerifyURL, cfg.Auth.APIKey, &http.Client{
		Timeout: time.Duration(cfg.Auth.TimeoutSec) * time.Second,
	})
	pushClient := push.NewClient(cfg.Push.GatewayURL, cfg.Push.APIKey, &http.Client{
		Timeout: time.Duration(cfg.Push.TimeoutSec) * time.Second,
	})

	pushTimeout := time.Duration(cfg.Push.TimeoutSec) * time.Second

	ledgerService := service.NewLedgerService(db, logger)
	claimService := service.NewClaimService(db, logger)
	deliveryService := service.NewDeliveryService(db, pushClient, pushTimeout, logger)
	profileService := service.NewProfileService(db, ledgerService, logger)

	sweepInterval := time.Duration(cfg.Server.ExpirySweepIntervalMin) * time.Minute
	scheduler := service.NewExpiryScheduler(db, sweepInterval, cfg.RetentionDays, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	monitor := service.NewDeliveryMonitor(db,
		time.Duration(cfg.Server.StaleCheckIntervalMin)*time.Minute,
		time.Duration(cfg.Server.StaleThresholdMin)*time.Minute,
		logger)
	go monitor.Start(ctx)
	defer monitor.Stop()

	server := NewServer(cfg, profileService, claimService, deliveryService, verifier, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
