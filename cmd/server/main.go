package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GiorgiUbiria/investment_wallet/configs"
	"github.com/GiorgiUbiria/investment_wallet/internal/accrual"
	"github.com/GiorgiUbiria/investment_wallet/internal/auth"
	"github.com/GiorgiUbiria/investment_wallet/internal/export"
	"github.com/GiorgiUbiria/investment_wallet/internal/gateway"
	"github.com/GiorgiUbiria/investment_wallet/internal/handlers"
	"github.com/GiorgiUbiria/investment_wallet/internal/ledger"
	"github.com/GiorgiUbiria/investment_wallet/internal/logger"
	"github.com/GiorgiUbiria/investment_wallet/internal/otp"
	"github.com/GiorgiUbiria/investment_wallet/internal/routes"
	"github.com/GiorgiUbiria/investment_wallet/internal/seed"
	"github.com/GiorgiUbiria/investment_wallet/internal/store"
	"github.com/GiorgiUbiria/investment_wallet/internal/verifier"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "./configs", "directory holding config.yaml")
	flag.Parse()

	cfg, err := configs.LoadConfig(*configDir)
	if err != nil {
		logger.Init("production")
		logger.Log.Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(cfg.Env)
	defer logger.Log.Sync()

	db, err := store.NewDB(cfg.DB.Driver, cfg.DB.DSN, cfg.Env == "development")
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := store.DBMigrate(db); err != nil {
		logger.Log.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	svc := ledger.NewService(db, ledger.WithLocation(cfg.Location()))
	if _, err := svc.ReleaseOrphanedWithdrawals(ctx); err != nil {
		logger.Log.Fatal("failed to release pending withdrawals", zap.Error(err))
	}
	codes := otp.NewStore(db, cfg.OTP.TTL, nil)
	gw := gateway.New(gateway.Config{
		UpiID:       cfg.Payment.UpiID,
		PayeeName:   cfg.Payment.PayeeName,
		VerifyAfter: cfg.Payment.VerifyAfter,
	}, nil)
	watcher := verifier.New(gw, verifier.Config{
		Interval: cfg.Payment.PollInterval,
		Timeout:  cfg.Payment.Timeout,
	})
	tokens := auth.NewIssuer(cfg.JWT.SECRET, cfg.JWT.TTL, nil)

	var uploader export.Uploader
	if cfg.Export.Bucket != "" {
		up, err := export.NewS3Uploader(ctx, export.S3Config{
			Bucket:          cfg.Export.Bucket,
			Endpoint:        cfg.Export.Endpoint,
			Region:          cfg.Export.Region,
			AccessKeyID:     cfg.Export.AccessKeyID,
			SecretAccessKey: cfg.Export.SecretAccessKey,
			PresignTTL:      cfg.Export.PresignTTL,
		})
		if err != nil {
			logger.Log.Fatal("failed to configure export storage", zap.Error(err))
		}
		uploader = up
	}
	exporter := export.NewExporter(svc, uploader, nil)

	if cfg.Seed.Enabled {
		if err := seed.Run(ctx, svc, cfg.Admin.LoginPhone, cfg.Admin.LoginCode); err != nil {
			logger.Log.Fatal("seed failed", zap.Error(err))
		}
	}

	scheduler := accrual.NewScheduler(svc, cfg.Accrual.Interval)
	scheduler.Start(ctx)

	h := handlers.New(handlers.Deps{
		Ledger:   svc,
		OTP:      codes,
		Payments: gw,
		Watcher:  watcher,
		Exporter: exporter,
		Tokens:   tokens,
	}, handlers.Config{
		AdminPassword:   cfg.Admin.Password,
		AdminLoginPhone: cfg.Admin.LoginPhone,
		AdminLoginCode:  cfg.Admin.LoginCode,
		ExposeCodes:     cfg.OTP.ExposeCodes,
		DBDialect:       db.Dialector.Name(),
	})
	router := routes.NewRoutes(h, tokens)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	<-sig
	logger.Log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := watcher.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("verifier shutdown incomplete", zap.Error(err))
	}
	stop()
	scheduler.Wait()

	store.Close(db)
	logger.Log.Info("server stopped")
}
