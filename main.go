package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	apihandlers "github.com/linesmerrill/pocket-infra-api/api/handlers"
	"github.com/linesmerrill/pocket-infra-api/api/scheduler"
	"github.com/linesmerrill/pocket-infra-api/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	a := apihandlers.App{}
	a.Config = *config.New()
	defer func() { _ = zap.L().Sync() }()

	if a.Config.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         a.Config.SentryDSN,
			Environment: a.Config.Env,
		}); err != nil {
			zap.S().Warnw("failed to initialize sentry", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// initialize database and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Fatalw("failed to initialize pocket-infra-api", "error", err)
	}
	a.StartJanitors(ctx)

	if a.Config.DigestEnabled() {
		digest := scheduler.NewScheduler(&a.Config, a.Reports,
			scheduler.NewSendgridMailer(a.Config.SendgridAPIKey, a.Config.DigestFromEmail))
		if err := digest.Start(); err != nil {
			zap.S().Errorw("moderation digest disabled", "error", err)
		} else {
			defer digest.Stop()
		}
	} else {
		zap.S().Info("SENDGRID_API_KEY or ADMIN_EMAIL not set, moderation digest disabled")
	}

	accessLog := zap.NewStdLog(zap.L()).Writer()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           handlers.CombinedLoggingHandler(accessLog, a.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("pocket-infra-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
			"emulator", a.Config.Emulator,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down pocket-infra-api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("graceful shutdown failed", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		zap.S().Errorw("failed to disconnect from database", "error", err)
	}
}
