package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/presensia/presensia-core/config"
	"github.com/presensia/presensia-core/internal/app"
	"github.com/presensia/presensia-core/internal/bootstrap"
	"github.com/presensia/presensia-core/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("development", "info").Error(logging.TagHTTP, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error(logging.TagHTTP, "failed to start", logging.Err(err))
		os.Exit(1)
	}
	a.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           bootstrap.BuildRouter(bootstrap.RouterDeps{ServiceName: "presensia-api", Version: cfg.App.Version, App: a}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(logging.TagHTTP, "listening", "addr", srv.Addr, "backend", cfg.Gateway.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(logging.TagHTTP, "server failed", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(logging.TagHTTP, "shutdown failed", logging.Err(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error(logging.TagHTTP, "closing backends failed", logging.Err(err))
	}
}
