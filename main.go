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

	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api/handlers"
	"github.com/linesmerrill/swachhsnap-api/api/scheduler"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := handlers.App{}
	a.Config = *config.New()

	// initialize database and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	if admin := a.Config.Admin; admin.Email != "" {
		created, err := a.Provider.EnsureAdmin(ctx, admin.Email, admin.Password, admin.Name)
		if err != nil {
			zap.S().Fatalw("failed to create bootstrap admin", "email", admin.Email, "error", err)
		}
		if created {
			zap.S().Infow("created bootstrap admin", "email", admin.Email)
		}
	}

	sched := scheduler.NewScheduler(&a.Config, databases.NewComplaintDatabase(a.DB), databases.NewUserDatabase(a.DB))
	if err := sched.Start(); err != nil {
		zap.S().Errorw("digest scheduler not started", "error", err)
	} else {
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server stopped", "error", err)
		}
	}()
	zap.S().Infow("swachhsnap-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
	)

	<-ctx.Done()
	zap.S().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("failed to shut down cleanly", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		zap.S().Errorw("failed to close connections", "error", err)
	}
}
