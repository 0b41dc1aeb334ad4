package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexuscomply/backend/internal/api/routes"
	"github.com/nexuscomply/backend/internal/config"
	"github.com/nexuscomply/backend/internal/database"
	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/scheduler"
	"github.com/nexuscomply/backend/internal/server"
	"github.com/nexuscomply/backend/internal/services"
	"github.com/nexuscomply/backend/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().WithError(err).Fatal("load config")
	}

	// Log to both stdout and a rotated file
	logger.Init(cfg.Debug, logger.RotatingWriter(cfg.LogDir, "nexuscomply.log"))

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Log().WithError(err).Fatal("migrate database")
	}

	svc := services.New(db, cfg)

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if len(os.Args) != 4 {
			logger.Log().Fatalf("Usage: %s reset-password <email> <new-password>", os.Args[0])
		}
		if err := svc.Auth.ResetPassword(context.Background(), os.Args[2], os.Args[3]); err != nil {
			logger.Log().WithError(err).Fatal("reset password")
		}
		logger.Log().WithField("email", os.Args[2]).Info("password updated")
		return
	}

	logger.Log().WithField("version", version.Full()).Infof("starting %s backend", version.Name)

	sched, err := scheduler.New(svc.Issues, svc.Notifications, cfg.OverdueSweepSchedule)
	if err != nil {
		logger.Log().WithError(err).Fatal("configure scheduler")
	}

	router := server.NewRouter(cfg)
	routes.Register(router, db, svc)

	srv := server.New(router, cfg)
	srv.OnShutdown(sched.Stop)
	srv.OnShutdown(func(context.Context) { svc.Notifications.Wait() })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	logger.Log().Info("server stopped")
}
