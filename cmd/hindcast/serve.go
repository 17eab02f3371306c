package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pwelter/hindcast/internal/api"
	"github.com/pwelter/hindcast/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hindcast API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	runner, m, err := buildRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	log.Info("starting hindcast server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Provider.Name),
		zap.String("cache", cfg.Cache.Driver),
	)

	server, err := api.NewServer(api.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		APIKey:  cfg.Server.APIKey,
		MaxJobs: cfg.Server.MaxJobs,
		JobTTL:  time.Duration(cfg.Server.JobTTLHours) * time.Hour,
	}, api.Dependencies{
		Runner:  runner,
		Metrics: m,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down hindcast server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
