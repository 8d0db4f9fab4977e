package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/p4cket/reqpad/packages/api"
	"github.com/p4cket/reqpad/packages/config"
	"github.com/p4cket/reqpad/packages/dispatch"
	"github.com/p4cket/reqpad/packages/guard"
	"github.com/p4cket/reqpad/packages/history"
	"github.com/p4cket/reqpad/packages/respcache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reqpad HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogger(cfg)

		g := guard.New(guard.WithAllowedPorts(cfg.AllowedPorts...))
		cache := respcache.New(
			respcache.WithTTL(time.Duration(cfg.CacheTTLSeconds)*time.Second),
			respcache.WithCapacity(cfg.CacheCapacity),
		)
		dispatcher := dispatch.New(g, cache, dispatch.WithPreviewCap(cfg.PreviewCapBytes))

		var hist *history.Log
		if cfg.HistoryPath != "" {
			hist, err = history.Open(cfg.HistoryPath)
			if err != nil {
				return fmt.Errorf("open history log: %w", err)
			}
			defer hist.Close()
		}

		if cfg.File != "" {
			if _, err := os.Stat(cfg.File); err == nil {
				stop, err := config.Watch(cfg.File, func(ports []int) {
					g.SetAllowedPorts(ports)
					slog.Info("allowed ports reloaded", "ports", ports)
				})
				if err != nil {
					slog.Warn("config watch unavailable", "error", err)
				} else {
					defer stop()
				}
			}
		}

		handler := api.NewServer(dispatcher, cache, api.Options{
			History:        hist,
			SendRPS:        cfg.SendRPS,
			MaxUploadBytes: cfg.MaxUploadBytes,
		})

		srv := &http.Server{
			Addr:              cfg.BindAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		color.Green("reqpad %s listening on http://%s", version, cfg.BindAddr)
		slog.Info("server started", "addr", cfg.BindAddr, "version", version)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server: %w", err)
			}
		case sig := <-quit:
			slog.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
		}
		return nil
	},
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    25, // megabytes
			MaxBackups: 10,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}
