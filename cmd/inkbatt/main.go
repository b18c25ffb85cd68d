package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"inkbatt/internal/announce"
	"inkbatt/internal/config"
	"inkbatt/internal/display"
	"inkbatt/internal/handler"
	"inkbatt/internal/homeassistant"
	"inkbatt/internal/metrics"
	"inkbatt/internal/middleware"
	"inkbatt/internal/monitor"
	"inkbatt/internal/pidfile"
	"inkbatt/internal/retry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Config errors are the only fatal errors; everything after this
	// point is recovered per cycle.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if cfg.PIDFile != "" {
		if err := pidfile.Write(cfg.PIDFile); err != nil {
			slog.Error("configuration error", "error", err)
			os.Exit(1)
		}
		defer pidfile.Remove(cfg.PIDFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()

	client := homeassistant.NewClient(cfg.HAURL, cfg.HAToken, cfg.EntityID, cfg.ConnectTimeout)

	retryCfg := retry.Config{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
		Multiplier:   cfg.BackoffMultiplier,
	}

	var sinks []display.Renderer
	switch cfg.DisplayDriver {
	case "inky":
		ink, err := display.NewInkyRenderer(cfg.InkyModel, cfg.InkyColor, float64(cfg.LowBatteryThreshold))
		if err != nil {
			slog.Error("inky panel unavailable, falling back to console renderer", "error", err)
			sinks = append(sinks, display.NewConsoleRenderer())
		} else {
			slog.Info("inky panel initialized", "model", cfg.InkyModel, "color", cfg.InkyColor)
			sinks = append(sinks, ink)
		}
	case "console":
		sinks = append(sinks, display.NewConsoleRenderer())
	case "off":
	}

	if cfg.MQTTBroker != "" {
		ann, err := announce.New(ctx, announce.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, retryCfg)
		if err != nil {
			slog.Warn("mqtt announcer unavailable, continuing without it", "error", err)
		} else {
			defer ann.Close()
			sinks = append(sinks, ann)
		}
	}

	mon := monitor.New(client, display.Multi(sinks...), retryCfg, cfg.UpdateInterval, cfg.MaxUpdateInterval, m)
	if err := mon.Start(ctx); err != nil {
		slog.Error("failed to start monitor", "error", err)
		os.Exit(1)
	}

	var srv *http.Server
	if cfg.ListenAddr != "" {
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery)
		handler.NewStatusHandler(mon).RegisterRoutes(r)
		r.Method(http.MethodGet, "/metrics", m.Handler())

		srv = &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			slog.Info("status server starting", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	mon.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}
