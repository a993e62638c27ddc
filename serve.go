package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"geotasks/internal/config"
	"geotasks/internal/engine"
	"geotasks/internal/favorites"
	"geotasks/internal/geocode"
	"geotasks/internal/handlers"
	"geotasks/internal/location"
	"geotasks/internal/logging"
	"geotasks/internal/notify"
	"geotasks/internal/store"
	"geotasks/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder engine and its HTTP API",
		Long: `Run the reminder engine. Device positions are posted to /api/positions;
tasks and favorites are managed through the JSON API under /api.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logging.New(os.Stderr, logging.Options{
				Level:           cfg.Log.Level,
				Format:          cfg.Log.Format,
				ReportTimestamp: true,
			}))
		},
	}
}

// app is the wired object graph behind the server.
type app struct {
	store    *store.SQLiteStore
	engine   *engine.Engine
	handlers *handlers.Handlers
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	if cfg.Database.Path != ":memory:" {
		// Ensure data directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	favs := favorites.New(s, logger, cfg.Favorites.MatchPrecision)
	feed := location.NewPushFeed(cfg.PermissionGranted())
	tracker := location.NewTracker(feed, cfg.LocationOptions(), logger)

	outbox := notify.NewOutbox(cfg.Notify.OutboxSize)
	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}, outbox}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout.Duration))
	}

	var geocoder geocode.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder = geocode.NewNominatimClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout.Duration)
	}

	e := engine.New(
		engine.Config{ArrivalRadiusMeters: cfg.Geofence.ArrivalRadiusMeters},
		tasks.New(s, logger),
		favs,
		tracker,
		notify.NewDispatcher(notifiers, logger),
		geocode.NewResolver(favs, geocoder),
		logger,
	)

	return &app{
		store:    s,
		engine:   e,
		handlers: handlers.New(e, feed, outbox, logger),
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.store.Close()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	defer a.engine.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handlers.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "db", cfg.Database.Path, "geofencing", a.engine.GeofencingEnabled())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
