package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/canvas/internal/api"
	"github.com/persistorai/canvas/internal/collab"
	"github.com/persistorai/canvas/internal/config"
	"github.com/persistorai/canvas/internal/domain"
	"github.com/persistorai/canvas/internal/layout"
	"github.com/persistorai/canvas/internal/session"
	"github.com/persistorai/canvas/internal/ws"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the canvas server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, newLogger(cfg.LogLevel, cfg.LogFormat))
		},
	}
}

func newBackend(cfg *config.Config, log *logrus.Logger) (*collab.Client, *collab.Persistor) {
	client := collab.NewClient(cfg.PersistorURL,
		collab.BreakerSettings{
			ConsecutiveFailures: uint32(cfg.BreakerFailures), //nolint:gosec // bounded to 0..1000 by config validation
			OpenTimeout:         cfg.BreakerTimeout,
		},
		collab.WithAPIKey(cfg.PersistorAPIKey.Value()),
		collab.WithTimeout(cfg.PersistorTimeout),
		collab.WithLogger(log),
	)

	persistor := collab.NewPersistor(client, collab.Defaults{
		NodeType:         cfg.NewNodeType,
		NodeLabel:        cfg.NewNodeLabel,
		RelationshipType: cfg.NewRelationshipType,
		NeighbourLimit:   cfg.NeighbourLimit,
	}, log)

	return client, persistor
}

// serve runs the session server and the metrics server until ctx ends.
func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	client, persistor := newBackend(cfg, log)

	sessions := session.Config{
		Scope: func() (domain.DataCollaborator, session.Seeder, func()) {
			p := persistor.Scoped()
			return p, p, p.Release
		},
		Layout: layout.NewFactory(log),
		Log:    log,
	}

	if cfg.PersistorEvents {
		watcher, err := collab.NewWatcher(cfg.PersistorURL, cfg.PersistorAPIKey.Value(), persistor, log)
		if err != nil {
			return fmt.Errorf("creating change watcher: %w", err)
		}
		watcher.Start(ctx)
		sessions.Updates = watcher
	}

	hub := ws.NewHub(log, cfg.MaxSessions)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	servers := []*http.Server{
		{
			Addr: cfg.Addr(),
			Handler: api.NewRouter(gctx, &api.RouterDeps{
				Log:         log,
				Hub:         hub,
				Sessions:    sessions,
				Backend:     client,
				AccessKeys:  cfg.AccessKeyValues(),
				CORSOrigins: cfg.CORSOrigins,
				Version:     config.Version,
			}),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		{
			Addr:              cfg.MetricsAddr(),
			Handler:           api.NewMetricsHandler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	for _, srv := range servers {
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.WithFields(logrus.Fields{
		"version":   config.Version,
		"persistor": cfg.PersistorURL,
		"events":    cfg.PersistorEvents,
		"auth":      len(cfg.AccessKeys) > 0,
	}).Info("canvasd started")

	err := g.Wait()
	log.Info("canvasd stopped")

	return err
}
