package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/catalog"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/config"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/db"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/dispatch"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/metrics"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/notifications"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/poller"
	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

// openStore selects PostgreSQL when a database URL is configured and the
// in-memory store otherwise. The returned func releases the store.
func openStore(ctx context.Context, cfg *config.Config) (catalog.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Println("WARNING: DATABASE_URL not set, catalog is kept in memory")
		return catalog.NewMemoryStore(cfg.ProductIDColumn), func() {}, nil
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Printf("WARNING: migrations failed: %v", err)
	}
	return catalog.NewPostgresStore(database.Pool, cfg.Table()), database.Close, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer closeStore()

	// WebSocket Hub
	hub := ws.NewHub()
	metrics.RegisterGauges(hub.Len, hub.ChannelCount)

	// Cross-instance relay
	instanceID := uuid.NewString()
	broker, err := notifications.NewBroker(cfg, instanceID)
	if err != nil {
		return fmt.Errorf("notification broker: %w", err)
	}
	defer broker.Close() //nolint:errcheck // best-effort cleanup on shutdown

	relay := notifications.NewRelay(broker, hub, instanceID)
	if err := relay.Start(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	dispatcher := dispatch.New(hub, store, catalog.DefaultNormalizer(cfg.FieldAliases),
		dispatch.WithMirror(relay),
		dispatch.WithTimeout(cfg.RequestTimeout),
	)

	changes := poller.New(poller.Config{
		Interval: cfg.PollInterval,
		Timeout:  cfg.RequestTimeout,
		IDColumn: cfg.ProductIDColumn,
	}, store, hub)

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        newRouter(ctx, cfg, hub, store, dispatcher),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := changes.Start(gctx); err != nil {
		return fmt.Errorf("change poller: %w", err)
	}
	g.Go(func() error { return hub.RunHeartbeat(gctx, cfg.PingInterval, cfg.PingTimeout) })
	g.Go(func() error { return hub.RunStats(gctx, cfg.StatsInterval) })

	g.Go(func() error {
		log.Printf("Starting server on %s (instance %s)", cfg.Addr(), instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Upgraded connections are hijacked and not tracked by Shutdown.
		hub.CloseAll()
		err := srv.Shutdown(shutdownCtx)
		if stopErr := changes.Stop(shutdownCtx); stopErr != nil {
			log.Printf("WARNING: change poller did not stop: %v", stopErr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}
