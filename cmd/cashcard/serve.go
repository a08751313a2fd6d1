package main

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/cashcard-core/internal/api"
	"github.com/nerrad567/cashcard-core/internal/audit"
	"github.com/nerrad567/cashcard-core/internal/auth"
	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/events"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/config"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/database"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cashcard-core/internal/metrics"
	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// run serves the API until ctx is cancelled.
//
// Shutdown runs the deferred closes in reverse order: HTTP server, event
// sinks (drained), InfluxDB, MQTT, card store, then SQLite.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting cashcard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	health := map[string]api.HealthChecker{"database": db}

	store, pg, err := openCardStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	if pg != nil {
		defer func() {
			log.Info("closing postgres")
			if closeErr := pg.Close(); closeErr != nil {
				log.Error("error closing postgres", "error", closeErr)
			}
		}()
		health["postgres"] = pingCheck{pg}
	}
	log.Info("card store ready", "backend", cfg.Cards.Backend)

	hub := api.NewHub(cfg.WebSocket, log)
	sinks := []card.EventSink{hub, events.NewCounterSink(m.CardEvents)}
	dropped := events.WithDropCounter(m.EventsDropped)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	asyncs := []*events.Async{
		events.NewAsync("audit", audit.NewSink(auditRepo, log), 0, log, dropped),
	}

	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		health["mqtt"] = mqttClient
		publisher := events.NewMQTTSink(mqttClient, mqttClient.Topics(), mqttClient.DefaultQoS(), log)
		asyncs = append(asyncs, events.NewAsync("mqtt", publisher, 0, log, dropped))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		health["influxdb"] = influxClient
		// The write API batches on its own goroutine, so no queue in front.
		sinks = append(sinks, events.NewInfluxSink(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Sinks outlive ctx so events from requests still draining are kept.
	sinkCtx, stopSinks := context.WithCancel(context.WithoutCancel(ctx))
	for _, a := range asyncs {
		go a.Run(sinkCtx)
		sinks = append(sinks, a)
	}
	defer func() {
		stopSinks()
		for _, a := range asyncs {
			<-a.Done()
		}
		log.Info("event sinks drained")
	}()

	cards := card.NewService(store, log, sinks...)

	users := auth.NewUserRepository(db.DB)
	identities := auth.NewIdentityStore(users, log)
	created, err := auth.SeedUsers(ctx, identities, seedUsers(cfg.Security.SeedUsers))
	if err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	if created > 0 {
		log.Info("seed users created", "count", created)
	}

	server, err := api.New(api.Deps{
		Config: cfg.API,
		WS:     cfg.WebSocket,
		Logger: log,
		Cards:  cards,
		Paging: pagination.NewResolver(pagination.Options{
			DefaultSize: cfg.Cards.Paging.DefaultSize,
			MaxSize:     cfg.Cards.Paging.MaxSize,
		}),
		Verifier: auth.NewCachingVerifier(identities,
			time.Duration(cfg.Security.CredentialCache.TTL)*time.Second),
		Users: identities,
		Tokens: auth.NewTokenService(users, cfg.Security.JWT.Secret,
			time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute),
		Audit:   auditRepo,
		Metrics: m,
		Hub:     hub,
		Health:  health,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// openCardStore returns the store for the configured backend. For the
// postgres backend it also returns the pool, which the caller closes.
func openCardStore(ctx context.Context, cfg *config.Config, db *database.DB) (card.Store, *sql.DB, error) {
	switch cfg.Cards.Backend {
	case config.BackendMemory:
		return card.NewMemoryStore(), nil, nil
	case config.BackendPostgres:
		pg, err := database.OpenPostgres(ctx, cfg.Cards.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		store := card.NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("creating postgres schema: %w", err)
		}
		return store, pg, nil
	default:
		return card.NewSQLiteStore(db.DB), nil, nil
	}
}

func seedUsers(in []config.SeedUserConfig) []auth.SeedUser {
	out := make([]auth.SeedUser, 0, len(in))
	for _, u := range in {
		out = append(out, auth.SeedUser{
			Username: u.Username,
			Password: u.Password,
			Role:     auth.Role(u.Role),
		})
	}
	return out
}

// pingCheck adapts a *sql.DB to api.HealthChecker.
type pingCheck struct {
	db *sql.DB
}

func (p pingCheck) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// healthCheck verifies every dependency before the listener opens.
// Checks run in name order so the first failure reported is stable.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range slices.Sorted(maps.Keys(checks)) {
		if err := checks[name].HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
