package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/wa-concierge/internal/alert"
	"github.com/example/wa-concierge/internal/breaker"
	"github.com/example/wa-concierge/internal/config"
	"github.com/example/wa-concierge/internal/events"
	"github.com/example/wa-concierge/internal/geocode"
	"github.com/example/wa-concierge/internal/httpapi"
	"github.com/example/wa-concierge/internal/intent"
	"github.com/example/wa-concierge/internal/llm"
	"github.com/example/wa-concierge/internal/logging"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/payments"
	"github.com/example/wa-concierge/internal/sentry"
	"github.com/example/wa-concierge/internal/shop"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/tasks"
	"github.com/example/wa-concierge/internal/taxi"
	"github.com/example/wa-concierge/internal/track"
	"github.com/example/wa-concierge/internal/wa"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	var kv breaker.KV
	if cfg.RedisAddr != "" {
		kv = breaker.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		kv = breaker.NewMemoryKV()
	}
	brk := breaker.New(kv)

	var primary, secondary llm.Provider
	if cfg.GeminiAPIKey != "" {
		gp, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn("gemini init failed, running without primary LLM", "error", err)
		} else {
			primary = gp
		}
	}
	if cfg.SecondaryLLMURL != "" {
		secondary = llm.NewChatClient(cfg.SecondaryLLMName, cfg.SecondaryLLMURL, cfg.SecondaryLLMKey, cfg.SecondaryModel)
	}
	resolver := &intent.Resolver{Primary: primary, Secondary: secondary, Breaker: brk, Log: log}

	sender := wa.NewClient(cfg.WAEndpoint, cfg.WAToken, cfg.WAPhoneID)
	geocoder := geocode.NewNominatimClient(cfg.GeocodeEndpoint, cfg.GeocodeUserAgent)

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	var holder payments.FareHolder
	if os.Getenv("STRIPE_API_KEY") != "" {
		holder = payments.NewStripeClient("zar")
	}

	hub := track.NewHub(log)
	runner := tasks.NewRunner(cfg.TaskWorkers, log)
	alerts := &alert.Notifier{Sender: sender, Store: store, Operator: cfg.OperatorID, Log: log}

	dispatcher := &taxi.Dispatcher{
		Store:    store,
		Sender:   sender,
		Advisor:  sentry.AllowAll{},
		Log:      log,
		Track:    hub,
		Payments: holder,
		Events:   producer,
		Alerts:   alerts,
	}
	mirage := &taxi.Mirage{
		Store:      store,
		Geo:        geocoder,
		Sender:     sender,
		Dispatcher: dispatcher,
		Log:        log,
		Tasks:      runner,
		Payments:   holder,
		Events:     producer,
	}

	cart := shop.New(sender, log)
	rt := buildRouter(log, sender, mirage, cart)

	srv := httpapi.NewServer(httpapi.Deps{
		Log:         log,
		Store:       store,
		Resolver:    resolver,
		Router:      rt,
		Sender:      sender,
		Alerts:      alerts,
		Tasks:       runner,
		Track:       hub,
		Carts:       cart,
		Conv:        kv,
		VerifyToken: cfg.WAVerifyToken,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("concierge listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := runner.Drain(shutCtx); err != nil {
		log.Warn("task drain", "error", err)
	}
	return nil
}

// openStore prefers Postgres and falls back to the in-memory store with a
// demo corridor so the service runs locally with no dependencies.
func openStore(cfg config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.PGDSN == "" {
		mem := storage.NewMemoryStore()
		mem.SeedCorridors(demoCorridors)
		log.Info("using in-memory store", "corridors", len(demoCorridors))
		return mem, nil
	}
	ps, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if cfg.RunMigrations {
		if err := applyMigrations(ps.DB(), log); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func applyMigrations(db *sql.DB, log *slog.Logger) error {
	path := filepath.Join("migrations", "001_create_schema.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	log.Info("migration applied", "file", path)
	return nil
}

var demoCorridors = []models.Corridor{
	{
		ID:           "soweto-sandton",
		Name:         "Soweto - Sandton",
		Start:        models.Coord{Lat: -26.2678, Lon: 27.8585},
		End:          models.Coord{Lat: -26.1076, Lon: 28.0567},
		RadiusKm:     5,
		Active:       true,
		MinGroupSize: 4,
		MaxGroupSize: 6,
		BaseFare:     35,
	},
	{
		ID:           "tembisa-midrand",
		Name:         "Tembisa - Midrand",
		Start:        models.Coord{Lat: -25.9964, Lon: 28.2268},
		End:          models.Coord{Lat: -25.9890, Lon: 28.1280},
		RadiusKm:     4,
		Active:       true,
		MinGroupSize: 4,
		MaxGroupSize: 6,
		BaseFare:     35,
	},
}
