package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/wa-concierge/internal/alert"
	"github.com/example/wa-concierge/internal/config"
	"github.com/example/wa-concierge/internal/events"
	"github.com/example/wa-concierge/internal/logging"
	"github.com/example/wa-concierge/internal/payments"
	"github.com/example/wa-concierge/internal/sentry"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/taxi"
	"github.com/example/wa-concierge/internal/wa"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_consumed_total",
		Help: "Total booking events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_invalid_total",
		Help: "Total undecodable events received",
	})
	dispatchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_dispatch_errors_total",
		Help: "Total failed corridor dispatch attempts",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, dispatchErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	if err := run(metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(metricsAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	var ready func(context.Context) error
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		store = ps
		ready = ps.DB().PingContext
	} else {
		log.Warn("no PG_DSN set, running against an empty in-memory store")
		store = storage.NewMemoryStore()
		ready = func(context.Context) error { return nil }
	}

	sender := wa.NewClient(cfg.WAEndpoint, cfg.WAToken, cfg.WAPhoneID)

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}
	var holder payments.FareHolder
	if os.Getenv("STRIPE_API_KEY") != "" {
		holder = payments.NewStripeClient("zar")
	}

	d := &taxi.Dispatcher{
		Store:    store,
		Sender:   sender,
		Advisor:  sentry.AllowAll{},
		Log:      log,
		Payments: holder,
		Events:   producer,
		Alerts:   &alert.Notifier{Sender: sender, Store: store, Operator: cfg.OperatorID, Log: log},
	}

	go serveMetrics(metricsAddr, ready, log)

	// The interval scan is the safety net for events the consumer missed.
	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.RunCycle(ctx); err != nil {
					dispatchErrors.Inc()
					log.Error("dispatch cycle failed", "error", err)
				}
			}
		}
	}()

	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, running interval scans only")
		<-ctx.Done()
		return nil
	}
	return consume(ctx, cfg, d, log)
}

// consume reacts to booking.created events so a corridor that just hit
// quorum dispatches immediately instead of waiting for the next scan.
func consume(ctx context.Context, cfg config.Config, d *taxi.Dispatcher, log *slog.Logger) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer r.Close()

	log.Info("consuming booking events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shutting down consumer")
				return nil
			}
			log.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		eventsConsumed.Inc()
		processEvent(ctx, d, m.Value, log)
	}
}

// processEvent reacts to one raw event. Anything that isn't an actionable
// booking.created for a known corridor is counted and skipped, never fatal.
func processEvent(ctx context.Context, d *taxi.Dispatcher, value []byte, log *slog.Logger) {
	var ev events.BookingEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		eventsInvalid.Inc()
		log.Warn("invalid event", "error", err)
		return
	}
	if ev.Type != events.TypeBookingCreated {
		return
	}

	c, err := d.Store.CorridorByID(ctx, ev.CorridorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("event for unknown corridor", "corridor", ev.CorridorID)
			return
		}
		dispatchErrors.Inc()
		log.Error("corridor lookup failed", "corridor", ev.CorridorID, "error", err)
		return
	}
	if _, err := d.DispatchCorridor(ctx, c); err != nil {
		dispatchErrors.Inc()
		log.Error("corridor dispatch failed", "corridor", c.ID, "error", err)
	}
}

func serveMetrics(addr string, ready func(context.Context) error, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	log.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", "error", err)
	}
}
