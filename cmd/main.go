package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/garage-service/internal/auth"
	"github.com/ukydev/garage-service/internal/config"
	"github.com/ukydev/garage-service/internal/db"
	"github.com/ukydev/garage-service/internal/handlers"
	"github.com/ukydev/garage-service/internal/middleware"
	"github.com/ukydev/garage-service/internal/models"
	"github.com/ukydev/garage-service/internal/notify"
	"github.com/ukydev/garage-service/internal/outbox"
	"github.com/ukydev/garage-service/internal/policy"
	"github.com/ukydev/garage-service/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := configureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
	log.Info("Server stopped")
}

func configureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	log.SetOutput(os.Stdout)
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	log.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	store := db.NewStore(client.Database(cfg.Mongo.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	if err := store.SeedCounters(ctx); err != nil {
		return fmt.Errorf("failed to seed counters: %w", err)
	}

	rolePolicy, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}

	publisher, closePublisher := newPublisher(cfg.MQTT)
	defer closePublisher()

	app := newApp(cfg, store, publisher, rolePolicy)
	if cfg.Admin.Password != "" {
		created, err := app.users.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		}
		if created {
			log.WithField("username", cfg.Admin.Username).Info("Admin account created")
		}
	}

	relay, err := outbox.NewRelay(app.outbox, cfg.Outbox.Schedule)
	if err != nil {
		return err
	}
	relay.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		relay.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	relay.Stop(shutdownCtx)
	return nil
}

// newPublisher connects to MQTT when a broker is configured. Without one, or when the
// broker is unreachable at start-up, events are only logged.
func newPublisher(cfg config.MQTTConfig) (notify.Publisher, func()) {
	if cfg.Broker == "" {
		log.Info("MQTT_BROKER not set, events will be logged only")
		return notify.LogPublisher{}, func() {}
	}
	pub, err := notify.NewMQTTPublisher(notify.MQTTConfig{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
		QoS:      cfg.QoS,
	})
	if err != nil {
		log.WithError(err).WithField("broker", cfg.Broker).Warn("MQTT unavailable, events will be logged only")
		return notify.LogPublisher{}, func() {}
	}
	log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
	return pub, pub.Close
}

type app struct {
	router http.Handler
	outbox *outbox.Outbox
	users  *services.UserService
}

// newApp wires services, outbox handlers and routes over store.
func newApp(cfg *config.Config, store *db.Store, publisher notify.Publisher, rolePolicy *policy.Policy) *app {
	authService := auth.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	repos := services.RepositoriesFromStore(store)

	ob := outbox.New(store.Outbox, outbox.Options{
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Backoff:     cfg.Outbox.Backoff,
		BatchSize:   cfg.Outbox.BatchSize,
	})
	notifier := notify.NewNotifier(publisher, cfg.MQTT.TopicPrefix, ob)
	notifier.PublishTimeout = cfg.MQTT.PublishTimeout

	inventory := services.NewInventoryService(repos, notifier)
	goods := services.NewGoodsRequestService(repos, inventory, ob)
	syncer := services.NewBookingSyncer(repos.Bookings, repos.Jobs, ob, notifier)
	jobs := services.NewJobService(repos, goods, syncer, notifier)
	bookings := services.NewBookingService(repos, notifier)
	users := services.NewUserService(repos, authService)
	vehicles := services.NewVehicleService(repos)
	invoices := services.NewInvoiceService(repos, cfg.Billing.LabourRate, cfg.Billing.TaxRate)
	reports := services.NewReportService(repos)

	ob.Register(models.EventBookingSync, syncer.HandleEvent)
	ob.Register(models.EventGoodsRequest, goods.HandleCreateEvent)
	ob.Register(models.EventNotify, notifier.HandleEvent)

	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	limiter.TrustProxy = cfg.RateLimit.TrustProxy

	router := handlers.NewRouter(handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authService, store.Users),
		Jobs:          handlers.NewJobHandler(jobs),
		Bookings:      handlers.NewBookingHandler(bookings),
		Inventory:     handlers.NewInventoryHandler(inventory),
		GoodsRequests: handlers.NewGoodsRequestHandler(goods),
		Users:         handlers.NewUserHandler(users),
		Vehicles:      handlers.NewVehicleHandler(vehicles),
		Invoices:      handlers.NewInvoiceHandler(invoices),
		Reports:       handlers.NewReportHandler(reports),
		Outbox:        handlers.NewOutboxHandler(ob),
		Health:        handlers.NewHealthHandler(store),
	},
		middleware.NewAuthMiddleware(authService, rolePolicy),
		limiter,
	)

	return &app{router: router, outbox: ob, users: users}
}
