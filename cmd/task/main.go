package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swiftdial/console/billing"
	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/db"
	"github.com/swiftdial/console/external"
	"github.com/swiftdial/console/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var dotFile string
	var err error

	interval := flag.Duration("interval", time.Minute*15, "how often billing state is reconciled against the gateway")
	flag.Parse()

	// Determine running environment and initialize structural logger
	env := os.Getenv("ENV")
	if "production" == env {
		dotFile = ".env.production"
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: env,
		Debug:       env != "production",
	}); err != nil {
		log.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "task",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	logger = zapsentry.AttachCoreToLogger(core, logger)

	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	stripeClient := external.NewStripeClient(os.Getenv("STRIPE_KEY"))

	// Initialize backend connections
	db, err := db.New(db.Options{
		URI:    os.Getenv("POSTGRES_URI"),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	catalogManager, err := catalog.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize CatalogManager",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	billingManager, err := billing.NewManager(billing.ManagerOptions{
		StripeClient:        stripeClient,
		SubscriptionManager: subscriptionManager,
		CatalogManager:      catalogManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize BillingManager",
			zap.Error(err),
		)
	}

	billingTask, err := billing.NewTask(billing.TaskOptions{
		BillingManager: billingManager,
		Interval:       *interval,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot get billing task",
			zap.Error(err),
		)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	billingTask.Run(ctx)

	logger.Info("Billing task started")

	<-c
	cancel()

}
