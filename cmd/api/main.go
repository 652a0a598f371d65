package main

import (
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"time"

	"github.com/swiftdial/console/account"
	"github.com/swiftdial/console/activation"
	"github.com/swiftdial/console/auth"
	"github.com/swiftdial/console/billing"
	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/db"
	"github.com/swiftdial/console/entitlement"
	"github.com/swiftdial/console/external"
	"github.com/swiftdial/console/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
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
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
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
			"component": "api",
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

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	amqpBroker, err := broker.NewAMQPBroker(os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	auth, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		EmailOption: auth.EmailOption{
			Name: os.Getenv("SITE_NAME"),
			LinkGenerator: func(uid, token string) string {
				return fmt.Sprintf("%s/login/%s/%s", os.Getenv("SITE_URL"), uid, token)
			},
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	accountManager, err := account.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize AccountManager",
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

	requestManager, err := activation.NewManager(activation.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize activation RequestManager",
			zap.Error(err),
		)
	}

	workflow, err := activation.NewWorkflow(activation.WorkflowOptions{
		DB:             db,
		CatalogManager: catalogManager,
		Producer:       amqpBroker,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize activation Workflow",
			zap.Error(err),
		)
	}

	entitlementManager, err := entitlement.NewManager(entitlement.ManagerOptions{
		CatalogManager:      catalogManager,
		SubscriptionManager: subscriptionManager,
		RequestManager:      requestManager,
		Producer:            amqpBroker,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize EntitlementManager",
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

	accountRouter, err := account.NewService(account.Options{
		Auth:           auth,
		AccountManager: accountManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Account Service Router",
			zap.Error(err),
		)
	}

	catalogRouter, err := catalog.NewServiceRouter(catalog.ServiceOptions{
		CatalogManager: catalogManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Catalog Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		SubscriptionManager: subscriptionManager,
		CatalogManager:      catalogManager,
		Producer:            amqpBroker,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	activationRouter, err := activation.NewService(activation.ServiceOptions{
		RequestManager: requestManager,
		Workflow:       workflow,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Activation Service Router",
			zap.Error(err),
		)
	}

	entitlementRouter, err := entitlement.NewService(entitlement.ServiceOptions{
		EntitlementManager: entitlementManager,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Entitlement Service Router",
			zap.Error(err),
		)
	}

	billingRouter, err := billing.NewService(billing.ServiceOptions{
		BillingManager: billingManager,
		WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Billing Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/account", accountRouter.Router())
	rootRouter.Mount("/billing", billingRouter.Router())

	rootRouter.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Mount("/catalog", catalogRouter.Router())
		r.Mount("/subscription", subscriptionRouter.Router())
		r.Mount("/activation", activationRouter.Router())
	})

	rootRouter.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Use(auth.AdminOnly())
		r.Mount("/admin/account", accountRouter.AdminRouter())
		r.Mount("/admin/catalog", catalogRouter.AdminRouter())
		r.Mount("/admin/subscription", subscriptionRouter.AdminRouter())
		r.Mount("/admin/activation", activationRouter.AdminRouter())
		r.Mount("/admin/entitlement", entitlementRouter.Router())
	})

	srv := &http.Server{
		Handler: rootRouter,
		Addr:    ":42069",
	}

	logger.Info("API started")

	log.Fatalln(srv.ListenAndServe())
}
