package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	appointmentPostgres "github.com/rizalfahlevi/booking-management/internal/appointment/postgres"
	"github.com/rizalfahlevi/booking-management/internal/auth"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	catalogPostgres "github.com/rizalfahlevi/booking-management/internal/catalog/postgres"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	invoicePostgres "github.com/rizalfahlevi/booking-management/internal/invoice/postgres"
	"github.com/rizalfahlevi/booking-management/internal/notification"
	"github.com/rizalfahlevi/booking-management/internal/payment"
	paymentPostgres "github.com/rizalfahlevi/booking-management/internal/payment/postgres"
	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	promotionPostgres "github.com/rizalfahlevi/booking-management/internal/promotion/postgres"
	"github.com/rizalfahlevi/booking-management/internal/transport"
	"github.com/rizalfahlevi/booking-management/internal/transport/rest"
	userPostgres "github.com/rizalfahlevi/booking-management/internal/user/postgres"
	"github.com/rizalfahlevi/booking-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Mailer *notification.Mailer
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to wire routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		deps.Mailer.Shutdown()
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	lg := deps.Logger

	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		return fmt.Errorf("load JWT public key: %w", err)
	}

	baseHandler := transport.NewBaseHandler(lg)
	authMiddleware := auth.NewMiddleware(baseHandler, auth.NewTokenValidator(publicKey))

	realClock := clock.NewRealClock()
	txManager := database.NewTxManager(deps.GormDB)
	eventBus := events.NewEventBus(lg)

	userRepo := userPostgres.NewUserRepository(deps.GormDB)
	catalogRepo := catalogPostgres.NewCatalogRepository(deps.GormDB)
	appointmentRepo := appointmentPostgres.NewRepository(deps.GormDB)
	invoiceRepo := invoicePostgres.NewRepository(deps.GormDB)
	paymentRepo := paymentPostgres.NewRepository(deps.GormDB)
	promotionRepo := promotionPostgres.NewRepository(deps.GormDB)

	gatewayClient := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		APIKey:         cfg.Gateway.APIKey,
		WebhookSecret:  cfg.Gateway.WebhookSecret,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}, lg)
	verifier := paymentgateway.NewVerifier(cfg.Gateway.WebhookSecret, realClock)

	notification.NewDispatcher(deps.Mailer, userRepo, lg).Register(eventBus)

	catalogService := catalog.NewService(catalogRepo, lg)
	promotionService := promotion.NewService(promotionRepo, realClock, lg)
	appointmentService := appointment.NewService(appointmentRepo, catalogRepo, txManager, eventBus, realClock, lg)
	invoiceService := invoice.NewService(invoiceRepo, appointmentRepo, catalogRepo, promotionService, txManager, eventBus, realClock, lg)
	paymentService := payment.NewService(paymentRepo, invoiceRepo, gatewayClient, txManager, realClock, cfg.Gateway.PublishableKey, lg)
	reconciler := payment.NewReconciler(paymentRepo, invoiceRepo, appointmentRepo, txManager, eventBus, realClock, lg)

	catalogHandler := catalog.NewHandler(baseHandler, catalogService)
	appointmentHandler := appointment.NewHandler(baseHandler, appointmentService)
	invoiceHandler := invoice.NewHandler(baseHandler, invoiceService)
	paymentHandler := payment.NewHandler(baseHandler, paymentService)
	webhookHandler := payment.NewWebhookHandler(baseHandler, verifier, reconciler)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, authMiddleware, catalogHandler, appointmentHandler, invoiceHandler, paymentHandler, webhookHandler, lg)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	mailer := notification.NewMailer(notification.MailerConfig{
		MailAPIURL:     config.Notification.MailAPIURL,
		SenderAddress:  config.Notification.SenderAddress,
		RequestTimeout: config.Notification.RequestTimeout,
		MaxWorkers:     config.Notification.MaxWorkers,
		QueueSize:      config.Notification.QueueSize,
	}, lg)

	return &Dependencies{
		Config: config,
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),
		Mailer: mailer,
		Logger: lg,
	}, nil
}

// initDB opens the pgx connection pool shared by raw queries and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open pgx pool so both share one set
// of connection limits.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return gormDB, nil
}
