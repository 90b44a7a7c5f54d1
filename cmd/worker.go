package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appointmentPostgres "github.com/rizalfahlevi/booking-management/internal/appointment/postgres"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	invoicePostgres "github.com/rizalfahlevi/booking-management/internal/invoice/postgres"
	"github.com/rizalfahlevi/booking-management/internal/notification"
	paymentPostgres "github.com/rizalfahlevi/booking-management/internal/payment/postgres"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	promotionPostgres "github.com/rizalfahlevi/booking-management/internal/promotion/postgres"
	userPostgres "github.com/rizalfahlevi/booking-management/internal/user/postgres"
	"github.com/rizalfahlevi/booking-management/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background scheduler",
	Long:  `Run the periodic jobs: the invoice expiry compensation sweep and the promotion status sweep.`,
	Run: func(cmd *cobra.Command, args []string) {
		startWorker()
	},
}

func startWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	realClock := clock.NewRealClock()
	txManager := database.NewTxManager(gormDB)
	eventBus := events.NewEventBus(lg)

	userRepo := userPostgres.NewUserRepository(gormDB)
	appointmentRepo := appointmentPostgres.NewRepository(gormDB)
	invoiceRepo := invoicePostgres.NewRepository(gormDB)
	paymentRepo := paymentPostgres.NewRepository(gormDB)
	promotionRepo := promotionPostgres.NewRepository(gormDB)

	mailer := notification.NewMailer(notification.MailerConfig{
		MailAPIURL:     config.Notification.MailAPIURL,
		SenderAddress:  config.Notification.SenderAddress,
		RequestTimeout: config.Notification.RequestTimeout,
		MaxWorkers:     config.Notification.MaxWorkers,
		QueueSize:      config.Notification.QueueSize,
	}, lg)
	notification.NewDispatcher(mailer, userRepo, lg).Register(eventBus)

	promotionService := promotion.NewService(promotionRepo, realClock, lg)
	sweeper := invoice.NewExpirySweeper(invoiceRepo, appointmentRepo, paymentRepo, promotionRepo, userRepo, txManager, eventBus, realClock, lg)

	ctx, cancel := context.WithCancel(context.Background())

	go runOnSchedule(ctx, config.Scheduler.ExpirySweepInterval, "expiry sweep", func() error {
		return sweeper.RunExpirySweep(ctx)
	})
	go runOnSchedule(ctx, config.Scheduler.PromotionSweepInterval, "promotion sweep", func() error {
		return promotionService.ExpireDue(ctx)
	})

	lg.Info("scheduler started",
		"expiry_sweep_interval", config.Scheduler.ExpirySweepInterval,
		"promotion_sweep_interval", config.Scheduler.PromotionSweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	lg.Info("Received signal, shutting down scheduler...", "signal", sig)
	cancel()
	mailer.Shutdown()
	lg.Info("Scheduler stopped")
}

// runOnSchedule runs job immediately and then on every tick until the
// context is canceled. Job errors are logged; the schedule keeps going.
func runOnSchedule(ctx context.Context, interval time.Duration, name string, job func() error) {
	lg := logger.LoggerWrapper()
	if interval <= 0 {
		interval = time.Hour
	}

	run := func() {
		if err := job(); err != nil {
			lg.Error("scheduled job failed", "job", name, "error", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			lg.Info("scheduled job stopped", "job", name)
			return
		}
	}
}
