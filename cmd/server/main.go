package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/infrastructure/audit"
	"github.com/propman/backend/internal/infrastructure/config"
	"github.com/propman/backend/internal/infrastructure/logger"
	"github.com/propman/backend/internal/infrastructure/persistence"
	"github.com/propman/backend/internal/infrastructure/strategy"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Wire repositories and services
	txManager := persistence.NewGormTransactionManager(db.DB)
	leaseRepo := persistence.NewGormLeaseRepository(db.DB)
	auditor := audit.NewGormAuditRecorder(db.DB, log)

	registry, err := strategy.NewRegistryWithDefaults()
	if err != nil {
		log.Fatal("Failed to build strategy registry", zap.Error(err))
	}
	allocation, err := registry.GetAllocationStrategy(cfg.Billing.AllocationStrategy)
	if err != nil {
		log.Fatal("Unknown allocation strategy",
			zap.String("strategy", cfg.Billing.AllocationStrategy), zap.Error(err))
	}
	log.Info("Allocation strategy resolved", zap.String("strategy", allocation.Name()))

	services := &billingapp.Services{
		Invoices: billingapp.NewInvoiceService(txManager, leaseRepo, nil, auditor),
		Payments: billingapp.NewPaymentService(txManager, leaseRepo, allocation, auditor),
	}

	// Periodic overdue sweep
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	go runOverdueSweep(ctx, services.Invoices, cfg.Billing.OverdueSweepPeriod, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down billing service...")

	cancel()
	log.Info("Billing service exited gracefully")
}

// runOverdueSweep periodically flags issued invoices whose due date plus
// grace window has elapsed. One run executes immediately on startup so a
// restarted service catches up without waiting a full period.
func runOverdueSweep(ctx context.Context, svc *billingapp.InvoiceService, period time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	sweep := func() {
		marked, err := svc.MarkOverdueInvoices(ctx, time.Now())
		if err != nil {
			log.Error("Overdue sweep failed", zap.Error(err))
			return
		}
		if marked > 0 {
			log.Info("Overdue sweep completed", zap.Int("marked", marked))
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
