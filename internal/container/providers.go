// Package container provides dependency injection and lifecycle management
// for the expense approval service.
package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/infrastructure/currency"
	"github.com/garyjia/expense-approval/internal/infrastructure/export"
	infraLark "github.com/garyjia/expense-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-approval/internal/infrastructure/metrics"
	"github.com/garyjia/expense-approval/internal/infrastructure/notify"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/worker"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Expense   *repository.ExpenseRepository
	Rule      port.RuleRepository
	History   port.HistoryRepository
	Directory port.DirectoryRepository
}

// AdapterBundle holds the outbound adapters services depend on.
type AdapterBundle struct {
	Notifier  port.Notifier
	Converter port.CurrencyConverter
	Exporter  port.ExpenseExporter
	Metrics   *metrics.Recorder // nil when metrics are disabled
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Expense      service.ExpenseService
	Approval     service.ApprovalService
	Rule         service.RuleService
	Report       service.ReportService
	Notification service.NotificationService
	Directory    service.DirectoryService
}

// ServiceDeps holds the inputs of ProvideServices.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Adapters   *AdapterBundle
	Engine     *approval.Engine
	Dispatcher dispatcher.Dispatcher
	Approval   config.ApprovalConfig
	Logger     *zap.Logger
}

// ProvideDatabase opens SQLite and, when configured, applies pending
// migrations from the embedded schema.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.NewMigrator(conn, migrations.FS, logger).Run(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over the shared transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Expense:   repository.NewExpenseRepository(db, logger),
		Rule:      repository.NewRuleRepository(db, logger),
		History:   repository.NewHistoryRepository(db, logger),
		Directory: repository.NewUserRepository(db, logger),
	}, nil
}

// ProvideAdapters builds notification, conversion, export and metrics adapters.
// Notifications always reach the log; Lark is added when configured.
func ProvideAdapters(cfg *config.Config, logger *zap.Logger) (*AdapterBundle, error) {
	rates, err := cfg.Approval.Rates()
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.Lark.Enabled() {
		larkCfg := infraLark.Config{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			BaseURL:       cfg.Lark.BaseURL,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			Timeout:       cfg.Lark.APITimeout,
			RoleChats:     cfg.Lark.RoleChats,
		}
		client := infraLark.NewClient(larkCfg, logger)
		notifiers = append(notifiers, infraLark.NewNotifier(client, larkCfg, logger))
		logger.Info("Lark notifications enabled", zap.String("receive_id_type", cfg.Lark.ReceiveIDType))
	}

	bundle := &AdapterBundle{
		Notifier:  notifiers,
		Converter: currency.NewStaticConverter(cfg.Approval.BaseCurrency, rates),
		Exporter:  export.NewXLSXExporter(cfg.Report.DateFormat, cfg.Report.MaxRows, logger),
	}
	if cfg.Metrics.Enabled {
		bundle.Metrics = metrics.NewRecorder()
	}
	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
}

// ProvideServices creates all application services and subscribes the
// event-driven ones to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Adapters == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}
	log := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	approvalOpts := []service.ApprovalOption{service.WithMaxConflictRetries(deps.Approval.MaxConflictRetries)}
	if deps.Adapters.Metrics != nil {
		approvalOpts = append(approvalOpts, service.WithConflictObserver(deps.Adapters.Metrics))
	}

	bundle := &ServiceBundle{
		Expense: service.NewExpenseService(
			repos.Expense, repos.Rule, repos.History, repos.Directory, deps.TxManager,
			deps.Adapters.Converter, deps.Engine, deps.Dispatcher,
			deps.Approval.BaseCurrency, log,
		),
		Approval: service.NewApprovalService(
			repos.Expense, repos.History, deps.TxManager,
			deps.Engine, deps.Dispatcher, log, approvalOpts...,
		),
		Rule:         service.NewRuleService(repos.Rule, deps.TxManager, deps.Dispatcher, log),
		Report:       service.NewReportService(repos.Expense, deps.Adapters.Exporter, log),
		Notification: service.NewNotificationService(repos.Expense, deps.Adapters.Notifier, log),
		Directory:    service.NewDirectoryService(repos.Directory, log),
	}

	bundle.Notification.Subscribe(deps.Dispatcher)
	if deps.Adapters.Metrics != nil {
		deps.Adapters.Metrics.Subscribe(deps.Dispatcher)
	}
	return bundle, nil
}

// ProvideWorkers registers the background workers.
func ProvideWorkers(cfg config.ApprovalConfig, repos *RepositoryBundle, engine *approval.Engine, adapters *AdapterBundle, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)

	if cfg.StallCheckInterval > 0 {
		var gauge worker.StallGauge
		if adapters.Metrics != nil {
			gauge = adapters.Metrics
		}
		manager.Register(worker.NewStallMonitor(cfg.StallCheckInterval, repos.Expense, engine, gauge, logger))
	}
	return manager
}
