package backend

import (
	"context"
	"fmt"
	"log/slog"

	"sumal/internal/accounts"
	"sumal/internal/amqp"
	"sumal/internal/ledger"
	"sumal/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case CSVBackend:
		return f.createCSVBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional. A dead broker must not stop the server; the
	// worker's pending sweep picks up unmirrored records later.
	var publisher ledger.Publisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without mirror messages", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	cleanup := func() error {
		if amqpClient != nil {
			amqpClient.Close()
		}
		return repo.Close()
	}

	return &Result{
		Ledger:    repo,
		Accounts:  accounts.NewSQLiteStore(repo),
		Publisher: publisher,
		Cleanup:   cleanup,
	}, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*Result, error) {
	ledgerStore, err := ledger.NewFileStore(config.CSVLedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV ledger: %w", err)
	}

	accountStore, err := accounts.NewFileStore(config.CSVAccountsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CSV accounts: %w", err)
	}

	f.logger.Info("Initialized CSV backend",
		"ledger_path", config.CSVLedgerPath,
		"accounts_path", config.CSVAccountsPath)

	return &Result{
		Ledger:   ledgerStore,
		Accounts: accountStore,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(_ Config) (*Result, error) {
	f.logger.Info("Initialized memory backend")

	return &Result{
		Ledger:   ledger.NewMemoryStore(),
		Accounts: accounts.NewMemoryStore(),
	}, nil
}
