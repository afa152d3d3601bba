package backend

import (
	"context"

	"sumal/internal/accounts"
	"sumal/internal/ledger"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result bundles the stores a backend provides. Publisher is nil when
// the backend has no AMQP wiring.
type Result struct {
	Ledger    ledger.Store
	Accounts  accounts.Store
	Publisher ledger.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// CSV specific
	CSVLedgerPath   string
	CSVAccountsPath string
}

// Type represents the type of backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	CSVBackend    Type = "csv"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, CSVBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
