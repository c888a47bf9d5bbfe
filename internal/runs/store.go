package runs

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/owamns/clinmr/internal/shared/config"
)

// Store persists run history. Implementations return copies, so callers may
// mutate what they get back.
type Store interface {
	Save(run *Run) error
	Update(run *Run) error
	Get(id uuid.UUID) (*Run, error)
	// List returns the runs matching filter, newest first, and the number of
	// matches before pagination.
	List(filter Filter) ([]*Run, int, error)
	Delete(id uuid.UUID) error
	Close() error
}

func NewStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewInMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
