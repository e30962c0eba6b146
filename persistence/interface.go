// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/beatroom/config"
	"github.com/wfunc/beatroom/models"
)

// RoundStore 开局记录存储
type RoundStore interface {
	SaveRound(ctx context.Context, record *models.RoundRecord) error
	// RecentRounds returns up to limit records, newest first.
	RecentRounds(ctx context.Context, limit int) ([]models.RoundRecord, error)
	Close() error
}

// 错误定义
var (
	ErrStoreClosed = errors.New("round store closed")
	ErrBadLimit    = errors.New("limit must be positive")
)

// DefaultMemoryCapacity bounds the in-process store.
const DefaultMemoryCapacity = 1000

// Open picks a store for the configured driver.
func Open(cfg config.DatabaseConfig) (RoundStore, error) {
	switch cfg.Driver {
	case config.DriverNone, "":
		return NewMemoryStore(DefaultMemoryCapacity), nil
	case config.DriverGorm:
		return NewGormPostgreSQL(cfg.Postgres.DSN())
	case config.DriverPostgres:
		return NewPostgreSQL(cfg.Postgres.DSN(), cfg.Postgres.URL())
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
