package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/model"
)

type Store struct {
	db *gorm.DB
}

func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&model.ResourceTier{},
		&model.Addon{},
		&model.QuotaPolicy{},
		&model.Sandbox{},
		&model.ActivityEntry{},
	)
}

// WithUserLock runs fn inside a transaction holding a per-user advisory
// lock. Admission checks are read-only, so two concurrent check-then-insert
// sequences for the same user could both pass their count check; serializing
// the pair here closes that window. The lock is released at commit/rollback.
func (s *Store) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", userLockKey(userID)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
}

func userLockKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(userID[:])
	return int64(h.Sum64())
}
