package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eri/internal/config"
	"eri/internal/log"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens postgres and migrates the audit tables. Without
// POSTGRES_DSN it returns a store in no-db mode.
func NewStore(ctx context.Context, cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Infow("POSTGRES_DSN not set; starting in no-db mode")
		return &Store{}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(ctx, gdb); err != nil {
		return nil, err
	}
	return &Store{DB: gdb}, nil
}

func Migrate(ctx context.Context, gdb *gorm.DB) error {
	if err := gdb.WithContext(ctx).AutoMigrate(&AuditEventModel{}, &AuditSeqModel{}); err != nil {
		return fmt.Errorf("migrate audit tables: %w", err)
	}
	return nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Store) Mode() string {
	if s.Enabled() {
		return "db"
	}
	return "no-db"
}

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
