package store

import (
	"context"

	"gorm.io/gorm"

	"vblock/internal/bus"
	"vblock/pkg/conn"
)

// PostgresSink inserts each bar as a row of the bars table.
type PostgresSink struct {
	db *gorm.DB
}

// OpenPostgresSink connects and migrates the bars table.
func OpenPostgresSink(opt conn.Postgres) (*PostgresSink, error) {
	db, err := conn.OpenPostgres(opt)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BarRecord{}); err != nil {
		_ = conn.ClosePostgres(db)
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, e bus.Event) error {
	r := NewBarRecord(e)
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *PostgresSink) Close() error {
	return conn.ClosePostgres(s.db)
}
