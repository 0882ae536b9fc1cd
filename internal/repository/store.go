// Package repository implements the persistent document store over
// PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store holds the DB pool and collection repositories.
type Store struct {
	db         *gorm.DB
	Turns      *TurnRepo
	Characters *CharacterRepo
	Knowledge  *KnowledgeRepo
	Images     *ImageRepo
	Tools      *ToolRepo
	Admins     *AdminRepo
}

// NewStore initializes the PostgreSQL pool and repositories.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:         db,
		Turns:      NewTurnRepo(db),
		Characters: NewCharacterRepo(db),
		Knowledge:  NewKnowledgeRepo(db),
		Images:     NewImageRepo(db),
		Tools:      NewToolRepo(db),
		Admins:     NewAdminRepo(db),
	}, nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
