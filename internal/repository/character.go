package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/caardbot/caard/internal/types"
)

type characterModel struct {
	ID          string
	Name        string
	Age         string
	Gender      string
	Birthday    string
	Appearance  string
	Personality string
	Scenario    string
	Goal        string
	Other       string
	Prompt      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (characterModel) TableName() string {
	return types.CollectionCharacters
}

// CharacterRepo provides access to the characters collection.
type CharacterRepo struct {
	db *gorm.DB
}

// NewCharacterRepo creates a new CharacterRepo.
func NewCharacterRepo(db *gorm.DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

// GetByID fetches a character. A missing character is not an error: the
// caller falls back to a default persona.
func (r *CharacterRepo) GetByID(ctx context.Context, id string) (*types.Character, error) {
	var record characterModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character by id: %w", err)
	}

	return &types.Character{
		ID:          record.ID,
		Name:        record.Name,
		Age:         record.Age,
		Gender:      record.Gender,
		Birthday:    record.Birthday,
		Appearance:  record.Appearance,
		Personality: record.Personality,
		Scenario:    record.Scenario,
		Goal:        record.Goal,
		Other:       record.Other,
		Prompt:      record.Prompt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}
