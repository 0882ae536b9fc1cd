package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/caardbot/caard/internal/types"
)

type turnModel struct {
	ID          int
	UserID      string
	UserMessage string
	BotReply    string
	Timestamp   time.Time
}

func (turnModel) TableName() string {
	return types.CollectionChatHistory
}

// One multi-reply exchange shares a single insert timestamp, so both
// orderings break ties on the serial id to keep replies in produced
// order.
const (
	orderOldestFirst = "timestamp ASC, id ASC"
	orderNewestFirst = "timestamp DESC, id DESC"
)

// TurnRepo accesses conversation turns.
type TurnRepo struct {
	db *gorm.DB
}

// NewTurnRepo returns a TurnRepo.
func NewTurnRepo(db *gorm.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// List returns all turns for a user, oldest first.
func (r *TurnRepo) List(ctx context.Context, userID string) ([]types.ConversationTurn, error) {
	var records []turnModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(orderOldestFirst).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}

	turns := make([]types.ConversationTurn, 0, len(records))
	for _, record := range records {
		turns = append(turns, turnFromModel(record))
	}
	return turns, nil
}

// ListDesc returns all turns for a user, newest first, for display.
func (r *TurnRepo) ListDesc(ctx context.Context, userID string) ([]types.ConversationTurn, error) {
	var records []turnModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(orderNewestFirst).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}

	turns := make([]types.ConversationTurn, 0, len(records))
	for _, record := range records {
		turns = append(turns, turnFromModel(record))
	}
	return turns, nil
}

// Insert persists turns with server-generated timestamps.
func (r *TurnRepo) Insert(ctx context.Context, turns []types.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	now := time.Now()
	records := make([]turnModel, 0, len(turns))
	for _, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = now
		}
		records = append(records, turnModel{
			UserID:      t.UserID,
			UserMessage: t.UserMessage,
			BotReply:    t.BotReply,
			Timestamp:   ts,
		})
	}
	if err := r.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("failed to insert chat turns: %w", err)
	}
	return nil
}

// DeleteByIDs removes exactly the given turns.
func (r *TurnRepo) DeleteByIDs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&turnModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete chat turns: %w", err)
	}
	return nil
}

// DeleteAll removes every turn and returns the removed count.
func (r *TurnRepo) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&turnModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete chat history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func turnFromModel(model turnModel) types.ConversationTurn {
	return types.ConversationTurn{
		ID:          model.ID,
		UserID:      model.UserID,
		UserMessage: model.UserMessage,
		BotReply:    model.BotReply,
		Timestamp:   model.Timestamp,
	}
}
