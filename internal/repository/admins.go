package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type adminModel struct {
	ID     int
	UserID string
	Name   string
}

func (adminModel) TableName() string {
	return "admins"
}

// AdminRepo looks up privileged users.
type AdminRepo struct {
	db *gorm.DB
}

// NewAdminRepo returns an AdminRepo.
func NewAdminRepo(db *gorm.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

// Lookup reports whether the user is an admin and, if so, the admin's
// display name.
func (r *AdminRepo) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, nil
	}
	var record adminModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to check admin status: %w", err)
	}
	return record.Name, true, nil
}
