// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
)

// GetUser fetches the user known to serviceID as externalID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, serviceID, externalID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("service_id = ? AND external_id = ?", serviceID, externalID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists reports whether serviceID already has a user called externalID.
func UserExists(ctx context.Context, db *gorm.DB, serviceID, externalID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("service_id = ? AND external_id = ?", serviceID, externalID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// CreateUser inserts u and fills its id. A concurrent insert of the same
// (service_id, external_id) yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Omit("Service").Create(u).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
