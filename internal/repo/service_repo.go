// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Service
// model: registration of client applications and token lookup.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
)

// CreateService inserts a service named name. The id and the secret token are
// generated per row by the model hook. A taken name yields ErrDuplicate.
func CreateService(ctx context.Context, db *gorm.DB, name string) (*domain.Service, error) {
	s := &domain.Service{ServiceName: name}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// GetServiceByName fetches a service by its unique name, or ErrNotFound.
func GetServiceByName(ctx context.Context, db *gorm.DB, name string) (*domain.Service, error) {
	var s domain.Service
	if err := db.WithContext(ctx).Where("service_name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetServiceToken returns only the signing token of a service, or ErrNotFound.
func GetServiceToken(ctx context.Context, db *gorm.DB, id string) (string, error) {
	var row struct{ Token string }
	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Select("token").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return row.Token, nil
}
