package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
)

// GetIdempotency returns the record for key on the item while it is still
// live at now. Blank service ids or keys never match.
func GetIdempotency(ctx context.Context, db *gorm.DB, serviceID, itemKey, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(serviceID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	rec := new(domain.Idempotency)
	q := db.WithContext(ctx).
		Where(map[string]any{"service_id": serviceID, "item_key": itemKey, "idem_key": key}).
		Where("expires_at > ?", now)
	switch err := q.Take(rec).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return rec, nil
}

// CreateIdempotency remembers that key produced commentID. A second record for
// the same (service, item, key) yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, serviceID, itemKey, key string, commentID int64, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ServiceID: serviceID,
		ItemKey:   itemKey,
		Key:       key,
		CommentID: commentID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose TTL has passed and returns how
// many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
