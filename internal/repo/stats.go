// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
)

// CommentsStats returns aggregate metadata for the comments of one item: the
// total number of rows, the greatest id and the greatest DateModified.
//
// Every create raises the max id and every update or delete raises the max
// DateModified, so the triple changes whenever a listing of the item could.
// When the item has no comments, count is 0 and maxModified is nil.
func CommentsStats(ctx context.Context, db *gorm.DB, serviceID, dataType, itemID string) (count, maxID int64, maxModified *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Comment{}).
		Where("service_id = ? AND data_type = ? AND item_id = ?", serviceID, dataType, itemID)

	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	var idRow struct{ ID int64 }
	if err = q.Session(&gorm.Session{}).Select("id").Order("id DESC").Limit(1).Scan(&idRow).Error; err != nil {
		return 0, 0, nil, err
	}

	// Get latest date_modified (avoid MAX() -> TEXT in SQLite)
	var tsRow struct{ DateModified time.Time }
	if err = q.Session(&gorm.Session{}).Select("date_modified").Order("date_modified DESC").Limit(1).Scan(&tsRow).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, idRow.ID, &tsRow.DateModified, nil
}
