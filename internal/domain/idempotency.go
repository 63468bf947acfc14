package domain

import "time"

// Idempotency records the comment produced by a create request, keyed by
// (service_id, item_key, key). A retried request carrying the same
// Idempotency-Key replays the recorded comment instead of inserting again.
//
// ItemKey is "<data_type>/<item_id>" so one key namespace covers every item of
// a service.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ServiceID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_service_item_key,priority:1"`
	ItemKey   string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_service_item_key,priority:2"`
	Key       string    `gorm:"column:idem_key;type:varchar(200);not null;uniqueIndex:ux_service_item_key,priority:3"`
	CommentID int64     `gorm:"not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// ItemKey builds the Idempotency.ItemKey for an item.
func ItemKey(dataType, itemID string) string {
	return dataType + "/" + itemID
}
