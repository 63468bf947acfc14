// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Comment
// model and its id sequence.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a comment is not found, functions return ErrNotFound.
//   - On DB errors, the raw gorm error is propagated.
//
// Functions:
//
//   - NextCommentID(ctx, db) -> int64, error
//     Allocates the next comment id from the comment_id_seq table.
//
//   - CreateComment(ctx, db, c) -> error
//     Inserts a fully built comment row (id, path and level precomputed).
//
//   - GetCommentPath(ctx, db, id) -> string, error
//     Returns the stored path of any comment.
//
//   - GetComment(ctx, db, key) -> *domain.Comment, error
//     Fetches one comment of an item together with its author.
//
//   - ListComments(ctx, db, filter) -> []domain.Comment, error
//     Returns the comments of an item in tree or flat order.
//
//   - UpdateCommentFields(ctx, db, id, fields) -> error
//     Applies a column patch to one comment.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/treepath"
)

// CommentKey addresses one comment within one item of one service.
type CommentKey struct {
	ID        int64
	ServiceID string
	DataType  string
	ItemID    string
}

// CommentFilter selects comments of one item for listing.
type CommentFilter struct {
	ServiceID string
	DataType  string
	ItemID    string
	Scope     domain.Scope

	// Under restricts the result to strict descendants of this path.
	Under string

	Order domain.Presentation
}

// NextCommentID allocates a fresh id from the engine's auto-increment.
// Concurrent callers never receive the same id.
func NextCommentID(ctx context.Context, db *gorm.DB) (int64, error) {
	seq := &domain.CommentSeq{AllocatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(seq).Error; err != nil {
		return 0, err
	}
	return seq.ID, nil
}

// CreateComment inserts c. The author must already exist.
func CreateComment(ctx context.Context, db *gorm.DB, c *domain.Comment) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

// GetCommentPath returns the path of comment id regardless of which service
// or item it belongs to.
func GetCommentPath(ctx context.Context, db *gorm.DB, id int64) (string, error) {
	var row struct{ Path string }
	res := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Select("path").
		Where("id = ?", id).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return row.Path, nil
}

// GetComment fetches the comment addressed by key with its author, or
// ErrNotFound.
func GetComment(ctx context.Context, db *gorm.DB, key CommentKey) (*domain.Comment, error) {
	var c domain.Comment
	err := db.WithContext(ctx).
		InnerJoins("User").
		Where("comments.id = ? AND comments.service_id = ? AND comments.data_type = ? AND comments.item_id = ?",
			key.ID, key.ServiceID, key.DataType, key.ItemID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments returns the comments matching f with their authors. Tree order
// sorts by path, which is the pre-order traversal of the thread; flat order
// sorts by creation time with the id as tie breaker. It returns an empty,
// non-nil slice when nothing matches.
func ListComments(ctx context.Context, db *gorm.DB, f CommentFilter) ([]domain.Comment, error) {
	q := db.WithContext(ctx).
		InnerJoins("User").
		Where("comments.service_id = ? AND comments.data_type = ? AND comments.item_id = ? AND comments.scope = ?",
			f.ServiceID, f.DataType, f.ItemID, f.Scope)

	if f.Under != "" {
		lo, hi := treepath.Path(f.Under).DescendantRange()
		q = q.Where("comments.path >= ? AND comments.path < ?", lo, hi)
	}

	switch f.Order {
	case domain.PresentationFlat:
		q = q.Order("comments.date_created ASC, comments.id ASC")
	default:
		q = q.Order("comments.path ASC")
	}

	out := []domain.Comment{}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCommentFields applies fields (column name to value) to comment id.
// It returns ErrNotFound when no row has that id.
func UpdateCommentFields(ctx context.Context, db *gorm.DB, id int64, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Comment{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
