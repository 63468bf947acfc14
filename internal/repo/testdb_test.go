package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/treepath"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite("file:repo_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newBareDB opens a private in-memory database without any tables.
func newBareDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite("file:repo_bare_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedService(t *testing.T, db *gorm.DB, name string) *domain.Service {
	t.Helper()
	s, err := CreateService(context.Background(), db, name)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return s
}

func seedUser(t *testing.T, db *gorm.DB, serviceID, ext string) *domain.User {
	t.Helper()
	u := &domain.User{ServiceID: serviceID, ExternalID: ext}
	if err := CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedComment allocates an id and inserts a comment under parent ("" for a root).
func seedComment(t *testing.T, db *gorm.DB, svc, item string, userID int64, parent domain.PathColumn, scope domain.Scope, created time.Time) *domain.Comment {
	t.Helper()
	ctx := context.Background()
	id, err := NextCommentID(ctx, db)
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	p := treepath.Child(treepath.Path(parent), id)
	c := &domain.Comment{
		ID:           id,
		Path:         domain.PathColumn(p),
		Level:        p.Level(),
		ServiceID:    svc,
		DataType:     domain.DataTypeComments,
		ItemID:       item,
		Scope:        scope,
		CommentText:  "text " + p.String(),
		DateCreated:  created,
		DateModified: created,
		UserID:       userID,
	}
	if err := CreateComment(ctx, db, c); err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return c
}
