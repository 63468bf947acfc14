package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/repo"
	"github.com/tbourn/go-comments-backend/internal/signature"
)

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite("file:svc_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	// One connection keeps concurrent transactions serialized on SQLite.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// stepClock returns a Now func that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

type fixture struct {
	db   *gorm.DB
	reg  *ServiceRegistry
	svc  *CommentService
	site *domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	reg := NewServiceRegistry(db, nil)
	site, err := reg.Create(context.Background(), "blog")
	if err != nil {
		t.Fatalf("register service: %v", err)
	}
	cs := NewCommentService(db, reg)
	cs.Now = stepClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return &fixture{db: db, reg: reg, svc: cs, site: site}
}

func (f *fixture) ref(item string) ItemRef {
	return ItemRef{ServiceID: f.site.ID, DataType: domain.DataTypeComments, ItemID: item}
}

func (f *fixture) sig(item string) string {
	return signature.Sign(f.site.Token, signature.Message(f.site.ID, domain.DataTypeComments, item))
}

func (f *fixture) create(t *testing.T, item, text string, parent *int64) *domain.Comment {
	t.Helper()
	c, _, err := f.svc.Create(context.Background(), CreateCommentInput{
		ItemRef:   f.ref(item),
		Signature: f.sig(item),
		Text:      text,
		User:      UserAttrs{ExternalID: "u-1"},
		ParentID:  parent,
	})
	if err != nil {
		t.Fatalf("create %q: %v", text, err)
	}
	return c
}

func ptr[T any](v T) *T { return &v }
