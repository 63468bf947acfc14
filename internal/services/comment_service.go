// Package services – CommentService
//
// This file implements CommentService, the store for threaded comments. Every
// operation runs in one database transaction that first authenticates the
// request (signature over serviceId+dataType+itemId keyed by the service
// token) and only then reads or writes comments.
//
// Comments are kept as materialized paths (package treepath): a new comment's
// path is its parent's path plus its own freshly allocated id, so listing in
// path order gives the pre-order traversal of the thread and a subtree is a
// single range scan.
//
// Observability: all public methods are OpenTelemetry-instrumented and counted
// in comments_operations_total.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/repo"
	"github.com/tbourn/go-comments-backend/internal/signature"
	"github.com/tbourn/go-comments-backend/internal/treepath"
)

// MaxCommentRunes is the capacity of the comments.comment_text column.
const MaxCommentRunes = 3000

// TokenSource resolves the signing token of a service inside a transaction.
type TokenSource interface {
	Token(ctx context.Context, tx *gorm.DB, serviceID string) (string, error)
}

// ItemRef addresses the comments attached to one item of one service.
type ItemRef struct {
	ServiceID string
	DataType  string
	ItemID    string
}

func (r ItemRef) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.id", r.ServiceID),
		attribute.String("data_type", r.DataType),
		attribute.String("item.id", r.ItemID),
	}
}

// CreateCommentInput is a request to add a comment.
type CreateCommentInput struct {
	ItemRef
	Signature string
	Text      string
	User      UserAttrs
	ParentID  *int64
	Scope     string // empty means all

	// IdempotencyKey, when set, makes retries replay the first result.
	IdempotencyKey string
}

// ListCommentsInput is a request to read the comments of an item.
type ListCommentsInput struct {
	ItemRef
	Signature    string
	Presentation string // empty means tree
	Scope        string // empty means all
	ParentID     *int64
	// Thread widens a ParentID listing to every reply in the parent's thread.
	Thread bool
}

// UpdateCommentInput is a partial update. Nil fields are left unchanged.
type UpdateCommentInput struct {
	ItemRef
	Signature string
	CommentID int64
	Text      *string
	Scope     *string
}

// DeleteCommentInput is a request to soft-delete a comment.
type DeleteCommentInput struct {
	ItemRef
	Signature string
	CommentID int64
}

// ItemVersion summarizes the comments of an item for conditional responses.
type ItemVersion struct {
	Count       int64
	MaxID       int64
	MaxModified time.Time
}

// Listing is a consistent read of an item: the requested comments and the
// version of the whole item at that moment.
type Listing struct {
	Comments []domain.Comment
	Version  ItemVersion
}

// CommentService coordinates authentication, author resolution and
// persistence of comments.
type CommentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Tokens resolves service tokens for signature checks.
	Tokens TokenSource
	// Users resolves comment authors.
	Users UserDirectory

	// MaxTextRunes caps comment text; <= 0 or above MaxCommentRunes means MaxCommentRunes.
	MaxTextRunes int
	// IdempotencyTTL is how long an Idempotency-Key replays its comment.
	IdempotencyTTL time.Duration

	// Now returns the current time; tests may override it.
	Now func() time.Time
}

// NewCommentService constructs a CommentService with default limits.
func NewCommentService(db *gorm.DB, tokens TokenSource) *CommentService {
	return &CommentService{
		DB:             db,
		Tokens:         tokens,
		MaxTextRunes:   MaxCommentRunes,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Create authenticates the request, resolves (or creates) the author and the
// optional parent, allocates an id and inserts the comment. The returned
// comment carries its author. replayed is true when IdempotencyKey matched a
// previous creation and that comment was returned instead.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (c *domain.Comment, replayed bool, err error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Create",
		trace.WithAttributes(in.ItemRef.attrs()...),
	)
	defer span.End()
	defer func() { observe("create", err) }()

	if err := checkDataType(in.DataType); err != nil {
		return nil, false, err
	}
	text, err := s.normalizeText(in.Text)
	if err != nil {
		return nil, false, err
	}
	scope, ok := domain.ParseScope(in.Scope)
	if !ok {
		return nil, false, ErrInvalidScope
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorize(ctx, tx, in.ItemRef, in.Signature); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			prev, err := s.replay(ctx, tx, in.ItemRef, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				c, replayed = prev, true
				return nil
			}
		}

		author, err := s.Users.GetOrCreate(ctx, tx, in.ServiceID, in.User)
		if err != nil {
			return err
		}

		parent, err := s.ResolvePath(ctx, tx, in.ParentID)
		if err != nil {
			return err
		}
		if parent != "" && !parent.HasRoomForChild() {
			return fmt.Errorf("%w: at most %d levels", ErrTooDeep, treepath.MaxDepth)
		}

		id, err := repo.NextCommentID(ctx, tx)
		if err != nil {
			return err
		}
		path := treepath.Child(parent, id)

		now := s.now()
		nc := &domain.Comment{
			ID:           id,
			Path:         domain.PathColumn(path),
			Level:        path.Level(),
			ServiceID:    in.ServiceID,
			DataType:     in.DataType,
			ItemID:       in.ItemID,
			Scope:        scope,
			CommentText:  text,
			IsDeleted:    false,
			DateCreated:  now,
			DateModified: now,
			UserID:       author.ID,
		}
		if err := repo.CreateComment(ctx, tx, nc); err != nil {
			return err
		}
		nc.User = *author

		if in.IdempotencyKey != "" {
			s.remember(ctx, tx, in.ItemRef, in.IdempotencyKey, nc.ID)
		}
		c = nc
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	span.SetAttributes(attribute.Int64("comment.id", c.ID), attribute.Bool("idempotency.replayed", replayed))
	if !replayed {
		zerolog.Ctx(ctx).Info().
			Int64("comment_id", c.ID).
			Int("level", c.Level).
			Str("service_id", in.ServiceID).
			Msg("comment created")
	}
	return c, replayed, nil
}

// List authenticates the request and returns the comments of the item in the
// requested scope. Tree order is the pre-order traversal of the threads; flat
// order is by creation time. With ParentID set, only strict descendants of
// that comment (which must belong to the same item) are returned. Thread
// widens that to every reply under the parent's top-level comment, which
// itself is left out. Thread without ParentID is ignored.
func (s *CommentService) List(ctx context.Context, in ListCommentsInput) ([]domain.Comment, error) {
	l, err := s.Snapshot(ctx, in)
	if err != nil {
		return nil, err
	}
	return l.Comments, nil
}

// Snapshot is List plus the item's version, both read in one transaction so
// the version always describes the returned rows.
func (s *CommentService) Snapshot(ctx context.Context, in ListCommentsInput) (out Listing, err error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Snapshot",
		trace.WithAttributes(in.ItemRef.attrs()...),
	)
	defer span.End()
	defer func() { observe("list", err) }()

	if err := checkDataType(in.DataType); err != nil {
		return Listing{}, err
	}
	presentation, ok := domain.ParsePresentation(in.Presentation)
	if !ok {
		return Listing{}, ErrInvalidPresentation
	}
	scope, ok := domain.ParseScope(in.Scope)
	if !ok {
		return Listing{}, ErrInvalidScope
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorize(ctx, tx, in.ItemRef, in.Signature); err != nil {
			return err
		}

		f := repo.CommentFilter{
			ServiceID: in.ServiceID,
			DataType:  in.DataType,
			ItemID:    in.ItemID,
			Scope:     scope,
			Order:     presentation,
		}
		if in.ParentID != nil {
			p, err := repo.GetComment(ctx, tx, repo.CommentKey{
				ID: *in.ParentID, ServiceID: in.ServiceID, DataType: in.DataType, ItemID: in.ItemID,
			})
			if err != nil {
				if repo.IsNotFound(err) {
					return ErrParentNotFound
				}
				return err
			}
			f.Under = string(p.Path)
			if in.Thread {
				f.Under = treepath.Path(p.Path).RootSegment()
			}
		}

		rows, err := repo.ListComments(ctx, tx, f)
		if err != nil {
			return err
		}
		v, err := s.version(ctx, tx, in.ItemRef)
		if err != nil {
			return err
		}
		out = Listing{Comments: rows, Version: v}
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	span.SetAttributes(attribute.Int("comments.count", len(out.Comments)))
	return out, nil
}

// Update authenticates the request and applies the present fields of the
// patch. Text and scope are validated independently; a patch with neither
// yields ErrEmptyPatch. DateModified is bumped and the updated comment is
// returned with its author.
func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (c *domain.Comment, err error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Update",
		trace.WithAttributes(append(in.ItemRef.attrs(), attribute.Int64("comment.id", in.CommentID))...),
	)
	defer span.End()
	defer func() { observe("update", err) }()

	if err := checkDataType(in.DataType); err != nil {
		return nil, err
	}
	if in.Text == nil && in.Scope == nil {
		return nil, ErrEmptyPatch
	}

	fields := map[string]any{}
	var (
		text  string
		scope domain.Scope
	)
	if in.Text != nil {
		t, err := s.normalizeText(*in.Text)
		if err != nil {
			return nil, err
		}
		text = t
		fields["comment_text"] = text
	}
	if in.Scope != nil {
		sc, ok := domain.ParseScope(*in.Scope)
		if !ok || strings.TrimSpace(*in.Scope) == "" {
			return nil, ErrInvalidScope
		}
		scope = sc
		fields["scope"] = string(scope)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorize(ctx, tx, in.ItemRef, in.Signature); err != nil {
			return err
		}
		cur, err := s.load(ctx, tx, in.ItemRef, in.CommentID)
		if err != nil {
			return err
		}

		now := s.now()
		fields["date_modified"] = now
		if err := repo.UpdateCommentFields(ctx, tx, cur.ID, fields); err != nil {
			return err
		}

		if in.Text != nil {
			cur.CommentText = text
		}
		if in.Scope != nil {
			cur.Scope = scope
		}
		cur.DateModified = now
		c = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete authenticates the request and soft-deletes the comment. Replies are
// left untouched, so the thread keeps its shape. Deleting an already deleted
// comment succeeds.
func (s *CommentService) Delete(ctx context.Context, in DeleteCommentInput) (err error) {
	ctx, span := otel.Tracer("services/CommentService").Start(ctx, "Delete",
		trace.WithAttributes(append(in.ItemRef.attrs(), attribute.Int64("comment.id", in.CommentID))...),
	)
	defer span.End()
	defer func() { observe("delete", err) }()

	if err := checkDataType(in.DataType); err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.authorize(ctx, tx, in.ItemRef, in.Signature); err != nil {
			return err
		}
		cur, err := s.load(ctx, tx, in.ItemRef, in.CommentID)
		if err != nil {
			return err
		}
		return repo.UpdateCommentFields(ctx, tx, cur.ID, map[string]any{
			"is_deleted":    true,
			"date_modified": s.now(),
		})
	})
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int64("comment_id", in.CommentID).Str("service_id", in.ServiceID).Msg("comment deleted")
	return nil
}

// ResolvePath returns the stored path of comment id, looked up across all
// services and items. A nil id means "no parent" and yields the empty path.
func (s *CommentService) ResolvePath(ctx context.Context, tx *gorm.DB, id *int64) (treepath.Path, error) {
	if id == nil {
		return "", nil
	}
	if tx == nil {
		tx = s.DB
	}
	raw, err := repo.GetCommentPath(ctx, tx, *id)
	if err != nil {
		if repo.IsNotFound(err) {
			return "", ErrParentNotFound
		}
		return "", err
	}
	p, err := treepath.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("comment %d: %w", *id, err)
	}
	if p.ID() != *id {
		return "", fmt.Errorf("comment %d: stored path %q ends in %d", *id, raw, p.ID())
	}
	return p, nil
}

// version reports the aggregate state of an item's comments as seen by tx.
func (s *CommentService) version(ctx context.Context, tx *gorm.DB, ref ItemRef) (ItemVersion, error) {
	count, maxID, maxAt, err := repo.CommentsStats(ctx, tx, ref.ServiceID, ref.DataType, ref.ItemID)
	if err != nil {
		return ItemVersion{}, err
	}
	v := ItemVersion{Count: count, MaxID: maxID}
	if maxAt != nil {
		v.MaxModified = *maxAt
	}
	return v, nil
}

// authorize verifies sig against the token of ref.ServiceID.
func (s *CommentService) authorize(ctx context.Context, tx *gorm.DB, ref ItemRef, sig string) error {
	token, err := s.Tokens.Token(ctx, tx, ref.ServiceID)
	if err != nil {
		return err
	}
	if !signature.Verify(token, signature.Message(ref.ServiceID, ref.DataType, ref.ItemID), strings.TrimSpace(sig)) {
		return ErrUnauthorized
	}
	return nil
}

// load fetches the addressed comment or returns ErrCommentNotFound.
func (s *CommentService) load(ctx context.Context, tx *gorm.DB, ref ItemRef, id int64) (*domain.Comment, error) {
	c, err := repo.GetComment(ctx, tx, repo.CommentKey{
		ID: id, ServiceID: ref.ServiceID, DataType: ref.DataType, ItemID: ref.ItemID,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return c, nil
}

// replay returns the comment recorded for key, or nil when there is none.
func (s *CommentService) replay(ctx context.Context, tx *gorm.DB, ref ItemRef, key string) (*domain.Comment, error) {
	rec, err := repo.GetIdempotency(ctx, tx, ref.ServiceID, domain.ItemKey(ref.DataType, ref.ItemID), key, s.now())
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	c, err := repo.GetComment(ctx, tx, repo.CommentKey{
		ID: rec.CommentID, ServiceID: ref.ServiceID, DataType: ref.DataType, ItemID: ref.ItemID,
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// remember records key -> commentID. It is best effort: a concurrent request
// that recorded the same key first wins, and the savepoint keeps the outer
// transaction usable.
func (s *CommentService) remember(ctx context.Context, tx *gorm.DB, ref ItemRef, key string, commentID int64) {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		_, err := repo.CreateIdempotency(ctx, sp, ref.ServiceID, domain.ItemKey(ref.DataType, ref.ItemID), key, commentID, http.StatusCreated, ttl)
		return err
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency record not stored")
	}
}

// normalizeText unifies line endings, applies NFC, trims and checks length.
func (s *CommentService) normalizeText(raw string) (string, error) {
	t := strings.ReplaceAll(raw, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	t = strings.TrimSpace(norm.NFC.String(t))
	if t == "" {
		return "", ErrEmptyText
	}
	limit := s.MaxTextRunes
	if limit <= 0 || limit > MaxCommentRunes {
		limit = MaxCommentRunes
	}
	if n := utf8.RuneCountInString(t); n > limit {
		return "", fmt.Errorf("%w: %d runes, max %d", ErrTextTooLong, n, limit)
	}
	return t, nil
}

func (s *CommentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func checkDataType(dt string) error {
	if !domain.ValidDataType(dt) {
		return fmt.Errorf("%w: %q", ErrInvalidDataType, dt)
	}
	return nil
}

// Compile-time check.
var _ TokenSource = (*ServiceRegistry)(nil)
