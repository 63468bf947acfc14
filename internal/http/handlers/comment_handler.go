// Comment HTTP handlers.
//
// This file exposes REST endpoints for the comments attached to an item:
//   - POST   /{service_id}/{data_type}/{item_id}/               (create)
//   - GET    /{service_id}/{data_type}/{item_id}/               (list, ETag support)
//   - PUT    /{service_id}/{data_type}/{item_id}/{comment_id}/  (update)
//   - DELETE /{service_id}/{data_type}/{item_id}/{comment_id}/  (soft delete)
//
// Every request carries a signature computed by the calling service over
// service_id + data_type + item_id with its token. Handlers are
// transport-thin: they parse input, call the comment service, and shape the
// result (deleted comments never expose their text).
package handlers

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/http/middleware"
	"github.com/tbourn/go-comments-backend/internal/services"
	"github.com/tbourn/go-comments-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CommentService defines the comment operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CommentService interface {
	// Create adds a comment; replayed reports an Idempotency-Key hit.
	Create(ctx context.Context, in services.CreateCommentInput) (c *domain.Comment, replayed bool, err error)
	// Snapshot returns the comments of an item in tree or flat order together
	// with the item's version, read consistently.
	Snapshot(ctx context.Context, in services.ListCommentsInput) (services.Listing, error)
	// Update applies a partial update and returns the updated comment.
	Update(ctx context.Context, in services.UpdateCommentInput) (*domain.Comment, error)
	// Delete soft-deletes a comment.
	Delete(ctx context.Context, in services.DeleteCommentInput) error
}

// ServiceRegistry defines the service registration operations.
type ServiceRegistry interface {
	// Create registers a service and returns it with its token.
	Create(ctx context.Context, name string) (*domain.Service, error)
	// GetByName looks a service up by its unique name.
	GetByName(ctx context.Context, name string) (*domain.Service, error)
}

//
// Handler wiring
//

// DefaultDeletedPlaceholder is shown instead of the text of deleted comments.
const DefaultDeletedPlaceholder = "Comment deleted"

// Options tunes response shaping.
type Options struct {
	// DeletedPlaceholder replaces commentText when isDeleted is true.
	DeletedPlaceholder string
}

// Handlers groups HTTP endpoints for comments and services.
type Handlers struct {
	comments CommentService
	registry ServiceRegistry
	opts     Options
}

// New constructs and returns a Handlers instance bound to the given services.
func New(comments CommentService, registry ServiceRegistry, opts Options) *Handlers {
	if strings.TrimSpace(opts.DeletedPlaceholder) == "" {
		opts.DeletedPlaceholder = DefaultDeletedPlaceholder
	}
	return &Handlers{comments: comments, registry: registry, opts: opts}
}

//
// DTOs
//

// UserPayload identifies the author of a new comment.
type UserPayload struct {
	// ExternalID is the calling service's own id for the user.
	ExternalID string  `json:"externalId" example:"user-42"`
	FirstName  *string `json:"firstName,omitempty" example:"Ada"`
	LastName   *string `json:"lastName,omitempty" example:"Lovelace"`
	UserGroup  *string `json:"userGroup,omitempty" example:"editors"`
}

// CreateCommentRequest is the JSON payload for creating a comment.
type CreateCommentRequest struct {
	CommentText string      `json:"commentText" example:"Great article!"`
	User        UserPayload `json:"user"`
	// ParentID makes the comment a reply; omit it for a root comment.
	ParentID  *int64 `json:"parentId,omitempty" example:"1"`
	Scope     string `json:"scope,omitempty" enums:"all,admin,registered" example:"all"`
	Signature string `json:"signature" example:"5d41402abc4b2a76b9719d911017c592"`
}

// UpdateCommentRequest is the JSON payload for a partial update. Absent fields
// are left unchanged.
type UpdateCommentRequest struct {
	CommentText *string `json:"commentText,omitempty" example:"Edited text"`
	Scope       *string `json:"scope,omitempty" enums:"all,admin,registered" example:"admin"`
	Signature   string  `json:"signature" example:"5d41402abc4b2a76b9719d911017c592"`
}

// DeleteCommentRequest carries the signature of a delete. The signature may
// also be given as a query parameter.
type DeleteCommentRequest struct {
	Signature string `json:"signature" example:"5d41402abc4b2a76b9719d911017c592"`
}

// UserResponse is the author block of a comment.
type UserResponse struct {
	ID         int64   `json:"id" example:"7"`
	ExternalID string  `json:"externalId" example:"user-42"`
	FirstName  *string `json:"firstName,omitempty" example:"Ada"`
	LastName   *string `json:"lastName,omitempty" example:"Lovelace"`
	UserGroup  *string `json:"userGroup,omitempty" example:"editors"`
}

// CommentResponse is the public shape of a comment.
type CommentResponse struct {
	ID           int64        `json:"id" example:"2"`
	Level        int          `json:"level" example:"2"`
	CommentText  string       `json:"commentText" example:"Great article!"`
	DateCreated  time.Time    `json:"dateCreated"`
	DateModified time.Time    `json:"dateModified"`
	IsDeleted    bool         `json:"isDeleted" example:"false"`
	Scope        string       `json:"scope" example:"all"`
	User         UserResponse `json:"user"`
}

func (h *Handlers) toResponse(c *domain.Comment) CommentResponse {
	text := c.CommentText
	if c.IsDeleted {
		text = h.opts.DeletedPlaceholder
	}
	return CommentResponse{
		ID:           c.ID,
		Level:        c.Level,
		CommentText:  text,
		DateCreated:  c.DateCreated,
		DateModified: c.DateModified,
		IsDeleted:    c.IsDeleted,
		Scope:        string(c.Scope),
		User: UserResponse{
			ID:         c.User.ID,
			ExternalID: c.User.ExternalID,
			FirstName:  c.User.FirstName,
			LastName:   c.User.LastName,
			UserGroup:  c.User.UserGroup,
		},
	}
}

//
// Helpers
//

// itemRef reads the item address from the route.
func itemRef(c *gin.Context) services.ItemRef {
	return services.ItemRef{
		ServiceID: strings.TrimSpace(c.Param("service_id")),
		DataType:  strings.TrimSpace(c.Param("data_type")),
		ItemID:    strings.TrimSpace(c.Param("item_id")),
	}
}

// commentID parses the :comment_id route parameter, writing a 400 on failure.
func commentID(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("comment_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "comment id must be a positive integer")
		return 0, false
	}
	return id, true
}

// listETag builds a weak validator from the request shape and the item's
// version. Item ids are caller-controlled, so the address is hashed.
func listETag(ref services.ItemRef, scope, presentation, parent string, v services.ItemVersion) string {
	sum := sha1.Sum([]byte(strings.Join([]string{ref.ServiceID, ref.DataType, ref.ItemID, scope, presentation, parent}, "\x00")))
	return fmt.Sprintf(`W/"comments:%x:%d:%d:%d"`, sum[:8], v.Count, v.MaxID, v.MaxModified.UnixNano())
}

//
// Handlers
//

// CreateComment godoc
// @ID          createComment
// @Summary     Create a comment
// @Description Adds a root comment, or a reply when parentId is set. The author is created on first use.
// @Description Supports idempotency via the Idempotency-Key header (same key → same comment).
// @Tags        Comments
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       service_id       path    string  true  "Service ID (UUID)"  format(uuid)
// @Param       data_type        path    string  true  "Data type"          Enums(comments)
// @Param       item_id          path    string  true  "Item ID"
// @Param       body             body    handlers.CreateCommentRequest  true  "Comment payload"
//
// @Success     201  {object}  handlers.CommentResponse
// @Header      201  {string}  Idempotency-Replayed  "true when an earlier result was replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Invalid signature"
// @Failure     404  {object}  handlers.ErrorResponse  "Service or parent not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /{service_id}/{data_type}/{item_id}/ [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)

	cm, replayed, err := h.comments.Create(c.Request.Context(), services.CreateCommentInput{
		ItemRef:   itemRef(c),
		Signature: req.Signature,
		Text:      req.CommentText,
		User: services.UserAttrs{
			ExternalID: req.User.ExternalID,
			FirstName:  req.User.FirstName,
			LastName:   req.User.LastName,
			UserGroup:  req.User.UserGroup,
		},
		ParentID:       req.ParentID,
		Scope:          req.Scope,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, h.toResponse(cm))
}

// ListComments godoc
// @ID          listComments
// @Summary     List the comments of an item
// @Description Returns the item's comments in tree (pre-order) or flat (creation) order.
// @Description With parentId, only the replies below that comment are returned.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Comments
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       service_id     path    string  true  "Service ID (UUID)"  format(uuid)
// @Param       data_type      path    string  true  "Data type"          Enums(comments)
// @Param       item_id        path    string  true  "Item ID"
// @Param       signature      query   string  true  "Request signature"
// @Param       presentation   query   string  false "Order"           Enums(tree, flat) default(tree)
// @Param       scope          query   string  false "Visibility"      Enums(all, admin, registered) default(all)
// @Param       parentId       query   int     false "Subtree root"    minimum(1)
// @Param       thread         query   bool    false "With parentId, list the parent's whole thread" default(false)
//
// @Success     200  {array}   handlers.CommentResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Invalid signature"
// @Failure     404  {object}  handlers.ErrorResponse "Service or parent not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /{service_id}/{data_type}/{item_id}/ [get]
func (h *Handlers) ListComments(c *gin.Context) {
	ctx := c.Request.Context()
	ref := itemRef(c)

	parentRaw := strings.TrimSpace(c.Query("parentId"))
	parentID, err := utils.ParseOptionalID(parentRaw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "parentId must be a positive integer")
		return
	}
	thread := false
	if raw := strings.TrimSpace(c.Query("thread")); raw != "" {
		if thread, err = strconv.ParseBool(raw); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread must be a boolean")
			return
		}
	}
	scope := strings.TrimSpace(c.Query("scope"))
	presentation := strings.TrimSpace(c.Query("presentation"))

	l, err := h.comments.Snapshot(ctx, services.ListCommentsInput{
		ItemRef:      ref,
		Signature:    c.Query("signature"),
		Presentation: presentation,
		Scope:        scope,
		ParentID:     parentID,
		Thread:       thread,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	listed := parentRaw
	if thread && parentID != nil {
		listed += "/thread"
	}
	etag := listETag(ref, strings.ToLower(scope), strings.ToLower(presentation), listed, l.Version)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	out := make([]CommentResponse, 0, len(l.Comments))
	for i := range l.Comments {
		out = append(out, h.toResponse(&l.Comments[i]))
	}
	ok(c, http.StatusOK, out)
}

// UpdateComment godoc
// @ID          updateComment
// @Summary     Update a comment
// @Description Changes the text and/or the scope of a comment. Absent fields are kept.
// @Tags        Comments
// @Accept      json
// @Produce     json
//
// @Param       service_id  path  string  true  "Service ID (UUID)"  format(uuid)
// @Param       data_type   path  string  true  "Data type"          Enums(comments)
// @Param       item_id     path  string  true  "Item ID"
// @Param       comment_id  path  int     true  "Comment ID"         minimum(1)
// @Param       body        body  handlers.UpdateCommentRequest  true  "Patch"
//
// @Success     200  {object}  handlers.CommentResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Invalid signature"
// @Failure     404  {object}  handlers.ErrorResponse "Comment not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /{service_id}/{data_type}/{item_id}/{comment_id}/ [put]
func (h *Handlers) UpdateComment(c *gin.Context) {
	id, valid := commentID(c)
	if !valid {
		return
	}
	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cm, err := h.comments.Update(c.Request.Context(), services.UpdateCommentInput{
		ItemRef:   itemRef(c),
		Signature: req.Signature,
		CommentID: id,
		Text:      req.CommentText,
		Scope:     req.Scope,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, h.toResponse(cm))
}

// DeleteComment godoc
// @ID          deleteComment
// @Summary     Delete a comment
// @Description Soft-deletes a comment. Replies stay in place; the deleted comment is listed with placeholder text.
// @Tags        Comments
// @Accept      json
//
// @Param       service_id  path   string  true  "Service ID (UUID)"  format(uuid)
// @Param       data_type   path   string  true  "Data type"          Enums(comments)
// @Param       item_id     path   string  true  "Item ID"
// @Param       comment_id  path   int     true  "Comment ID"         minimum(1)
// @Param       signature   query  string  false "Request signature (when not sent in the body)"
// @Param       body        body   handlers.DeleteCommentRequest  false  "Signature"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Invalid signature"
// @Failure     404  {object}  handlers.ErrorResponse "Comment not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /{service_id}/{data_type}/{item_id}/{comment_id}/ [delete]
func (h *Handlers) DeleteComment(c *gin.Context) {
	id, valid := commentID(c)
	if !valid {
		return
	}
	var req DeleteCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	sig := req.Signature
	if strings.TrimSpace(sig) == "" {
		sig = c.Query("signature")
	}

	if err := h.comments.Delete(c.Request.Context(), services.DeleteCommentInput{
		ItemRef:   itemRef(c),
		Signature: sig,
		CommentID: id,
	}); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
