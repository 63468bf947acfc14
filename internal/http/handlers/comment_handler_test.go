package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-comments-backend/internal/domain"
	"github.com/tbourn/go-comments-backend/internal/http/middleware"
	"github.com/tbourn/go-comments-backend/internal/repo"
	"github.com/tbourn/go-comments-backend/internal/services"
	"github.com/tbourn/go-comments-backend/internal/signature"
)

// ---------- full stack on in-memory SQLite ----------

type stack struct {
	r    *gin.Engine
	site *domain.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite("file:handlers_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	reg := services.NewServiceRegistry(db, nil)
	site, err := reg.Create(context.Background(), "blog")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	h := New(services.NewCommentService(db, reg), reg, Options{DeletedPlaceholder: "[gone]"})

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/service/", h.RegisterService)
	r.GET("/service/", h.GetService)
	r.POST("/:service_id/:data_type/:item_id/", h.CreateComment)
	r.GET("/:service_id/:data_type/:item_id/", h.ListComments)
	r.PUT("/:service_id/:data_type/:item_id/:comment_id/", h.UpdateComment)
	r.DELETE("/:service_id/:data_type/:item_id/:comment_id/", h.DeleteComment)
	return &stack{r: r, site: site}
}

func (s *stack) sig(item string) string {
	return signature.Sign(s.site.Token, signature.Message(s.site.ID, "comments", item))
}

func (s *stack) itemURL(item string) string {
	return "/" + s.site.ID + "/comments/" + item + "/"
}

func (s *stack) do(t *testing.T, method, url string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *stack) create(t *testing.T, item, text string, parent *int64) CommentResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, s.itemURL(item), gin.H{
		"commentText": text,
		"user":        gin.H{"externalId": "u-1", "firstName": "Ada"},
		"parentId":    parent,
		"signature":   s.sig(item),
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q -> %d %s", text, w.Code, w.Body.String())
	}
	var out CommentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []CommentResponse {
	t.Helper()
	var out []CommentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return out
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return er.Code
}

// ---------- create / list ----------

func TestCreateAndList_Thread(t *testing.T) {
	s := newStack(t)

	root := s.create(t, "post-1", "root", nil)
	if root.ID != 1 || root.Level != 1 || root.Scope != "all" || root.User.ExternalID != "u-1" {
		t.Fatalf("unexpected root: %+v", root)
	}
	if root.User.FirstName == nil || *root.User.FirstName != "Ada" {
		t.Fatalf("author first name not returned: %+v", root.User)
	}
	reply := s.create(t, "post-1", "reply", &root.ID)
	if reply.ID != 2 || reply.Level != 2 || reply.User.ID != root.User.ID {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	s.create(t, "post-1", "second root", nil)

	w := s.do(t, http.MethodGet, s.itemURL("post-1")+"?signature="+s.sig("post-1"), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d %s", w.Code, w.Body.String())
	}
	got := decodeList(t, w)
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("tree order unexpected: %+v", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}

	// Subtree
	w = s.do(t, http.MethodGet, fmt.Sprintf("%s?signature=%s&parentId=%d", s.itemURL("post-1"), s.sig("post-1"), root.ID), nil, nil)
	if got := decodeList(t, w); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("subtree unexpected: %+v", got)
	}
}

func TestListComments_WholeThread(t *testing.T) {
	s := newStack(t)
	root := s.create(t, "p", "root", nil)
	a := s.create(t, "p", "a", &root.ID)
	a1 := s.create(t, "p", "a1", &a.ID)
	b := s.create(t, "p", "b", &root.ID)
	s.create(t, "p", "other root", nil)

	base := fmt.Sprintf("%s?signature=%s&parentId=%d", s.itemURL("p"), s.sig("p"), a1.ID)
	w := s.do(t, http.MethodGet, base, nil, nil)
	if got := decodeList(t, w); len(got) != 0 {
		t.Fatalf("leaf subtree should be empty: %+v", got)
	}
	subtreeTag := w.Header().Get("ETag")

	w = s.do(t, http.MethodGet, base+"&thread=true", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thread -> %d %s", w.Code, w.Body.String())
	}
	got := decodeList(t, w)
	if len(got) != 3 || got[0].ID != a.ID || got[1].ID != a1.ID || got[2].ID != b.ID {
		t.Fatalf("thread unexpected: %+v", got)
	}
	if w.Header().Get("ETag") == subtreeTag {
		t.Fatalf("thread and subtree views must not share an ETag")
	}
}

func TestListComments_EmptyIsArray(t *testing.T) {
	s := newStack(t)
	w := s.do(t, http.MethodGet, s.itemURL("nothing")+"?signature="+s.sig("nothing"), nil, nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty list -> %d %q", w.Code, w.Body.String())
	}
}

func TestListComments_ETagNotModified(t *testing.T) {
	s := newStack(t)
	c := s.create(t, "p", "hello", nil)
	url := s.itemURL("p") + "?signature=" + s.sig("p")

	first := s.do(t, http.MethodGet, url, nil, nil)
	etag := first.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"comments:`) {
		t.Fatalf("etag = %q", etag)
	}

	w := s.do(t, http.MethodGet, url, nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// A different view of the same item has its own validator.
	w = s.do(t, http.MethodGet, url+"&presentation=flat", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("flat view with tree etag -> %d", w.Code)
	}

	// Any change invalidates it.
	upd := s.do(t, http.MethodPut, fmt.Sprintf("%s%d/", s.itemURL("p"), c.ID), gin.H{
		"scope": "admin", "signature": s.sig("p"),
	}, nil)
	if upd.Code != http.StatusOK {
		t.Fatalf("update -> %d", upd.Code)
	}
	w = s.do(t, http.MethodGet, url, nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("expected fresh 200 after update, got %d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}

func TestCreateComment_ErrorMapping(t *testing.T) {
	s := newStack(t)
	missing := int64(99)

	cases := []struct {
		name   string
		url    string
		body   any
		status int
		code   string
	}{
		{"bad json", s.itemURL("p"), "not an object", http.StatusBadRequest, ErrCodeBadRequest},
		{"wrong signature", s.itemURL("p"), gin.H{"commentText": "x", "user": gin.H{"externalId": "u"}, "signature": s.sig("other")}, http.StatusForbidden, ErrCodeForbidden},
		{"unknown service", "/" + uuid.NewString() + "/comments/p/", gin.H{"commentText": "x", "user": gin.H{"externalId": "u"}, "signature": "00"}, http.StatusNotFound, ErrCodeNotFound},
		{"missing parent", s.itemURL("p"), gin.H{"commentText": "x", "user": gin.H{"externalId": "u"}, "parentId": missing, "signature": s.sig("p")}, http.StatusNotFound, ErrCodeNotFound},
		{"empty text", s.itemURL("p"), gin.H{"commentText": "  ", "user": gin.H{"externalId": "u"}, "signature": s.sig("p")}, http.StatusBadRequest, ErrCodeBadRequest},
		{"no author", s.itemURL("p"), gin.H{"commentText": "x", "signature": s.sig("p")}, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad scope", s.itemURL("p"), gin.H{"commentText": "x", "user": gin.H{"externalId": "u"}, "scope": "friends", "signature": s.sig("p")}, http.StatusBadRequest, ErrCodeBadRequest},
		{"bad data type", "/" + s.site.ID + "/posts/p/", gin.H{"commentText": "x", "user": gin.H{"externalId": "u"}, "signature": "00"}, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tc.url, tc.body, nil)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if got := errCode(t, w); got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
		})
	}
}

func TestCreateComment_IdempotentReplay(t *testing.T) {
	s := newStack(t)
	body := gin.H{"commentText": "once", "user": gin.H{"externalId": "u"}, "signature": s.sig("p")}
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "key-1"}

	w1 := s.do(t, http.MethodPost, s.itemURL("p"), body, hdr)
	w2 := s.do(t, http.MethodPost, s.itemURL("p"), body, hdr)
	if w1.Code != http.StatusCreated || w2.Code != http.StatusCreated {
		t.Fatalf("codes %d/%d", w1.Code, w2.Code)
	}
	if w1.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first response must not be marked replayed")
	}
	if w2.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("second response must be marked replayed")
	}
	var a, b CommentResponse
	_ = json.Unmarshal(w1.Body.Bytes(), &a)
	_ = json.Unmarshal(w2.Body.Bytes(), &b)
	if a.ID != b.ID {
		t.Fatalf("replay returned a different comment: %d vs %d", a.ID, b.ID)
	}

	list := decodeList(t, s.do(t, http.MethodGet, s.itemURL("p")+"?signature="+s.sig("p"), nil, nil))
	if len(list) != 1 {
		t.Fatalf("expected a single stored comment, got %d", len(list))
	}
}

func TestListComments_BadQuery(t *testing.T) {
	s := newStack(t)
	base := s.itemURL("p") + "?signature=" + s.sig("p")
	for _, q := range []string{"&parentId=abc", "&parentId=0", "&presentation=sideways", "&scope=nobody", "&thread=maybe"} {
		w := s.do(t, http.MethodGet, base+q, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s -> %d", q, w.Code)
		}
	}
	w := s.do(t, http.MethodGet, s.itemURL("p")+"?signature=bad", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("bad signature -> %d", w.Code)
	}
	w = s.do(t, http.MethodGet, base+"&parentId=42", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing parent -> %d", w.Code)
	}
}

// ---------- update / delete ----------

func TestUpdateComment(t *testing.T) {
	s := newStack(t)
	c := s.create(t, "p", "before", nil)
	url := fmt.Sprintf("%s%d/", s.itemURL("p"), c.ID)

	w := s.do(t, http.MethodPut, url, gin.H{"commentText": "after", "signature": s.sig("p")}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update -> %d %s", w.Code, w.Body.String())
	}
	var got CommentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.CommentText != "after" || got.Scope != "all" || got.User.ExternalID != "u-1" {
		t.Fatalf("unexpected updated comment: %+v", got)
	}
	if !got.DateModified.After(got.DateCreated) && !got.DateModified.Equal(got.DateCreated) {
		t.Fatalf("dateModified before dateCreated: %+v", got)
	}

	cases := []struct {
		name   string
		url    string
		body   any
		status int
	}{
		{"empty patch", url, gin.H{"signature": s.sig("p")}, http.StatusBadRequest},
		{"bad id", s.itemURL("p") + "abc/", gin.H{"commentText": "x", "signature": s.sig("p")}, http.StatusBadRequest},
		{"unknown id", s.itemURL("p") + "999/", gin.H{"commentText": "x", "signature": s.sig("p")}, http.StatusNotFound},
		{"other item", fmt.Sprintf("%s%d/", s.itemURL("q"), c.ID), gin.H{"commentText": "x", "signature": s.sig("q")}, http.StatusNotFound},
		{"wrong signature", url, gin.H{"commentText": "x", "signature": s.sig("q")}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := s.do(t, http.MethodPut, tc.url, tc.body, nil); w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestDeleteComment_PlaceholderAndIdempotent(t *testing.T) {
	s := newStack(t)
	root := s.create(t, "p", "secret words", nil)
	s.create(t, "p", "child", &root.ID)
	url := fmt.Sprintf("%s%d/", s.itemURL("p"), root.ID)

	// Signature in the body.
	w := s.do(t, http.MethodDelete, url, gin.H{"signature": s.sig("p")}, nil)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("delete -> %d %q", w.Code, w.Body.String())
	}
	// Signature in the query, no body; deleting again succeeds.
	w = s.do(t, http.MethodDelete, url+"?signature="+s.sig("p"), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("second delete -> %d %s", w.Code, w.Body.String())
	}

	list := decodeList(t, s.do(t, http.MethodGet, s.itemURL("p")+"?signature="+s.sig("p"), nil, nil))
	if len(list) != 2 {
		t.Fatalf("expected root and child, got %d", len(list))
	}
	if !list[0].IsDeleted || list[0].CommentText != "[gone]" {
		t.Fatalf("deleted comment not shaped: %+v", list[0])
	}
	if list[1].IsDeleted || list[1].CommentText != "child" {
		t.Fatalf("child must be untouched: %+v", list[1])
	}

	if w := s.do(t, http.MethodDelete, s.itemURL("p")+"77/", gin.H{"signature": s.sig("p")}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete unknown -> %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, url, gin.H{"signature": "nope"}, nil); w.Code != http.StatusForbidden {
		t.Fatalf("delete with bad signature -> %d", w.Code)
	}
}

// ---------- fakes: shaping and internal errors ----------

type fakeComments struct {
	create func(context.Context, services.CreateCommentInput) (*domain.Comment, bool, error)
	list   func(context.Context, services.ListCommentsInput) (services.Listing, error)
}

func (f fakeComments) Create(ctx context.Context, in services.CreateCommentInput) (*domain.Comment, bool, error) {
	return f.create(ctx, in)
}

func (f fakeComments) Snapshot(ctx context.Context, in services.ListCommentsInput) (services.Listing, error) {
	return f.list(ctx, in)
}

func (fakeComments) Update(context.Context, services.UpdateCommentInput) (*domain.Comment, error) {
	return nil, errors.New("not implemented")
}

func (fakeComments) Delete(context.Context, services.DeleteCommentInput) error {
	return errors.New("not implemented")
}

func TestCreateComment_PassesTrimmedRouteAndKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen services.CreateCommentInput
	h := New(fakeComments{
		create: func(_ context.Context, in services.CreateCommentInput) (*domain.Comment, bool, error) {
			seen = in
			return &domain.Comment{ID: 5, Level: 1, CommentText: in.Text, Scope: domain.ScopeAll}, false, nil
		},
	}, nil, Options{})

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/:service_id/:data_type/:item_id/", h.CreateComment)

	req := httptest.NewRequest(http.MethodPost, "/svc/comments/item%201/",
		strings.NewReader(`{"commentText":"hi","user":{"externalId":"u"},"parentId":3,"scope":"admin","signature":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, " k-9 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if seen.ServiceID != "svc" || seen.DataType != "comments" || seen.ItemID != "item 1" {
		t.Fatalf("route not mapped: %+v", seen.ItemRef)
	}
	if seen.ParentID == nil || *seen.ParentID != 3 || seen.Scope != "admin" || seen.Signature != "s" {
		t.Fatalf("body not mapped: %+v", seen)
	}
	if seen.IdempotencyKey != "k-9" || seen.User.ExternalID != "u" {
		t.Fatalf("key/user not mapped: %+v", seen)
	}
}

func TestListComments_InternalErrorIsHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(fakeComments{
		list: func(context.Context, services.ListCommentsInput) (services.Listing, error) {
			return services.Listing{}, errors.New("dial tcp 10.0.0.1:5432: connection refused")
		},
	}, nil, Options{})
	r := gin.New()
	r.GET("/:service_id/:data_type/:item_id/", h.ListComments)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc/comments/p/?signature=s", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.1") {
		t.Fatalf("storage error leaked: %s", w.Body.String())
	}
	if got := errCode(t, w); got != ErrCodeInternal {
		t.Fatalf("code = %q", got)
	}
}

func TestListComments_DefaultPlaceholderAndETagFromSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	v := services.ItemVersion{Count: 1, MaxID: 1, MaxModified: now}
	h := New(fakeComments{
		list: func(context.Context, services.ListCommentsInput) (services.Listing, error) {
			return services.Listing{
				Comments: []domain.Comment{{ID: 1, Level: 1, CommentText: "hidden", IsDeleted: true, Scope: domain.ScopeAll, DateCreated: now, DateModified: now}},
				Version:  v,
			}, nil
		},
	}, nil, Options{DeletedPlaceholder: "  "})
	r := gin.New()
	r.GET("/:service_id/:data_type/:item_id/", h.ListComments)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/svc/comments/p/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	ref := services.ItemRef{ServiceID: "svc", DataType: "comments", ItemID: "p"}
	if got, want := w.Header().Get("ETag"), listETag(ref, "", "", "", v); got != want {
		t.Fatalf("ETag = %q, want %q", got, want)
	}
	got := decodeList(t, w)
	if len(got) != 1 || got[0].CommentText != DefaultDeletedPlaceholder {
		t.Fatalf("unexpected body: %+v", got)
	}
	if strings.Contains(w.Body.String(), "hidden") {
		t.Fatalf("deleted text leaked: %s", w.Body.String())
	}
}

func TestListETag_DependsOnViewAndVersion(t *testing.T) {
	ref := services.ItemRef{ServiceID: "s", DataType: "comments", ItemID: `a"b`}
	v := services.ItemVersion{Count: 2, MaxID: 7, MaxModified: time.Unix(100, 5)}

	base := listETag(ref, "all", "tree", "", v)
	if strings.Count(base, `"`) != 2 {
		t.Fatalf("item id must not break quoting: %s", base)
	}
	if listETag(ref, "all", "tree", "", v) != base {
		t.Fatalf("etag must be deterministic")
	}
	if listETag(ref, "admin", "tree", "", v) == base || listETag(ref, "all", "flat", "", v) == base || listETag(ref, "all", "tree", "1", v) == base {
		t.Fatalf("etag must depend on the view")
	}
	v2 := v
	v2.MaxModified = v.MaxModified.Add(time.Nanosecond)
	if listETag(ref, "all", "tree", "", v2) == base {
		t.Fatalf("etag must depend on the version")
	}
}
