package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes every JSON line written to buf.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		c.String(http.StatusOK, asString(v))
	})

	for _, incoming := range []string{"", "rid-from-proxy"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if incoming != "" {
			req.Header.Set(strings.ToLower(requestIDHeader), incoming)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(requestIDHeader)
		switch {
		case incoming == "" && len(got) != 36:
			t.Fatalf("expected generated uuid, got %q", got)
		case incoming != "" && got != incoming:
			t.Fatalf("expected %q echoed, got %q", incoming, got)
		}
		if w.Body.String() != got {
			t.Fatalf("context id %q differs from header %q", w.Body.String(), got)
		}
	}
}

func TestLogger_LevelFollowsOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/:service_id/:data_type/:item_id/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/:service_id/:data_type/:item_id/:comment_id/", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	r.DELETE("/:service_id/:data_type/:item_id/:comment_id/", func(c *gin.Context) {
		_ = c.Error(errors.New("database is locked"))
		c.Status(http.StatusNotFound)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/svc/comments/post-1/?signature=abc", nil),
		httptest.NewRequest(http.MethodPut, "/svc/comments/post-1/4/", nil),
		httptest.NewRequest(http.MethodDelete, "/svc/comments/post-1/4/", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := logLines(t, buf)
	if len(lines) != 4 {
		t.Fatalf("expected 4 access lines, got %d:\n%s", len(lines), buf.String())
	}
	want := []struct{ level, path string }{
		{"info", "/:service_id/:data_type/:item_id/"},
		{"warn", "/:service_id/:data_type/:item_id/:comment_id/"},
		{"error", "/:service_id/:data_type/:item_id/:comment_id/"},
		{"warn", "/nowhere"},
	}
	for i, w := range want {
		if lines[i]["level"] != w.level || lines[i]["path"] != w.path {
			t.Errorf("line %d = level %v path %v, want %s %s", i, lines[i]["level"], lines[i]["path"], w.level, w.path)
		}
	}
	if lines[0]["service_id"] != "svc" || lines[0]["query"] != "signature=abc" {
		t.Errorf("comment route fields missing: %v", lines[0])
	}
	if lines[2]["errors"] == nil {
		t.Errorf("gin errors should be logged: %v", lines[2])
	}
	if _, ok := lines[3]["service_id"]; ok {
		t.Errorf("unmatched route should carry no service id: %v", lines[3])
	}
}

func TestLogger_RequestContextCarriesServiceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.POST("/:service_id/:data_type/:item_id/", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("comment created")
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/svc-9/comments/post-1/", nil)
	req.Header.Set(requestIDHeader, "rid-77")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var seen int
	for _, m := range logLines(t, buf) {
		if m["message"] == "comment created" || m["message"] == "scoped" {
			seen++
			if m["request_id"] != "rid-77" || m["service_id"] != "svc-9" {
				t.Fatalf("request fields missing: %v", m)
			}
		}
	}
	if seen != 2 {
		t.Fatalf("expected both handler lines, got %d:\n%s", seen, buf.String())
	}
}

func TestLoggerFrom_FallsBackToGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("bare")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	lines := logLines(t, buf)
	if len(lines) != 1 || lines[0]["message"] != "bare" {
		t.Fatalf("unexpected logs: %s", buf.String())
	}
	if _, ok := lines[0]["request_id"]; ok {
		t.Fatalf("fallback logger should carry no request fields")
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/early", func(c *gin.Context) { panic("nil parent path") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "[")
		panic("encoder blew up")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/early", nil)
	req.Header.Set(requestIDHeader, "rid-p")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("early panic -> %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("no envelope once the body has started, got %q", w.Body.String())
	}

	lines := logLines(t, buf)
	if len(lines) != 2 || lines[0]["message"] != "panic recovered" || lines[0]["stack"] == nil {
		t.Fatalf("expected two panic logs with stacks, got:\n%s", buf.String())
	}
}

func TestTruncateAndAsString(t *testing.T) {
	if asString("x") != "x" || asString(42) != "" || asString(nil) != "" {
		t.Fatal("asString")
	}
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"signature=abc", 64, "signature=abc"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	} {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q", tc.in, tc.max, got)
		}
	}
}
