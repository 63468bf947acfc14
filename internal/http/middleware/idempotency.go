// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of comment creation requests.
// A valid key is stashed in the Gin context; when a lookup function reports
// that the key was already used for the addressed item, the request is marked
// as a replay so the rate limiter lets it through. Replaying the stored
// comment itself is done by the comment service, inside its transaction and
// after the signature check.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on responses served from a
// previously recorded result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a previous result for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200 (the column size).
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether key was already used for itemKey
// ("<dataType>/<itemId>") of serviceID and has not expired at now.
type IdempotencyLookup func(ctx context.Context, serviceID, itemKey, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present.
//
//   - No header: no-op.
//   - Invalid header: 400 {"code":"bad_idempotency_key"}.
//   - Lookup hit on a comment create: the request is marked as a replay and
//     bypasses rate limiting. Other methods keep the key but never bypass.
//
// Lookup errors are ignored; the service performs the authoritative check.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil && isCreate(c) {
			if svc, itemKey, ok := itemFromRoute(c); ok {
				if exists, _ := lookup(c.Request.Context(), svc, itemKey, key, time.Now().UTC()); exists {
					c.Set(ctxKeyIdemReplay, true)
					c.Set(ctxKeyRateBypass, true)
				}
			}
		}

		c.Next()
	}
}

// isCreate reports whether c is a POST to an item, the only request a key
// can replay.
func isCreate(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && c.Param("comment_id") == ""
}

// itemFromRoute reads the addressed item from the comment route parameters.
func itemFromRoute(c *gin.Context) (serviceID, itemKey string, ok bool) {
	serviceID = c.Param("service_id")
	dt, item := c.Param("data_type"), c.Param("item_id")
	if serviceID == "" || dt == "" || item == "" {
		return "", "", false
	}
	return serviceID, dt + "/" + item, true
}
