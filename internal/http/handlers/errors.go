package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never on
// the message text.
const (
	// Malformed JSON, failed field validation, unknown data type, bad ids.
	ErrCodeBadRequest = "bad_request"
	// Signature missing or not matching the service token.
	ErrCodeForbidden = "forbidden"
	// Unknown service, comment or parent comment, and unmatched routes.
	ErrCodeNotFound = "not_found"
	// Service name already registered. Sent with 400.
	ErrCodeConflict = "conflict"
	// Written by the rate limiter middleware with 429.
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
