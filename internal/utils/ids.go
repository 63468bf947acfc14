// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidID is returned for ids that are not positive decimal integers.
var ErrInvalidID = errors.New("id must be a positive integer")

// ParseID parses a positive decimal id. Surrounding whitespace is ignored;
// signs, zero and overflow are rejected.
//
//	id, err := utils.ParseID(c.Param("comment_id"))
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, ErrInvalidID
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}

// ParseOptionalID is ParseID for optional parameters: an empty (or blank)
// string yields nil.
func ParseOptionalID(s string) (*int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	n, err := ParseID(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
