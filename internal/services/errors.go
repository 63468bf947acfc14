// Package services defines the business logic for services, users and
// threaded comments. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Validation errors may be wrapped with a detail message
// (fmt.Errorf("%w: ...")), so callers must match them with errors.Is.
package services

import "errors"

// Authentication errors.
var (
	// ErrUnauthorized is returned when the request signature does not match
	// the one computed with the service token.
	ErrUnauthorized = errors.New("invalid signature")
)

// Lookup errors.
var (
	// ErrServiceNotFound indicates that no service has the given id or name.
	ErrServiceNotFound = errors.New("service not found")

	// ErrCommentNotFound indicates that the addressed comment does not exist
	// within the given service, data type and item.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrParentNotFound is returned when a parentId references no comment.
	ErrParentNotFound = errors.New("parent comment not found")
)

// Validation errors.
var (
	// ErrEmptyText is returned when comment text is empty after trimming.
	ErrEmptyText = errors.New("comment text is empty")

	// ErrTextTooLong is returned when comment text exceeds the rune limit.
	ErrTextTooLong = errors.New("comment text too long")

	// ErrInvalidScope is returned for a scope outside all|admin|registered.
	ErrInvalidScope = errors.New("scope must be one of all, admin, registered")

	// ErrInvalidPresentation is returned for a presentation other than tree|flat.
	ErrInvalidPresentation = errors.New("presentation must be tree or flat")

	// ErrInvalidDataType is returned for an unsupported data type.
	ErrInvalidDataType = errors.New("unsupported data type")

	// ErrInvalidServiceName is returned when a service name is blank or too long.
	ErrInvalidServiceName = errors.New("invalid service name")

	// ErrInvalidUser is returned when the author block is missing or malformed.
	ErrInvalidUser = errors.New("invalid user")

	// ErrEmptyPatch is returned when an update carries no field to change.
	ErrEmptyPatch = errors.New("nothing to update")

	// ErrTooDeep is returned when a reply would exceed treepath.MaxDepth.
	ErrTooDeep = errors.New("reply nesting too deep")
)

// Conflict errors.
var (
	// ErrDuplicateService is returned when a service name is already taken.
	ErrDuplicateService = errors.New("service name already registered")
)

// IsValidation reports whether err is one of the validation errors above.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrEmptyText, ErrTextTooLong, ErrInvalidScope, ErrInvalidPresentation,
		ErrInvalidDataType, ErrInvalidServiceName, ErrInvalidUser, ErrEmptyPatch, ErrTooDeep,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
