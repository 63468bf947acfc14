package domain

import "strings"

// Scope is the visibility class of a comment.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeAdmin      Scope = "admin"
	ScopeRegistered Scope = "registered"
)

// ParseScope parses a scope name; an empty string yields ScopeAll.
func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, true
	case ScopeAdmin:
		return ScopeAdmin, true
	case ScopeRegistered:
		return ScopeRegistered, true
	}
	return "", false
}

// Presentation selects the order of a comment listing.
type Presentation string

const (
	// PresentationTree orders comments by path (pre-order traversal).
	PresentationTree Presentation = "tree"
	// PresentationFlat orders comments by creation time.
	PresentationFlat Presentation = "flat"
)

// ParsePresentation parses a presentation name; empty yields PresentationTree.
func ParsePresentation(s string) (Presentation, bool) {
	switch Presentation(strings.ToLower(strings.TrimSpace(s))) {
	case "", PresentationTree:
		return PresentationTree, true
	case PresentationFlat:
		return PresentationFlat, true
	}
	return "", false
}

// DataTypeComments is the only kind of attached data currently stored.
const DataTypeComments = "comments"

// ValidDataType reports whether dt names a supported data type.
func ValidDataType(dt string) bool {
	return dt == DataTypeComments
}
