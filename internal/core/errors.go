package core

import "errors"

// Error kinds shared by every layer. Callers test them with errors.Is.
var (
	// ErrValidation marks a request that is rejected before any store access.
	ErrValidation = errors.New("validation failure")

	// ErrNotFound marks a lookup with no matching records.
	ErrNotFound = errors.New("not found")

	// ErrDegradedRuleSet is reported when no active rules exist.
	// Categorization continues with CategoryOther.
	ErrDegradedRuleSet = errors.New("no active categorization rules")

	// ErrStoreFailure wraps query and persist failures of a store backend.
	ErrStoreFailure = errors.New("store failure")
)
