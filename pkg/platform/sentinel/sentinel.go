package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: no row matched the lookup, or a guarded update matched nothing
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: the entity exists but is not in the state the write requires
//   - ErrUnavailable: the backing resource is temporarily unavailable
//   - ErrTooLarge: the payload exceeded a storage limit
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTooLarge     = errors.New("too large")
)
