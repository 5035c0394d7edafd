package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into the program error taxonomy.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist at the derived address
// - ErrConflict: a record already occupies the derived address
// - ErrInvalidState: record is in the wrong state for the requested transition
// - ErrUnavailable: backing store temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
