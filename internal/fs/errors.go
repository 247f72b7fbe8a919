package fs

import "errors"

// Error kinds surfaced by the revision store and transaction lifecycle.
// Callers should use errors.Is against these sentinels; wrapped errors
// carry path/revision context via fmt.Errorf("...: %w", ...).
var (
	ErrCorruption          = errors.New("corruption")
	ErrNotFound            = errors.New("not found")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrTxnOutOfDate        = errors.New("transaction out of date")
	ErrUniqueNamesExhausted = errors.New("unique names exhausted")
)
