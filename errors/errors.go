// Package errors defines all exported error sentinels for the prefixtable library.
//
// Both the top-level prefixtable package and the internal packages import
// from here, so errors.Is checks work across package boundaries.
package errors

import "errors"

// Parse errors
var (
	ErrMalformedLine  = errors.New("prefixtable: malformed route line")
	ErrLineTooLong    = errors.New("prefixtable: route line exceeds maximum length")
	ErrNotIPv4        = errors.New("prefixtable: not an IPv4 address")
	ErrMaskTooLong    = errors.New("prefixtable: mask length exceeds 32")
	ErrInvalidAddress = errors.New("prefixtable: invalid query address")
)

// Build errors
var (
	ErrBuilderClosed   = errors.New("prefixtable: builder is closed")
	ErrTooManyRecords  = errors.New("prefixtable: record count exceeds maximum (2^32-1)")
	ErrInvalidCapacity = errors.New("prefixtable: initial capacity must be positive")
	ErrInvalidGrowth   = errors.New("prefixtable: growth factor must be at least 2")
)

// Table file errors
var (
	ErrTruncatedFile  = errors.New("prefixtable: table file is truncated")
	ErrCorruptedTable = errors.New("prefixtable: table data is corrupted")
	ErrUnsortedTable  = errors.New("prefixtable: table records are not sorted")
)

// Query errors
var (
	ErrTableClosed = errors.New("prefixtable: table is closed")
)
