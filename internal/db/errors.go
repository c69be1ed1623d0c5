package db

import "errors"

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrUnavailable   = errors.New("db: backend unavailable")
)

// Op names used for error context. Key-value ops map to Redis commands,
// search ops to engine endpoints.
const (
	OpPing     = "PING"
	OpGet      = "GET"
	OpSet      = "SET"
	OpDel      = "DEL"
	OpScan     = "SCAN"
	OpSearch   = "_search"
	OpTerms    = "_search/terms"
	OpMapping  = "_mapping"
	OpIndexDoc = "_doc"
	OpDelete   = "_doc/delete"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
