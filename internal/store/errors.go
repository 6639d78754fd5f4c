package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// InsertResult reports the outcome of an insert guarded by a uniqueness
// constraint.
type InsertResult int

const (
	// Inserted means the record was stored.
	Inserted InsertResult = iota + 1
	// Conflict means a record with the same unique key already exists and
	// nothing was written.
	Conflict
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}
