package store

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
type DBFactory func() db.KVDB

// IStore is the contract of one cache tier. The L1 tier is a local store,
// the L2 tier is a client of a remote cache server. Values are opaque bytes.
// All methods return a *Error on failure.
type IStore interface {
	// Set inserts or updates a key–value pair without deadline.
	Set(key string, value []byte) (err error)
	// SetE inserts or updates a key–value pair that disappears after ttl.
	// A ttl <= 0 behaves like Set.
	SetE(key string, value []byte, ttl time.Duration) (err error)
	// Delete removes a key. Deleting a missing key is not an error, deleted reports
	// whether an entry was actually removed.
	Delete(key string) (deleted bool, err error)
	// Get returns the value for a key. loaded reports whether a value was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// GetDBInfo returns metadata about the engine underlying the store.
	// It is not guaranteed that all fields are filled in or up to date.
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// Deadline converts a ttl into the absolute deadline expected by db.KVDB.SetE.
func Deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
