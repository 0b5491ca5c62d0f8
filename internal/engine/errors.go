package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/notionsync/internal/notion"
)

// SyncError is a fatal error that aborted a run.
//
// Fatal errors are:
//   - Store write failures: continuing would silently lose data
//   - Structural errors: a response is missing a field the mirror requires
//   - Root unavailable: the root could not be fetched, nothing to mirror
//   - Cancellation: the caller's context was canceled mid-run
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// ID is the entity the failing operation was working on.
	ID string

	// Op is the failing operation (fetch_container, upsert_block, ...).
	Op string

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes fatal errors.
type SyncErrorCode string

const (
	// ErrCodeStoreWrite indicates an upsert or run bookkeeping write failed.
	ErrCodeStoreWrite SyncErrorCode = "STORE_WRITE"

	// ErrCodeStructural indicates a response lacked a required field.
	ErrCodeStructural SyncErrorCode = "STRUCTURAL"

	// ErrCodeRootUnavailable indicates the root container could not be fetched.
	ErrCodeRootUnavailable SyncErrorCode = "ROOT_UNAVAILABLE"

	// ErrCodeCanceled indicates the run was canceled before completing.
	ErrCodeCanceled SyncErrorCode = "CANCELED"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func syncErrorCode(err error) (SyncErrorCode, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// IsStoreError returns true if err is a fatal store write error.
func IsStoreError(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeStoreWrite
}

// IsStructuralError returns true if err is a fatal structural error.
func IsStructuralError(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeStructural
}

// IsRootUnavailable returns true if the root container could not be fetched.
func IsRootUnavailable(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeRootUnavailable
}

// IsCanceled returns true if the run was canceled.
func IsCanceled(err error) bool {
	code, ok := syncErrorCode(err)
	return ok && code == ErrCodeCanceled
}

// SoftFailure is a per-container error that was recorded without aborting
// the run. The container's subtree is skipped.
type SoftFailure struct {
	ID       string
	Kind     notion.Kind
	Op       string
	Attempts int
	Err      error
}

func (f *SoftFailure) Error() string {
	return fmt.Sprintf("%s %s %s (after %d attempts): %v", f.Op, f.Kind, f.ID, f.Attempts, f.Err)
}

func (f *SoftFailure) Unwrap() error {
	return f.Err
}

// classify turns a remote error into either a fatal SyncError or a soft
// failure for the container being expanded.
func classify(id string, kind notion.Kind, op string, attempts int, err error) (*SoftFailure, error) {
	if notion.IsStructuralError(err) {
		return nil, &SyncError{Code: ErrCodeStructural, ID: id, Op: op, Err: err}
	}
	return &SoftFailure{ID: id, Kind: kind, Op: op, Attempts: attempts, Err: err}, nil
}
