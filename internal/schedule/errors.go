package schedule

import "errors"

var (
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrNotFound              = errors.New("not found")
	ErrNotScheduled          = errors.New("teacher is not scheduled for that session")
	ErrDuplicateRequest      = errors.New("leave already requested for that date and session")
	ErrNoSubstituteAvailable = errors.New("no substitute available")
	ErrStoreFailure          = errors.New("store failure")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("already exists")
)

// Outcome is a stable label for an operation result, used for metrics and
// API error codes.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotScheduled):
		return "not_scheduled"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrNoSubstituteAvailable):
		return "no_substitute"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "store_failure"
	}
}

// storeErr wraps an unexpected store error so it is reported as ErrStoreFailure
// while keeping the cause. Known domain errors pass through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrInvalidParameter, ErrNotFound, ErrNotScheduled, ErrDuplicateRequest,
		ErrNoSubstituteAvailable, ErrStoreFailure, ErrForbidden, ErrConflict,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + ErrStoreFailure.Error() + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() []error { return []error{ErrStoreFailure, e.Err} }
