package lease

import "errors"

var (
	// ErrStaleLease indicates a commit or fail attempted by a holder whose
	// claim has been superseded or reclaimed.
	ErrStaleLease = errors.New("stale lease")
	// ErrLeaseHeld indicates a re-arm attempted while a worker holds an
	// active claim on the job.
	ErrLeaseHeld = errors.New("lease held")
)
