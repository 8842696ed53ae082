package ecosim

import "errors"

var (
	// ErrInvalidParameter reports out-of-range or malformed initialization
	// input. It is fatal to the call: no grid is produced.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAllocation reports a failed grid or buffer allocation. The
	// previously committed grid, if any, remains valid.
	ErrAllocation = errors.New("allocation failure")

	// ErrNotFound reports a missing simulation session or recording.
	ErrNotFound = errors.New("not found")
)
