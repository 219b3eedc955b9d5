package fabric

import (
	"errors"
	"fmt"

	"github.com/sarchlab/axifabric/addrmap"
)

// OverlapError is the error returned when two slave regions collide.
type OverlapError = addrmap.OverlapError

// ErrFinalized is returned by every mutator once Finalize has succeeded.
var ErrFinalized = errors.New("fabric descriptor is finalized")

// ValidationError reports a structural problem of the declared fabric, such as
// an unbound slave or a width out of range.
type ValidationError struct {
	Endpoint string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Endpoint == "" {
		return "invalid fabric: " + e.Reason
	}

	return fmt.Sprintf("invalid endpoint %s: %s", e.Endpoint, e.Reason)
}

func invalid(endpoint, format string, args ...any) *ValidationError {
	return &ValidationError{
		Endpoint: endpoint,
		Reason:   fmt.Sprintf(format, args...),
	}
}
