package harvest

import (
	"context"
	"errors"

	"github.com/fwojciec/modharvest"
)

// errorClass is the Coordinator's view of a collaborator error.
type errorClass int

const (
	// classRecoverable failures are recorded on the node and the run continues.
	classRecoverable errorClass = iota
	// classTimeout failures are recorded with the page-timeout reason.
	classTimeout
	// classInterrupt failures end the run with a pause.
	classInterrupt
)

// classify maps an error to the handling it receives inside the run loop.
// A canceled context means the caller is shutting the run down, which is
// handled the same way as a raised signal.
func classify(err error) errorClass {
	switch {
	case err == nil:
		return classRecoverable
	case errors.Is(err, errInterrupted),
		errors.Is(err, context.Canceled),
		modharvest.IsDetachedError(err):
		return classInterrupt
	case modharvest.ErrorCode(err) == modharvest.ETIMEOUT,
		errors.Is(err, context.DeadlineExceeded):
		return classTimeout
	default:
		return classRecoverable
	}
}
