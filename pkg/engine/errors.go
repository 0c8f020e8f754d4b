package engine

import "errors"

var (
	// ErrTransitionNotFound means the requested transition is not part of the
	// instance's definition.
	ErrTransitionNotFound = errors.New("transition not found")

	// ErrIllegalTransition means the transition does not originate in the
	// instance's current state, or the current state is terminal.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrTransitionAlreadyPending means another transition of the instance is
	// already awaiting approvals. Only one may be pending at a time.
	ErrTransitionAlreadyPending = errors.New("transition already pending approval")
)
