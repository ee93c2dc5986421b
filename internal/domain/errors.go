package domain

import "errors"

var (
	// ErrTransferFinalized is returned when a mutation targets a transfer that has
	// already reached a terminal status.
	ErrTransferFinalized = errors.New("transfer already finalized")

	// ErrInvalidTransition is returned when a requested status change is not an
	// allowed edge of the state machine.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrLegNotFound is returned when a leg operation references a leg that has
	// not been created on the transfer.
	ErrLegNotFound = errors.New("transfer leg not created")
)
