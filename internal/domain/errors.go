package domain

import "errors"

// Domain failures returned to the coordinator's callers. Callers can act on
// these; ErrPersistence is the only "try again later" case.
var (
	ErrTableUnavailable    = errors.New("table is not available for the requested transition")
	ErrOrderClosed         = errors.New("order is closed and cannot accept more lines")
	ErrOrderAlreadySettled = errors.New("order has already been settled")
	ErrOrderNotCancellable = errors.New("order can only be cancelled while pending")
	ErrNoCapacity          = errors.New("no table satisfies the reservation request")
	ErrAssignmentConflict  = errors.New("reservation assignment lost the table to a concurrent operation")
	ErrAlreadySeated       = errors.New("reservation has already been seated")
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrPersistence wraps a failed write-through; the in-memory change has
	// been rolled back and the operation may be retried.
	ErrPersistence = errors.New("persistence failure")
)
