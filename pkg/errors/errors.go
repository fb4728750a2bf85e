package errors

import "errors"

// Auth / identity
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidNickname  = errors.New("invalid nickname")
	ErrAdminNotFound    = errors.New("admin not found")
	ErrAdminDisabled    = errors.New("admin disabled")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrSeatAccessDenied = errors.New("seat access denied")
)

// Rooms & lobby
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomDisabled     = errors.New("room disabled")
	ErrInvalidSeatCount = errors.New("seat count not playable for variant")
	ErrAlreadyInQueue   = errors.New("already in queue")
	ErrQueueProcessing  = errors.New("queue join in progress")
)

// Input parsing
var (
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrInvalidCardCode = errors.New("invalid card code")
)

// Game validation. These reject a single action and leave session
// state unchanged.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrIllegalMove       = errors.New("illegal move")
	ErrCardNotInHand     = errors.New("card not in hand")
	ErrInsufficientCards = errors.New("insufficient cards to deal")
	ErrSeatsFull         = errors.New("seats full")
	ErrAlreadySeated     = errors.New("user already seated")
	ErrNoActiveSeats     = errors.New("no active seats")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionFinished   = errors.New("session finished")
	ErrSessionFrozen     = errors.New("session frozen")
	ErrInvalidBid        = errors.New("invalid bid")
)

// Concurrency: recoverable by re-reading and retrying.
var ErrStaleVersion = errors.New("stale session version")

// Fatal: the session is frozen and requires out-of-band inspection.
var ErrInvariantViolation = errors.New("session invariant violated")
