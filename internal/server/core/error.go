package core

import "errors"

// Error codes
const (
	ErrGameNotFound       = "GAME_NOT_FOUND"
	ErrInvalidParticipant = "INVALID_PARTICIPANT"
	ErrAlreadyResolved    = "ALREADY_RESOLVED"
	ErrNotEligible        = "NOT_ELIGIBLE"
	ErrIllegalMove        = "ILLEGAL_MOVE"
	ErrConflict           = "CONFLICT"
	ErrRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrInvalidContent     = "INVALID_CONTENT_TYPE"
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrUnauthorized       = "UNAUTHORIZED"
)

// Domain errors. Callers wrap these with the rule that was violated,
// e.g. fmt.Errorf("%w: cell 4 is occupied", core.ErrMoveRejected).
var (
	ErrNotFound       = errors.New("game not found")
	ErrBadParticipant = errors.New("invalid participant")
	ErrResolved       = errors.New("game already resolved")
	ErrIneligible     = errors.New("not eligible")
	ErrMoveRejected   = errors.New("illegal move")
	ErrStale          = errors.New("game changed since last read")
	ErrBadRequest     = errors.New("invalid request")
)

// CodeOf maps an error returned by the engine to its wire code.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ErrGameNotFound
	case errors.Is(err, ErrBadParticipant):
		return ErrInvalidParticipant
	case errors.Is(err, ErrResolved):
		return ErrAlreadyResolved
	case errors.Is(err, ErrIneligible):
		return ErrNotEligible
	case errors.Is(err, ErrMoveRejected):
		return ErrIllegalMove
	case errors.Is(err, ErrStale):
		return ErrConflict
	case errors.Is(err, ErrBadRequest):
		return ErrInvalidRequest
	default:
		return ErrInternalError
	}
}
