package domain

import "errors"

// Domain errors
var (
	ErrInvalidScore          = errors.New("score is not in the vocabulary")
	ErrIncompleteRound       = errors.New("every player needs a score before the round can be submitted")
	ErrUnknownPlayer         = errors.New("player is not part of this game")
	ErrGameAlreadyCompleted  = errors.New("game already completed")
	ErrSpeechUnsupported     = errors.New("voice input is not supported")
	ErrGameNotFound          = errors.New("game not found")
	ErrPlayerNotFound        = errors.New("player not found")
	ErrRoundNotFound         = errors.New("round not found")
	ErrInvalidRoster         = errors.New("a game needs exactly four distinct players")
	ErrRoundAlreadySubmitted = errors.New("round already submitted")
	ErrCacheMiss             = errors.New("cache miss")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInternalError         = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrRoundNotFound) ||
		errors.Is(err, ErrUnknownPlayer)
}

// IsConflictError reports errors caused by the game having moved on
// since the caller last looked at it.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrGameAlreadyCompleted) || errors.Is(err, ErrRoundAlreadySubmitted)
}

// IsClientError reports whether err is one of the rejections a caller can
// fix by re-prompting. Anything else coming out of the services is a
// persistence failure and is passed through as-is.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrIncompleteRound) ||
		errors.Is(err, ErrInvalidRoster) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSpeechUnsupported) ||
		IsNotFoundError(err) ||
		IsConflictError(err)
}
