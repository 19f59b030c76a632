// internal/game/errors.go
package game

import "github.com/playmat/playmat/internal/protocol"

// CodedError is a request-level precondition failure carrying one of the
// stable protocol error codes. Action-level semantic misses never produce a
// CodedError; they are silent no-ops by design.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	return e.Message
}

func coded(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

var (
	ErrGameNotFound     = coded(protocol.CodeGameNotFound, "no game with that code exists")
	ErrInvalidPassword  = coded(protocol.CodeInvalidPassword, "incorrect password")
	ErrGameFull         = coded(protocol.CodeGameFull, "both seats are taken")
	ErrPlayerNotFound   = coded(protocol.CodePlayerNotFound, "no such player in this game")
	ErrNotHost          = coded(protocol.CodeNotHost, "only the game creator can do that")
	ErrWaitingForPlayer = coded(protocol.CodeWaitingForPlayer, "waiting for a second player")
	ErrDeckNotSubmitted = coded(protocol.CodeDeckNotSubmitted, "both players must submit decks first")
	ErrInvalidPhase     = coded(protocol.CodeInvalidPhase, "that is not allowed in the current phase")
	ErrOpponentPresent  = coded(protocol.CodeOpponentPresent, "this game already has an opponent")
	ErrLoadFailed       = coded(protocol.CodeLoadFailed, "save code could not be loaded")
)
