// internal/models/state.go
package models

import "time"

// Phase is the match lifecycle stage. Transitions are monotonic except the
// sideboarding -> mulligan loop between games of a match.
type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseMulligan     Phase = "mulligan"
	PhasePlaying      Phase = "playing"
	PhaseSideboarding Phase = "sideboarding"
	PhaseFinished     Phase = "finished"
)

// StartingLife is the opening ledger total for each game of a match.
const StartingLife = 20

// MaxLogEntries bounds the rolling action log carried in shared state.
const MaxLogEntries = 30

// TurnInfo describes the current turn. Number 0 with the pregame label marks
// the span before the first turn of a game.
type TurnInfo struct {
	Number       int    `json:"number"`
	ActivePlayer int    `json:"activePlayer"`
	Label        string `json:"label,omitempty"`
}

// PreGameTurn is the turn descriptor in force from deal until both keeps.
func PreGameTurn() TurnInfo {
	return TurnInfo{Number: 0, ActivePlayer: 0, Label: "pregame"}
}

// GameResult records the outcome of one completed game of the match.
type GameResult struct {
	Game       int  `json:"game"`
	Winner     int  `json:"winner"`
	Concession bool `json:"concession,omitempty"`
}

// LogEntry is one row of the bounded shared action log.
type LogEntry struct {
	Seat    int       `json:"seat"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// GameState is the single authoritative copy of one room's table.
type GameState struct {
	Phase   Phase      `json:"phase"`
	Players [2]*Player `json:"players"`

	// Stack is the shared zone for cards owned by neither player.
	Stack []*CardInstance `json:"stack"`

	GameNumber int          `json:"gameNumber"`
	Results    []GameResult `json:"results,omitempty"`
	Turn       TurnInfo     `json:"turn"`

	Log []LogEntry `json:"log,omitempty"`

	// PasswordHash gates joins. Never serialized to clients or save codes.
	PasswordHash string `json:"-"`
}

// NewGameState returns a lobby-phase state with both seats empty.
func NewGameState(passwordHash string) *GameState {
	return &GameState{
		Phase:        PhaseLobby,
		GameNumber:   1,
		Turn:         PreGameTurn(),
		PasswordHash: passwordHash,
	}
}

// AppendLog pushes a log row, evicting the oldest past MaxLogEntries.
func (s *GameState) AppendLog(seat int, message string) {
	s.Log = append(s.Log, LogEntry{Seat: seat, Message: message, At: time.Now()})
	if len(s.Log) > MaxLogEntries {
		s.Log = s.Log[len(s.Log)-MaxLogEntries:]
	}
}

// Wins counts completed games won by the given seat.
func (s *GameState) Wins(seat int) int {
	n := 0
	for _, r := range s.Results {
		if r.Winner == seat {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the state.
func (s *GameState) Clone() *GameState {
	cp := *s
	for i, p := range s.Players {
		if p != nil {
			cp.Players[i] = p.Clone()
		}
	}
	cp.Stack = cloneCards(s.Stack)
	if s.Results != nil {
		cp.Results = make([]GameResult, len(s.Results))
		copy(cp.Results, s.Results)
	}
	if s.Log != nil {
		cp.Log = make([]LogEntry, len(s.Log))
		copy(cp.Log, s.Log)
	}
	return &cp
}
