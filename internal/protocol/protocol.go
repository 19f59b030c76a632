// internal/protocol/protocol.go
//
// Wire contract for the playmat session protocol. Both directions share the
// same envelope: a type tag, a type-specific payload, and an optional
// requestId used to correlate replies with the client message that asked for
// them. Unsolicited pushes (state updates, peer notices) carry no requestId.
package protocol

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/playmat/playmat/internal/models"
)

// Client -> server message types.
const (
	TypeCreateGame = "CREATE_GAME"
	TypeJoinGame   = "JOIN_GAME"
	TypeReconnect  = "RECONNECT"
	TypeSubmitDeck = "SUBMIT_DECK"
	TypeStartGame  = "START_GAME"
	TypeGameAction = "GAME_ACTION"
	TypePing       = "PING"
)

// Server -> client message types.
const (
	TypeGameCreated       = "GAME_CREATED"
	TypeGameJoined        = "GAME_JOINED"
	TypePlayerJoined      = "PLAYER_JOINED"
	TypePlayerLeft        = "PLAYER_LEFT"
	TypePlayerReconnected = "PLAYER_RECONNECTED"
	TypeReconnected       = "RECONNECTED"
	TypeStateUpdate       = "STATE_UPDATE"
	TypeCardsRevealed     = "CARDS_REVEALED"
	TypeGameStarted       = "GAME_STARTED"
	TypeDeckSubmitted     = "DECK_SUBMITTED"
	TypeGameSaved         = "GAME_SAVED"
	TypeGameLoaded        = "GAME_LOADED"
	TypeError             = "ERROR"
	TypeAck               = "ACK"
	TypePong              = "PONG"
)

// Stable error codes for client branching.
const (
	CodeGameNotFound      = "GAME_NOT_FOUND"
	CodeInvalidPassword   = "INVALID_PASSWORD"
	CodeGameFull          = "GAME_FULL"
	CodePlayerNotFound    = "PLAYER_NOT_FOUND"
	CodeNotInGame         = "NOT_IN_GAME"
	CodeNotHost           = "NOT_HOST"
	CodeWaitingForPlayer  = "WAITING_FOR_PLAYER"
	CodeDeckNotSubmitted  = "DECK_NOT_SUBMITTED"
	CodeInvalidPhase      = "INVALID_PHASE"
	CodeOpponentPresent   = "OPPONENT_PRESENT"
	CodeLoadFailed        = "LOAD_FAILED"
	CodeInvalidState      = "INVALID_STATE"
	CodeParseError        = "PARSE_ERROR"
)

// ClientMessage is the inbound envelope; the payload stays raw until the
// type tag selects a decoder.
type ClientMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

// --- client payloads ---

type CreateGamePayload struct {
	PlayerName string `json:"playerName"`
	Password   string `json:"password"`
	Solo       bool   `json:"solo,omitempty"`
}

type JoinGamePayload struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password"`
}

type ReconnectPayload struct {
	GameID   string    `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// DeckCard is one resolved catalog record from the deck-list collaborator.
type DeckCard struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	Count    int    `json:"count,omitempty"`
}

type SubmitDeckPayload struct {
	MainDeck  []DeckCard `json:"mainDeck"`
	Sideboard []DeckCard `json:"sideboard,omitempty"`
}

// --- server payloads ---

type GameCreatedPayload struct {
	GameID   string    `json:"gameId"`
	Seat     int       `json:"seat"`
	PlayerID uuid.UUID `json:"playerId"`
}

type GameJoinedPayload struct {
	GameID   string            `json:"gameId"`
	Seat     int               `json:"seat"`
	PlayerID uuid.UUID         `json:"playerId"`
	State    *models.GameState `json:"state"`
}

type PlayerJoinedPayload struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
}

type PlayerLeftPayload struct {
	Seat int `json:"seat"`
}

type PlayerReconnectedPayload struct {
	Seat int `json:"seat"`
}

type ReconnectedPayload struct {
	GameID string            `json:"gameId"`
	Seat   int               `json:"seat"`
	State  *models.GameState `json:"state"`
}

type StateUpdatePayload struct {
	State *models.GameState `json:"state"`
}

// RevealedCard carries minimal card identity for a reveal side-channel;
// never the full instance state.
type RevealedCard struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"imageUrl,omitempty"`
}

type CardsRevealedPayload struct {
	RevealerName string         `json:"revealerName"`
	Source       string         `json:"source"`
	Cards        []RevealedCard `json:"cards"`
}

type GameSavedPayload struct {
	Code string `json:"code"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}
