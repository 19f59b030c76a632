// internal/game/room.go
package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/playmat/playmat/internal/auth"
	"github.com/playmat/playmat/internal/historian"
	"github.com/playmat/playmat/internal/models"
	"github.com/playmat/playmat/internal/protocol"
)

const openingHandSize = 7

// Room owns one match: the single authoritative GameState, the live-connection
// table keyed by seat, and the undo/redo history. Every mutation of a room is
// serialized through its mutex; distinct rooms never share state.
type Room struct {
	Code string
	Solo bool

	State   *models.GameState
	History *History

	Mu sync.Mutex

	// SendFn, when set, replaces the websocket write path. Tests install a
	// capture function here; production leaves it nil.
	SendFn func(seat int, msg protocol.ServerMessage)

	conns [2]*websocket.Conn

	grace     time.Duration
	reapTimer *time.Timer
	onEmpty   func(code string)

	rng  *rand.Rand
	log  *logrus.Entry
	hist *historian.Historian
}

func newRoom(code, passwordHash string, solo bool, grace time.Duration, log *logrus.Logger, hist *historian.Historian) *Room {
	return &Room{
		Code:    code,
		Solo:    solo,
		State:   models.NewGameState(passwordHash),
		History: NewHistory(),
		grace:   grace,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log.WithField("room", code),
		hist:    hist,
	}
}

// AttachCreator binds the creator's connection to seat 0.
func (r *Room) AttachCreator(conn *websocket.Conn) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.conns[0] = conn
	r.cancelReapLocked()
}

// Join seats a second player. It rejects a bad password, a solo room and a
// full room, in that order; on success the existing occupant is notified and
// the joiner receives a sanitized full snapshot so they start from ground
// truth rather than a diff.
func (r *Room) Join(name, password string, conn *websocket.Conn) (int, *models.Player, *models.GameState, *CodedError) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	ok, err := auth.VerifyRoomPassword(password, r.State.PasswordHash)
	if err != nil || !ok {
		return 0, nil, nil, ErrInvalidPassword
	}
	if r.Solo {
		return 0, nil, nil, ErrOpponentPresent
	}

	seat := -1
	for i, p := range r.State.Players {
		if p == nil {
			seat = i
			break
		}
	}
	if seat == -1 {
		return 0, nil, nil, ErrGameFull
	}

	player := models.NewPlayer(name)
	r.State.Players[seat] = player
	r.conns[seat] = conn
	r.cancelReapLocked()

	r.notifyOthersLocked(seat, protocol.ServerMessage{
		Type:    protocol.TypePlayerJoined,
		Payload: protocol.PlayerJoinedPayload{Seat: seat, Name: name},
	})
	r.log.WithFields(logrus.Fields{"seat": seat, "player": player.ID}).Info("Player joined")

	return seat, player, Sanitize(r.State, seat), nil
}

// Reconnect re-establishes the live-connection mapping for a seat, looked up
// by the player's stable identity rather than the ephemeral connection. Game
// state is not altered; a pending reap is cancelled.
func (r *Room) Reconnect(playerID uuid.UUID, conn *websocket.Conn) (int, *models.GameState, *CodedError) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	seat := -1
	for i, p := range r.State.Players {
		if p != nil && !p.Synthetic && p.ID == playerID {
			seat = i
			break
		}
	}
	if seat == -1 {
		return 0, nil, ErrPlayerNotFound
	}

	r.conns[seat] = conn
	r.cancelReapLocked()

	r.notifyOthersLocked(seat, protocol.ServerMessage{
		Type:    protocol.TypePlayerReconnected,
		Payload: protocol.PlayerReconnectedPayload{Seat: seat},
	})
	r.log.WithField("seat", seat).Info("Player reconnected")

	return seat, Sanitize(r.State, seat), nil
}

// HandleDisconnect removes the live-connection entry for the socket that
// closed. The conn argument guards the disconnect/reconnect race: if a newer
// connection already replaced this one, the entry is left alone. Once the
// room has zero live connections a grace-period reap timer starts; any
// return before expiry cancels it.
func (r *Room) HandleDisconnect(seat int, conn *websocket.Conn) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if seat < 0 || seat >= len(r.conns) || r.conns[seat] != conn {
		return
	}
	r.conns[seat] = nil

	r.notifyOthersLocked(seat, protocol.ServerMessage{
		Type:    protocol.TypePlayerLeft,
		Payload: protocol.PlayerLeftPayload{Seat: seat},
	})
	r.log.WithField("seat", seat).Info("Player disconnected")

	if r.liveConnsLocked() == 0 {
		r.scheduleReapLocked()
	}
}

// SubmitDeck installs a resolved deck list for the seat. Card records arrive
// already resolved by the catalog collaborator; this only mints instances.
func (r *Room) SubmitDeck(seat int, payload protocol.SubmitDeckPayload) *CodedError {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if seat < 0 || seat > 1 || r.State.Players[seat] == nil {
		return ErrPlayerNotFound
	}
	if r.State.Phase != models.PhaseLobby {
		return ErrInvalidPhase
	}

	p := r.State.Players[seat]
	p.Deck = buildCards(payload.MainDeck)
	p.Sideboard = buildCards(payload.Sideboard)

	r.State.AppendLog(seat, "submitted a deck")
	r.broadcastStateLocked()
	return nil
}

func buildCards(specs []protocol.DeckCard) []*models.CardInstance {
	var out []*models.CardInstance
	for _, spec := range specs {
		n := spec.Count
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, models.NewCardInstance(spec.Name, spec.ImageURL))
		}
	}
	return out
}

// StartMatch is the host-only transition from lobby to the first mulligan.
// Both seats must be filled with non-empty decks (solo mode needs only seat
// 0). Decks are shuffled uniformly and seven cards dealt to each player.
func (r *Room) StartMatch(seat int) *CodedError {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if seat != 0 {
		return ErrNotHost
	}
	if r.State.Phase != models.PhaseLobby {
		return ErrInvalidPhase
	}
	if !r.Solo && r.State.Players[1] == nil {
		return ErrWaitingForPlayer
	}
	for _, p := range r.State.Players {
		if p != nil && !p.Synthetic && len(p.Deck) == 0 {
			return ErrDeckNotSubmitted
		}
	}

	r.dealOpeningHandsLocked()
	r.State.Phase = models.PhaseMulligan
	r.State.Turn = models.PreGameTurn()
	r.State.AppendLog(seat, "started the match")

	r.broadcastLocked(protocol.ServerMessage{Type: protocol.TypeGameStarted})
	r.broadcastStateLocked()
	r.log.Info("Match started")
	return nil
}

// dealOpeningHandsLocked shuffles each real player's library and deals the
// opening hand, resetting per-game player state. Assumes the lock is held.
func (r *Room) dealOpeningHandsLocked() {
	for _, p := range r.State.Players {
		if p == nil || p.Synthetic {
			continue
		}
		r.shuffleLocked(p)
		p.Hand = nil
		for i := 0; i < openingHandSize && len(p.Deck) > 0; i++ {
			card := p.Deck[0]
			p.Deck = p.Deck[1:]
			card.ResetTableState()
			p.Hand = append(p.Hand, card)
		}
		p.Life = []models.LifeEntry{{Delta: 0, Total: models.StartingLife, At: time.Now()}}
		p.Counters = nil
		p.Mulligans = 0
		p.HasKeptHand = false
		p.ReadyForNextGame = false
	}
}

// shuffleLocked performs a uniform Fisher-Yates permutation of the deck.
func (r *Room) shuffleLocked(p *models.Player) {
	r.rng.Shuffle(len(p.Deck), func(i, j int) {
		p.Deck[i], p.Deck[j] = p.Deck[j], p.Deck[i]
	})
}

// SendStateTo pushes a sanitized snapshot to one seat on demand. Used right
// after a room is created, before any mutation has triggered a broadcast.
func (r *Room) SendStateTo(seat int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.send(seat, protocol.ServerMessage{
		Type:    protocol.TypeStateUpdate,
		Payload: protocol.StateUpdatePayload{State: Sanitize(r.State, seat)},
	})
}

// --- connection plumbing ---

func (r *Room) liveConnsLocked() int {
	n := 0
	for _, c := range r.conns {
		if c != nil {
			n++
		}
	}
	return n
}

// scheduleReapLocked arms the grace-period timer if one isn't already
// pending. The callback re-checks under the lock that this timer is still
// current and the room is still empty before reaping, so a reconnect during
// the grace window always wins.
func (r *Room) scheduleReapLocked() {
	if r.reapTimer != nil {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(r.grace, func() {
		r.Mu.Lock()
		if r.reapTimer != timer || r.liveConnsLocked() > 0 {
			r.Mu.Unlock()
			return
		}
		r.reapTimer = nil
		onEmpty := r.onEmpty
		r.Mu.Unlock()
		if onEmpty != nil {
			onEmpty(r.Code)
		}
	})
	r.reapTimer = timer
	r.log.WithField("grace", r.grace).Info("Room empty; reap scheduled")
}

func (r *Room) cancelReapLocked() {
	if r.reapTimer != nil {
		r.reapTimer.Stop()
		r.reapTimer = nil
	}
}

// send delivers one message to one seat, best-effort. With no override it
// writes asynchronously so a slow or dead connection can never block the
// room's mutation path or delivery to the other viewer.
func (r *Room) send(seat int, msg protocol.ServerMessage) {
	if r.SendFn != nil {
		r.SendFn(seat, msg)
		return
	}
	if seat < 0 || seat >= len(r.conns) {
		return
	}
	conn := r.conns[seat]
	if conn == nil {
		return
	}
	go func() {
		data, err := json.Marshal(msg)
		if err != nil {
			r.log.Errorf("Failed to marshal %s message: %v", msg.Type, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			r.log.Warnf("Failed to write %s message to seat %d: %v", msg.Type, seat, err)
		}
	}()
}

// notifyOthersLocked sends to every seated, real player except one seat.
func (r *Room) notifyOthersLocked(exceptSeat int, msg protocol.ServerMessage) {
	for i, p := range r.State.Players {
		if i == exceptSeat || p == nil || p.Synthetic {
			continue
		}
		r.send(i, msg)
	}
}

// broadcastLocked sends the same message to every seated, real player.
func (r *Room) broadcastLocked(msg protocol.ServerMessage) {
	r.notifyOthersLocked(-1, msg)
}

// broadcastStateLocked pushes a freshly sanitized view to each viewer.
func (r *Room) broadcastStateLocked() {
	for i, p := range r.State.Players {
		if p == nil || p.Synthetic {
			continue
		}
		r.send(i, protocol.ServerMessage{
			Type:    protocol.TypeStateUpdate,
			Payload: protocol.StateUpdatePayload{State: Sanitize(r.State, i)},
		})
	}
}
