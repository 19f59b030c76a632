// internal/game/game_test.go
package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playmat/playmat/internal/models"
	"github.com/playmat/playmat/internal/protocol"
)

// mockSender collects per-seat messages instead of writing to websockets.
type mockSender struct {
	mu   sync.Mutex
	msgs map[int][]protocol.ServerMessage
}

func newMockSender() *mockSender {
	return &mockSender{msgs: make(map[int][]protocol.ServerMessage)}
}

func (m *mockSender) sendFn(seat int, msg protocol.ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[seat] = append(m.msgs[seat], msg)
}

func (m *mockSender) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = make(map[int][]protocol.ServerMessage)
}

func (m *mockSender) count(seat int, msgType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs[seat] {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

func (m *mockSender) lastOfType(seat int, msgType string) *protocol.ServerMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs[seat]) - 1; i >= 0; i-- {
		if m.msgs[seat][i].Type == msgType {
			return &m.msgs[seat][i]
		}
	}
	return nil
}

// lastState returns the most recent sanitized view pushed to a seat.
func (m *mockSender) lastState(seat int) *models.GameState {
	msg := m.lastOfType(seat, protocol.TypeStateUpdate)
	if msg == nil {
		return nil
	}
	return msg.Payload.(protocol.StateUpdatePayload).State
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testDeck(n int) []protocol.DeckCard {
	return []protocol.DeckCard{{Name: "Test Card", Count: n}}
}

// setupTestRoom creates a two-player (or solo) room with the mock sender
// installed, still in the lobby phase.
func setupTestRoom(t *testing.T, solo bool) (*Registry, *Room, *mockSender) {
	t.Helper()
	reg := NewRegistry(time.Minute, testLogger(), nil)
	room, _, err := reg.CreateRoom("Alice", "secret", solo)
	require.NoError(t, err)
	ms := newMockSender()
	room.SendFn = ms.sendFn

	if !solo {
		seat, _, _, cerr := room.Join("Bob", "secret", nil)
		require.Nil(t, cerr)
		require.Equal(t, 1, seat)
	}
	return reg, room, ms
}

// startedRoom runs a two-player room through deck submission and match start
// so tests begin at the mulligan phase with 40-card decks.
func startedRoom(t *testing.T) (*Room, *mockSender) {
	t.Helper()
	_, room, ms := setupTestRoom(t, false)
	require.Nil(t, room.SubmitDeck(0, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.SubmitDeck(1, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.StartMatch(0))
	ms.clear()
	return room, ms
}

// playingRoom advances a started room past the mulligan into the playing
// phase with both hands kept.
func playingRoom(t *testing.T) (*Room, *mockSender) {
	t.Helper()
	room, ms := startedRoom(t)
	room.HandleAction(0, GameAction{Kind: ActionMulliganKeep}, "")
	room.HandleAction(1, GameAction{Kind: ActionMulliganKeep}, "")
	require.Equal(t, models.PhasePlaying, room.State.Phase)
	ms.clear()
	return room, ms
}

func TestJoinRejectsWrongPassword(t *testing.T) {
	_, room, _ := setupTestRoom(t, true)
	_, _, _, cerr := room.Join("Mallory", "wrong", nil)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeInvalidPassword, cerr.Code)
}

func TestJoinSoloRoomRejected(t *testing.T) {
	_, room, _ := setupTestRoom(t, true)
	_, _, _, cerr := room.Join("Bob", "secret", nil)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeOpponentPresent, cerr.Code)
}

func TestJoinFullRoomRejected(t *testing.T) {
	_, room, _ := setupTestRoom(t, false)
	_, _, _, cerr := room.Join("Carol", "secret", nil)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeGameFull, cerr.Code)
}

func TestJoinNotifiesExistingPlayer(t *testing.T) {
	reg := NewRegistry(time.Minute, testLogger(), nil)
	room, _, err := reg.CreateRoom("Alice", "secret", false)
	require.NoError(t, err)
	ms := newMockSender()
	room.SendFn = ms.sendFn

	_, _, state, cerr := room.Join("Bob", "secret", nil)
	require.Nil(t, cerr)
	require.NotNil(t, state)

	msg := ms.lastOfType(0, protocol.TypePlayerJoined)
	require.NotNil(t, msg)
	assert.Equal(t, "Bob", msg.Payload.(protocol.PlayerJoinedPayload).Name)
}

func TestStartMatchGates(t *testing.T) {
	_, room, _ := setupTestRoom(t, false)

	cerr := room.StartMatch(1)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeNotHost, cerr.Code)

	cerr = room.StartMatch(0)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeDeckNotSubmitted, cerr.Code)

	require.Nil(t, room.SubmitDeck(0, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.SubmitDeck(1, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.StartMatch(0))

	cerr = room.StartMatch(0)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeInvalidPhase, cerr.Code)
}

func TestStartMatchWaitsForSecondPlayer(t *testing.T) {
	reg := NewRegistry(time.Minute, testLogger(), nil)
	room, _, err := reg.CreateRoom("Alice", "secret", false)
	require.NoError(t, err)
	room.SendFn = newMockSender().sendFn
	require.Nil(t, room.SubmitDeck(0, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))

	cerr := room.StartMatch(0)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodeWaitingForPlayer, cerr.Code)
}

func TestStartMatchDealsOpeningHands(t *testing.T) {
	room, _ := startedRoom(t)

	assert.Equal(t, models.PhaseMulligan, room.State.Phase)
	assert.Equal(t, models.PreGameTurn(), room.State.Turn)
	for seat := 0; seat < 2; seat++ {
		p := room.State.Players[seat]
		assert.Len(t, p.Hand, 7, "seat %d hand", seat)
		assert.Len(t, p.Deck, 33, "seat %d deck", seat)
		require.Len(t, p.Life, 1)
		assert.Equal(t, models.StartingLife, p.LifeTotal())
		assert.False(t, p.HasKeptHand)
	}
}

func TestSoloStartNeedsOnlyHostDeck(t *testing.T) {
	_, room, _ := setupTestRoom(t, true)
	require.Nil(t, room.SubmitDeck(0, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.StartMatch(0))
	assert.Equal(t, models.PhaseMulligan, room.State.Phase)

	// The synthetic opponent is permanently kept, so one keep starts play.
	room.HandleAction(0, GameAction{Kind: ActionMulliganKeep}, "")
	assert.Equal(t, models.PhasePlaying, room.State.Phase)
}

func TestMulliganAgainRedraws(t *testing.T) {
	room, _ := startedRoom(t)
	p := room.State.Players[0]

	room.HandleAction(0, GameAction{Kind: ActionMulliganAgain}, "")
	assert.Len(t, p.Hand, 7)
	assert.Len(t, p.Deck, 33)
	assert.Equal(t, 1, p.Mulligans)
}

func TestMulliganKeepBottomsCards(t *testing.T) {
	room, _ := startedRoom(t)
	p := room.State.Players[0]
	room.HandleAction(0, GameAction{Kind: ActionMulliganAgain}, "")

	bottomID := p.Hand[0].ID
	room.HandleAction(0, GameAction{
		Kind:     ActionMulliganKeep,
		CardList: &CardListPayload{BottomIDs: []uuid.UUID{bottomID}},
	}, "")

	assert.True(t, p.HasKeptHand)
	assert.Len(t, p.Hand, 6)
	assert.Len(t, p.Deck, 34)
	assert.Equal(t, bottomID, p.Deck[len(p.Deck)-1].ID)

	// Second keep flips the phase and starts turn one.
	room.HandleAction(1, GameAction{Kind: ActionMulliganKeep}, "")
	assert.Equal(t, models.PhasePlaying, room.State.Phase)
	assert.Equal(t, models.TurnInfo{Number: 1, ActivePlayer: 0}, room.State.Turn)
}

func TestMulliganIgnoredAfterKeep(t *testing.T) {
	room, _ := startedRoom(t)
	p := room.State.Players[0]
	room.HandleAction(0, GameAction{Kind: ActionMulliganKeep}, "")
	room.HandleAction(0, GameAction{Kind: ActionMulliganAgain}, "")
	assert.Equal(t, 0, p.Mulligans)
	assert.Len(t, p.Hand, 7)
}

func TestMoveCardHandToBattlefield(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	cardID := p.Hand[0].ID

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: cardID, To: models.ZoneBattlefield},
	}, "")

	assert.Len(t, p.Hand, 6)
	require.Len(t, p.Battlefield, 1)
	card := p.Battlefield[0]
	assert.Equal(t, cardID, card.ID)
	assert.False(t, card.Tapped)
	require.NotNil(t, card.Position)
	assert.Equal(t, 1, card.ZIndex)
}

func TestMoveCardDanglingIDIsNoOp(t *testing.T) {
	room, ms := playingRoom(t)
	before := len(room.State.Players[0].Hand)

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: uuid.New(), To: models.ZoneBattlefield},
	}, "")

	assert.Len(t, room.State.Players[0].Hand, before)
	// Still broadcast: clients converge even on a no-op.
	assert.Equal(t, 1, ms.count(0, protocol.TypeStateUpdate))
}

func TestMoveCardLeavingBattlefieldDetachesRiders(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	host := p.Hand[0].ID
	rider := p.Hand[1].ID
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: host, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: rider, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionAttachCard, Attach: &AttachCardPayload{CardID: rider, TargetID: host}}, "")

	riderCard, _, _ := room.findCardLocked(rider)
	require.NotNil(t, riderCard.AttachedTo)

	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: host, To: models.ZoneGraveyard}}, "")
	assert.Nil(t, riderCard.AttachedTo)
}

func TestMoveCardToOpponentBattlefield(t *testing.T) {
	room, _ := playingRoom(t)
	p0 := room.State.Players[0]
	p1 := room.State.Players[1]
	cardID := p0.Hand[0].ID
	oppSeat := 1

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: cardID, To: models.ZoneBattlefield, ToSeat: &oppSeat},
	}, "")

	assert.Len(t, p0.Hand, 6)
	assert.Empty(t, p0.Battlefield)
	require.Len(t, p1.Battlefield, 1)
	card := p1.Battlefield[0]
	assert.Equal(t, cardID, card.ID)
	require.NotNil(t, card.Position)
	assert.Equal(t, 1, card.ZIndex)
}

func TestMoveCardBackFromOpponentScrubsTableState(t *testing.T) {
	room, _ := playingRoom(t)
	p0 := room.State.Players[0]
	p1 := room.State.Players[1]
	cardID := p0.Hand[0].ID
	oppSeat := 1
	ownSeat := 0

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: cardID, To: models.ZoneBattlefield, ToSeat: &oppSeat},
	}, "")
	room.HandleAction(1, GameAction{Kind: ActionTapCard, Tap: &TapCardPayload{CardID: cardID, Tapped: true}}, "")
	room.HandleAction(1, GameAction{Kind: ActionFlipCard, Flip: &FlipCardPayload{CardID: cardID, FaceDown: true}}, "")

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: cardID, To: models.ZoneHand, ToSeat: &ownSeat},
	}, "")

	assert.Empty(t, p1.Battlefield)
	require.Len(t, p0.Hand, 7)
	returned := p0.Hand[6]
	assert.Equal(t, cardID, returned.ID)
	assert.False(t, returned.Tapped)
	assert.False(t, returned.FaceDown)
	assert.Nil(t, returned.Position)
	assert.Zero(t, returned.ZIndex)
}

func TestMoveCardBadSeatIsNoOp(t *testing.T) {
	room, _ := playingRoom(t)
	p0 := room.State.Players[0]
	cardID := p0.Hand[0].ID
	badSeat := 2

	room.HandleAction(0, GameAction{
		Kind: ActionMoveCard,
		Move: &MoveCardPayload{CardID: cardID, To: models.ZoneBattlefield, ToSeat: &badSeat},
	}, "")

	assert.Len(t, p0.Hand, 7)
	assert.Empty(t, p0.Battlefield)
}

func TestDetachCardClearsLinkAndNudges(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	host := p.Hand[0].ID
	rider := p.Hand[1].ID
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: host, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: rider, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionAttachCard, Attach: &AttachCardPayload{CardID: rider, TargetID: host}}, "")

	riderCard, _, _ := room.findCardLocked(rider)
	require.NotNil(t, riderCard.AttachedTo)
	require.NotNil(t, riderCard.Position)
	y := riderCard.Position.Y

	room.HandleAction(0, GameAction{Kind: ActionDetachCard, Card: &CardPayload{CardID: rider}}, "")

	assert.Nil(t, riderCard.AttachedTo)
	assert.InDelta(t, y+0.03, riderCard.Position.Y, 1e-9)
}

func TestAttachAcrossBattlefields(t *testing.T) {
	room, _ := playingRoom(t)
	p0 := room.State.Players[0]
	p1 := room.State.Players[1]
	mine := p0.Hand[0].ID
	theirs := p1.Hand[0].ID

	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: mine, To: models.ZoneBattlefield}}, "")
	room.HandleAction(1, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: theirs, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionAttachCard, Attach: &AttachCardPayload{CardID: mine, TargetID: theirs}}, "")

	mineCard, _, _ := room.findCardLocked(mine)
	require.NotNil(t, mineCard.AttachedTo)
	assert.Equal(t, theirs, *mineCard.AttachedTo)

	// The host leaving its battlefield severs the cross-player link too.
	room.HandleAction(1, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: theirs, To: models.ZoneGraveyard}}, "")
	assert.Nil(t, mineCard.AttachedTo)
}

func TestDrawCard(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]

	room.HandleAction(0, GameAction{Kind: ActionDrawCard, Draw: &DrawCardPayload{Count: 2}}, "")
	assert.Len(t, p.Hand, 9)
	assert.Len(t, p.Deck, 31)
}

func TestTapAndUntapAll(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	a := p.Hand[0].ID
	b := p.Hand[1].ID
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: a, To: models.ZoneBattlefield}}, "")
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: b, To: models.ZoneBattlefield}}, "")

	room.HandleAction(0, GameAction{Kind: ActionTapCard, Tap: &TapCardPayload{CardID: a, Tapped: true}}, "")
	room.HandleAction(0, GameAction{Kind: ActionTapCard, Tap: &TapCardPayload{CardID: b, Tapped: true}}, "")
	assert.True(t, p.Battlefield[0].Tapped)
	assert.True(t, p.Battlefield[1].Tapped)

	room.HandleAction(0, GameAction{Kind: ActionUntapAll}, "")
	assert.False(t, p.Battlefield[0].Tapped)
	assert.False(t, p.Battlefield[1].Tapped)
}

func TestCreateTokenAndNextGameDiscardsIt(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]

	room.HandleAction(0, GameAction{Kind: ActionCreateToken, Token: &CreateTokenPayload{Name: "Soldier"}}, "")
	require.Len(t, p.Battlefield, 1)
	assert.True(t, p.Battlefield[0].Token)

	room.HandleAction(1, GameAction{Kind: ActionConcede}, "")
	assert.Equal(t, models.PhaseSideboarding, room.State.Phase)
	room.HandleAction(0, GameAction{Kind: ActionReadyNextGame}, "")
	room.HandleAction(1, GameAction{Kind: ActionReadyNextGame}, "")

	assert.Equal(t, models.PhaseMulligan, room.State.Phase)
	assert.Equal(t, 2, room.State.GameNumber)
	// 40 non-token cards back in the pool: 7 in hand, 33 in the library.
	assert.Len(t, p.Hand, 7)
	assert.Len(t, p.Deck, 33)
	assert.Empty(t, p.Battlefield)
	assert.Equal(t, models.StartingLife, p.LifeTotal())
}

func TestCardCountersClampAndVanish(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	id := p.Hand[0].ID
	room.HandleAction(0, GameAction{Kind: ActionMoveCard, Move: &MoveCardPayload{CardID: id, To: models.ZoneBattlefield}}, "")

	room.HandleAction(0, GameAction{Kind: ActionAddCounter, Counter: &AddCounterPayload{CardID: id, Kind: "+1/+1", Delta: 3}}, "")
	card := p.Battlefield[0]
	require.Len(t, card.Counters, 1)
	assert.Equal(t, 3, card.Counters[0].Count)

	room.HandleAction(0, GameAction{Kind: ActionAddCounter, Counter: &AddCounterPayload{CardID: id, Kind: "+1/+1", Delta: -5}}, "")
	assert.Empty(t, card.Counters)
}

func TestSendToBackReordersLayers(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	for i := 0; i < 3; i++ {
		room.HandleAction(0, GameAction{Kind: ActionCreateToken, Token: &CreateTokenPayload{Name: "Token"}}, "")
	}
	require.Len(t, p.Battlefield, 3)
	assert.Equal(t, []int{1, 2, 3}, zOrders(p.Battlefield))

	room.HandleAction(0, GameAction{Kind: ActionSendToBack, Card: &CardPayload{CardID: p.Battlefield[2].ID}}, "")
	assert.Equal(t, []int{2, 3, 1}, zOrders(p.Battlefield))

	room.HandleAction(0, GameAction{Kind: ActionBringToFront, Card: &CardPayload{CardID: p.Battlefield[2].ID}}, "")
	assert.Equal(t, []int{2, 3, 4}, zOrders(p.Battlefield))
}

func zOrders(cards []*models.CardInstance) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = c.ZIndex
	}
	return out
}

func TestPutOnTopDedupesAndOrders(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]
	first := p.Hand[0].ID
	second := p.Hand[1].ID

	room.HandleAction(0, GameAction{
		Kind:     ActionPutOnTop,
		CardList: &CardListPayload{CardIDs: []uuid.UUID{first, second, first}},
	}, "")

	assert.Len(t, p.Hand, 5)
	require.True(t, len(p.Deck) >= 2)
	assert.Equal(t, first, p.Deck[0].ID)
	assert.Equal(t, second, p.Deck[1].ID)
	assert.Len(t, p.Deck, 35)
}

func TestLifeLedgerAppendsOnly(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[0]

	room.HandleAction(0, GameAction{Kind: ActionAdjustLife, Life: &AdjustLifePayload{Delta: -3, Note: "combat"}}, "")
	room.HandleAction(0, GameAction{Kind: ActionAdjustLife, Life: &AdjustLifePayload{Delta: 1}}, "")

	require.Len(t, p.Life, 3)
	assert.Equal(t, 18, p.LifeTotal())
	assert.Equal(t, "combat", p.Life[1].Note)
}

func TestPlayerCountersClampAtZero(t *testing.T) {
	room, _ := playingRoom(t)
	p := room.State.Players[1]

	room.HandleAction(1, GameAction{Kind: ActionSetCounter, SetCtr: &SetCounterPayload{Kind: "poison", Delta: 2}}, "")
	room.HandleAction(1, GameAction{Kind: ActionSetCounter, SetCtr: &SetCounterPayload{Kind: "poison", Delta: -5}}, "")
	assert.Equal(t, 0, p.Counters["poison"])
}

func TestPassTurnAlternates(t *testing.T) {
	room, _ := playingRoom(t)

	room.HandleAction(0, GameAction{Kind: ActionPassTurn}, "")
	assert.Equal(t, 2, room.State.Turn.Number)
	assert.Equal(t, 1, room.State.Turn.ActivePlayer)

	room.HandleAction(1, GameAction{Kind: ActionPassTurn}, "")
	assert.Equal(t, 3, room.State.Turn.Number)
	assert.Equal(t, 0, room.State.Turn.ActivePlayer)
}

func TestSoloPassTurnPinsActivePlayer(t *testing.T) {
	_, room, _ := setupTestRoom(t, true)
	require.Nil(t, room.SubmitDeck(0, protocol.SubmitDeckPayload{MainDeck: testDeck(40)}))
	require.Nil(t, room.StartMatch(0))
	room.HandleAction(0, GameAction{Kind: ActionMulliganKeep}, "")

	room.HandleAction(0, GameAction{Kind: ActionPassTurn}, "")
	assert.Equal(t, 2, room.State.Turn.Number)
	assert.Equal(t, 0, room.State.Turn.ActivePlayer)
}

func TestMatchEndsAtTwoWins(t *testing.T) {
	room, _ := playingRoom(t)

	room.HandleAction(1, GameAction{Kind: ActionConcede}, "")
	require.Len(t, room.State.Results, 1)
	assert.Equal(t, 0, room.State.Results[0].Winner)
	assert.True(t, room.State.Results[0].Concession)
	assert.Equal(t, models.PhaseSideboarding, room.State.Phase)

	room.HandleAction(0, GameAction{Kind: ActionReadyNextGame}, "")
	room.HandleAction(1, GameAction{Kind: ActionReadyNextGame}, "")
	room.HandleAction(0, GameAction{Kind: ActionMulliganKeep}, "")
	room.HandleAction(1, GameAction{Kind: ActionMulliganKeep}, "")
	require.Equal(t, models.PhasePlaying, room.State.Phase)

	room.HandleAction(0, GameAction{Kind: ActionDeclareWinner, Winner: &DeclareWinnerPayload{Winner: 0}}, "")
	assert.Equal(t, models.PhaseFinished, room.State.Phase)
	assert.Equal(t, 2, room.State.Wins(0))
}

func TestRevealHandGoesToOpponentOnly(t *testing.T) {
	room, ms := playingRoom(t)

	room.HandleAction(0, GameAction{Kind: ActionRevealHand}, "")

	assert.Equal(t, 0, ms.count(0, protocol.TypeStateUpdate))
	assert.Equal(t, 0, ms.count(1, protocol.TypeStateUpdate))
	assert.Equal(t, 0, ms.count(0, protocol.TypeCardsRevealed))

	msg := ms.lastOfType(1, protocol.TypeCardsRevealed)
	require.NotNil(t, msg)
	payload := msg.Payload.(protocol.CardsRevealedPayload)
	assert.Equal(t, "Alice", payload.RevealerName)
	assert.Equal(t, "hand", payload.Source)
	assert.Len(t, payload.Cards, 7)
}

func TestPeekLibraryGoesToPeekerOnly(t *testing.T) {
	room, ms := playingRoom(t)

	room.HandleAction(1, GameAction{Kind: ActionPeekLibrary, Peek: &PeekLibraryPayload{Seat: 1, Count: 3}}, "")

	assert.Equal(t, 0, ms.count(0, protocol.TypeCardsRevealed))
	msg := ms.lastOfType(1, protocol.TypeCardsRevealed)
	require.NotNil(t, msg)
	payload := msg.Payload.(protocol.CardsRevealedPayload)
	assert.Equal(t, "library", payload.Source)
	assert.Len(t, payload.Cards, 3)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	room, ms := playingRoom(t)
	before := room.State.Clone()

	room.HandleAction(0, GameAction{Kind: ActionDrawCard}, "")
	require.Len(t, room.State.Players[0].Hand, 8)
	after := room.State.Clone()

	// Undo is an exact inverse: the whole state, log included, matches the
	// pre-action snapshot.
	room.HandleAction(0, GameAction{Kind: ActionUndo}, "")
	assert.Equal(t, before, room.State)

	room.HandleAction(0, GameAction{Kind: ActionRedo}, "")
	assert.Equal(t, after, room.State)

	// Redo past the end of the timeline is silent.
	ms.clear()
	room.HandleAction(0, GameAction{Kind: ActionRedo}, "")
	assert.Equal(t, after, room.State)
	assert.Equal(t, 0, ms.count(0, protocol.TypeStateUpdate))
}

func TestNewActionDiscardsRedoTail(t *testing.T) {
	room, ms := playingRoom(t)

	room.HandleAction(0, GameAction{Kind: ActionDrawCard}, "")
	room.HandleAction(0, GameAction{Kind: ActionUndo}, "")
	require.Len(t, room.State.Players[0].Hand, 7)

	room.HandleAction(0, GameAction{Kind: ActionAdjustLife, Life: &AdjustLifePayload{Delta: -1}}, "")

	ms.clear()
	room.HandleAction(0, GameAction{Kind: ActionRedo}, "")
	assert.Len(t, room.State.Players[0].Hand, 7)
	assert.Equal(t, 19, room.State.Players[0].LifeTotal())
	assert.Equal(t, 0, ms.count(0, protocol.TypeStateUpdate))
}

func TestUndoSurvivesPlayerIdentity(t *testing.T) {
	room, _ := playingRoom(t)
	id := room.State.Players[0].ID

	room.HandleAction(0, GameAction{Kind: ActionDrawCard}, "")
	room.HandleAction(0, GameAction{Kind: ActionUndo}, "")
	assert.Equal(t, id, room.State.Players[0].ID)
	assert.NotEmpty(t, room.State.PasswordHash)
}

func TestSaveGameAnswersRequesterOnly(t *testing.T) {
	room, ms := playingRoom(t)

	room.HandleAction(0, GameAction{Kind: ActionSaveGame}, "req-1")

	msg := ms.lastOfType(0, protocol.TypeGameSaved)
	require.NotNil(t, msg)
	assert.Equal(t, "req-1", msg.RequestID)
	assert.NotEmpty(t, msg.Payload.(protocol.GameSavedPayload).Code)
	assert.Equal(t, 0, ms.count(1, protocol.TypeGameSaved))
}

func TestLoadGameBadCodeErrors(t *testing.T) {
	room, ms := playingRoom(t)
	before := room.State.Clone()

	room.HandleAction(0, GameAction{Kind: ActionLoadGame, Load: &LoadGamePayload{Code: "garbage"}}, "req-2")

	msg := ms.lastOfType(0, protocol.TypeError)
	require.NotNil(t, msg)
	assert.Equal(t, protocol.CodeLoadFailed, msg.Payload.(protocol.ErrorPayload).Code)
	assert.Equal(t, before.Phase, room.State.Phase)
}

func TestLoadGameReplacesStateAndClearsHistory(t *testing.T) {
	room, ms := playingRoom(t)

	room.HandleAction(0, GameAction{Kind: ActionAdjustLife, Life: &AdjustLifePayload{Delta: -5}}, "")
	room.HandleAction(0, GameAction{Kind: ActionSaveGame}, "save")
	code := ms.lastOfType(0, protocol.TypeGameSaved).Payload.(protocol.GameSavedPayload).Code

	room.HandleAction(0, GameAction{Kind: ActionAdjustLife, Life: &AdjustLifePayload{Delta: -10}}, "")
	require.Equal(t, 5, room.State.Players[0].LifeTotal())

	room.HandleAction(0, GameAction{Kind: ActionLoadGame, Load: &LoadGamePayload{Code: code}}, "load")

	assert.Equal(t, 15, room.State.Players[0].LifeTotal())
	assert.Equal(t, 0, room.History.Len())
	require.NotNil(t, ms.lastOfType(1, protocol.TypeGameLoaded))

	// The discarded timeline cannot be undone back into.
	ms.clear()
	room.HandleAction(0, GameAction{Kind: ActionUndo}, "")
	assert.Equal(t, 15, room.State.Players[0].LifeTotal())
}

func TestUnknownActionKindIsHarmless(t *testing.T) {
	room, ms := playingRoom(t)
	before := len(room.State.Players[0].Hand)

	room.HandleAction(0, GameAction{Kind: ActionKind("FROM_THE_FUTURE")}, "")

	assert.Len(t, room.State.Players[0].Hand, before)
	assert.Equal(t, 1, ms.count(0, protocol.TypeStateUpdate))
}

func TestReapAfterGracePeriod(t *testing.T) {
	reg := NewRegistry(30*time.Millisecond, testLogger(), nil)
	room, _, err := reg.CreateRoom("Alice", "secret", true)
	require.NoError(t, err)
	room.SendFn = newMockSender().sendFn

	room.HandleDisconnect(0, nil)
	require.Equal(t, 1, reg.Count())

	assert.Eventually(t, func() bool { return reg.Count() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestReconnectCancelsReap(t *testing.T) {
	reg := NewRegistry(30*time.Millisecond, testLogger(), nil)
	room, creator, err := reg.CreateRoom("Alice", "secret", true)
	require.NoError(t, err)
	ms := newMockSender()
	room.SendFn = ms.sendFn

	room.HandleDisconnect(0, nil)
	seat, state, cerr := room.Reconnect(creator.ID, nil)
	require.Nil(t, cerr)
	assert.Equal(t, 0, seat)
	require.NotNil(t, state)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, reg.Count())
}

func TestReconnectUnknownPlayer(t *testing.T) {
	_, room, _ := setupTestRoom(t, false)
	_, _, cerr := room.Reconnect(uuid.New(), nil)
	require.NotNil(t, cerr)
	assert.Equal(t, protocol.CodePlayerNotFound, cerr.Code)
}
