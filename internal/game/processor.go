// internal/game/processor.go
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/playmat/playmat/internal/historian"
	"github.com/playmat/playmat/internal/models"
	"github.com/playmat/playmat/internal/protocol"
)

// HandleAction is the single entry point for in-game actions. Every mutation
// of room state funnels through here under the room mutex: meta actions
// (undo/redo/save/load) manage the timeline directly, everything else pushes
// a pre-mutation snapshot, applies, and broadcasts the result. Actions that
// reference cards or seats that no longer exist are silent no-ops, so a
// client racing an undo can never corrupt state or crash the session.
func (r *Room) HandleAction(seat int, act GameAction, requestID string) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if seat < 0 || seat > 1 || r.State.Players[seat] == nil {
		return
	}

	if r.hist != nil {
		r.hist.Record(historian.ActionRecord{
			RoomCode:   r.Code,
			Seat:       seat,
			PlayerID:   r.State.Players[seat].ID,
			ActionKind: string(act.Kind),
			Timestamp:  time.Now().UnixMilli(),
		})
	}

	if act.IsMeta() {
		r.handleMetaLocked(seat, act, requestID)
		return
	}

	r.History.Save(r.State)
	broadcast := r.applyLocked(seat, act)
	if broadcast {
		r.State.AppendLog(seat, string(act.Kind))
		r.broadcastStateLocked()
	}
}

// handleMetaLocked dispatches the timeline actions. Undo and redo at their
// boundary are no-ops rather than errors; save and load answer only the
// requesting seat unless the load actually replaces state.
func (r *Room) handleMetaLocked(seat int, act GameAction, requestID string) {
	switch act.Kind {
	case ActionUndo:
		restored, ok := r.History.Undo(r.State)
		if !ok {
			return
		}
		// No log row: undo must restore the pre-action state exactly,
		// including the rolling log.
		restored.PasswordHash = r.State.PasswordHash
		r.State = restored
		r.broadcastStateLocked()

	case ActionRedo:
		restored, ok := r.History.Redo()
		if !ok {
			return
		}
		restored.PasswordHash = r.State.PasswordHash
		r.State = restored
		r.broadcastStateLocked()

	case ActionSaveGame:
		code, err := EncodeSaveCode(r.State)
		if err != nil {
			r.log.Errorf("Failed to encode save code: %v", err)
			r.send(seat, protocol.ServerMessage{
				Type:      protocol.TypeError,
				Payload:   protocol.ErrorPayload{Code: protocol.CodeInvalidState, Message: "could not export game"},
				RequestID: requestID,
			})
			return
		}
		r.send(seat, protocol.ServerMessage{
			Type:      protocol.TypeGameSaved,
			Payload:   protocol.GameSavedPayload{Code: code},
			RequestID: requestID,
		})

	case ActionLoadGame:
		var code string
		if act.Load != nil {
			code = act.Load.Code
		}
		saved, err := DecodeSaveCode(code)
		if err != nil {
			r.send(seat, protocol.ServerMessage{
				Type:      protocol.TypeError,
				Payload:   protocol.ErrorPayload{Code: protocol.CodeLoadFailed, Message: "save code is invalid"},
				RequestID: requestID,
			})
			return
		}
		r.State.Phase = saved.Phase
		r.State.Players = saved.Players
		r.State.Stack = saved.Stack
		r.State.GameNumber = saved.GameNumber
		r.State.Results = saved.Results
		r.State.Turn = saved.Turn
		r.History.Clear()
		r.State.AppendLog(seat, string(ActionLoadGame))
		r.broadcastLocked(protocol.ServerMessage{Type: protocol.TypeGameLoaded, RequestID: requestID})
		r.broadcastStateLocked()
	}
}

// applyLocked mutates state for one non-meta action and reports whether the
// result should be broadcast. Reveal-family actions deliver their payload on
// a side channel instead of mutating shared state.
func (r *Room) applyLocked(seat int, act GameAction) bool {
	p := r.State.Players[seat]

	switch act.Kind {
	case ActionMoveCard:
		if act.Move != nil {
			r.applyMoveLocked(seat, act.Move)
		}

	case ActionDrawCard:
		n := 1
		if act.Draw != nil && act.Draw.Count > 0 {
			n = act.Draw.Count
		}
		for i := 0; i < n && len(p.Deck) > 0; i++ {
			card := p.Deck[0]
			p.Deck = p.Deck[1:]
			card.ResetTableState()
			p.Hand = append(p.Hand, card)
		}

	case ActionTapCard:
		if act.Tap != nil {
			if card, _, _ := r.findCardLocked(act.Tap.CardID); card != nil {
				card.Tapped = act.Tap.Tapped
			}
		}

	case ActionUntapAll:
		for _, card := range p.Battlefield {
			card.Tapped = false
		}

	case ActionFlipCard:
		if act.Flip != nil {
			if card, _, _ := r.findCardLocked(act.Flip.CardID); card != nil {
				card.FaceDown = act.Flip.FaceDown
			}
		}

	case ActionTransformCard:
		if act.Card != nil {
			if card, _, _ := r.findCardLocked(act.Card.CardID); card != nil {
				card.Transformed = !card.Transformed
			}
		}

	case ActionCreateToken:
		if act.Token != nil {
			token := models.NewCardInstance(act.Token.Name, "")
			token.Token = true
			token.Position = r.dropPositionLocked(act.Token.X, act.Token.Y)
			token.ZIndex = maxZIndex(p.Battlefield) + 1
			p.Battlefield = append(p.Battlefield, token)
		}

	case ActionAddCounter:
		if act.Counter != nil {
			if card, _, _ := r.findCardLocked(act.Counter.CardID); card != nil {
				adjustCardCounter(card, act.Counter.Kind, act.Counter.Delta)
			}
		}

	case ActionAttachCard:
		if act.Attach != nil {
			r.applyAttachLocked(act.Attach)
		}

	case ActionDetachCard:
		if act.Card != nil {
			if card, _, zone := r.findCardLocked(act.Card.CardID); card != nil && zone == models.ZoneBattlefield {
				card.AttachedTo = nil
				if card.Position != nil {
					card.Position.Y += 0.03
				}
			}
		}

	case ActionBringToFront:
		if act.Card != nil {
			if card, owner, zone := r.findCardLocked(act.Card.CardID); card != nil && zone == models.ZoneBattlefield {
				card.ZIndex = maxZIndex(r.State.Players[owner].Battlefield) + 1
			}
		}

	case ActionSendToBack:
		if act.Card != nil {
			if card, owner, zone := r.findCardLocked(act.Card.CardID); card != nil && zone == models.ZoneBattlefield {
				for _, other := range r.State.Players[owner].Battlefield {
					if other.ID != card.ID {
						other.ZIndex++
					}
				}
				card.ZIndex = 1
			}
		}

	case ActionPutOnTop, ActionPutOnBottom:
		if act.CardList != nil {
			r.applyPutLocked(seat, act.CardList.IDs(), act.Kind == ActionPutOnTop)
		}

	case ActionShuffle:
		r.shuffleLocked(p)

	case ActionMulliganAgain:
		if r.State.Phase != models.PhaseMulligan || p.HasKeptHand {
			return false
		}
		p.Deck = append(p.Deck, p.Hand...)
		p.Hand = nil
		r.shuffleLocked(p)
		for i := 0; i < openingHandSize && len(p.Deck) > 0; i++ {
			card := p.Deck[0]
			p.Deck = p.Deck[1:]
			card.ResetTableState()
			p.Hand = append(p.Hand, card)
		}
		p.Mulligans++

	case ActionMulliganKeep:
		if r.State.Phase != models.PhaseMulligan || p.HasKeptHand {
			return false
		}
		if act.CardList != nil {
			for _, id := range dedupe(act.CardList.IDs()) {
				if card, ok := removeFromSlice(&p.Hand, id); ok {
					card.ResetTableState()
					p.Deck = append(p.Deck, card)
				}
			}
		}
		p.HasKeptHand = true
		if r.allKeptLocked() {
			r.State.Phase = models.PhasePlaying
			r.State.Turn = models.TurnInfo{Number: 1, ActivePlayer: 0}
		}

	case ActionRevealHand:
		r.revealLocked(seat, p.Hand, "hand", true)
		return false

	case ActionRevealCard:
		if act.Card != nil {
			if card, _, zone := r.findCardLocked(act.Card.CardID); card != nil {
				r.revealLocked(seat, []*models.CardInstance{card}, string(zone), true)
			}
		}
		return false

	case ActionPeekLibrary:
		if act.Peek != nil {
			target := act.Peek.Seat
			if target >= 0 && target <= 1 && r.State.Players[target] != nil {
				n := act.Peek.Count
				deck := r.State.Players[target].Deck
				if n <= 0 || n > len(deck) {
					n = len(deck)
				}
				r.revealLocked(seat, deck[:n], "library", false)
			}
		}
		return false

	case ActionAdjustLife:
		if act.Life != nil {
			p.AdjustLife(act.Life.Delta, act.Life.Note)
		}

	case ActionSetCounter:
		if act.SetCtr != nil {
			p.AdjustCounter(act.SetCtr.Kind, act.SetCtr.Delta)
		}

	case ActionPassTurn:
		if r.State.Phase != models.PhasePlaying {
			return false
		}
		r.State.Turn.Number++
		r.State.Turn.Label = ""
		if !r.Solo {
			r.State.Turn.ActivePlayer = 1 - r.State.Turn.ActivePlayer
		}

	case ActionConcede:
		r.recordResultLocked(1-seat, true)

	case ActionDeclareWinner:
		if act.Winner != nil && act.Winner.Winner >= 0 && act.Winner.Winner <= 1 {
			r.recordResultLocked(act.Winner.Winner, false)
		}

	case ActionReadyNextGame:
		if r.State.Phase != models.PhaseSideboarding {
			return false
		}
		p.ReadyForNextGame = true
		if r.allReadyLocked() {
			r.nextGameLocked()
		}
	}

	return true
}

// applyMoveLocked relocates one card. The destination is validated before the
// card is removed so a bad request leaves everything in place. A card leaving
// a battlefield sheds anything attached to it; a card entering a battlefield
// lands untapped at the requested or a jittered drop position, on top of the
// z-order.
func (r *Room) applyMoveLocked(seat int, mv *MoveCardPayload) {
	destSeat := seat
	if mv.ToSeat != nil {
		if *mv.ToSeat < 0 || *mv.ToSeat > 1 {
			return
		}
		destSeat = *mv.ToSeat
	}
	if mv.To != models.ZoneStack {
		owner := r.State.Players[destSeat]
		if owner == nil || owner.ZoneCards(mv.To) == nil {
			return
		}
	}

	card, _, fromZone, ok := r.removeCardLocked(mv.CardID)
	if !ok {
		return
	}
	if fromZone == models.ZoneBattlefield {
		r.clearAttachmentsToLocked(card.ID)
	}

	switch mv.To {
	case models.ZoneStack:
		card.ResetTableState()
		r.State.Stack = append(r.State.Stack, card)
	case models.ZoneBattlefield:
		owner := r.State.Players[destSeat]
		if fromZone != models.ZoneBattlefield {
			card.ResetTableState()
		}
		card.Tapped = false
		card.FaceDown = mv.FaceDown
		card.Position = r.dropPositionLocked(mv.X, mv.Y)
		card.ZIndex = maxZIndex(owner.Battlefield) + 1
		owner.Battlefield = append(owner.Battlefield, card)
	default:
		card.ResetTableState()
		zone := r.State.Players[destSeat].ZoneCards(mv.To)
		*zone = append(*zone, card)
	}
}

func (r *Room) applyAttachLocked(att *AttachCardPayload) {
	if att.CardID == att.TargetID {
		return
	}
	card, _, cardZone := r.findCardLocked(att.CardID)
	target, _, targetZone := r.findCardLocked(att.TargetID)
	if card == nil || target == nil {
		return
	}
	if cardZone != models.ZoneBattlefield || targetZone != models.ZoneBattlefield {
		return
	}
	targetID := att.TargetID
	card.AttachedTo = &targetID
	if target.Position != nil {
		card.Position = &models.Position{X: target.Position.X, Y: target.Position.Y}
	}
}

// applyPutLocked moves the listed cards onto the acting player's library.
// The first listed id ends up topmost (or bottommost for the bottom variant);
// duplicate and dangling ids are dropped.
func (r *Room) applyPutLocked(seat int, ids []uuid.UUID, top bool) {
	p := r.State.Players[seat]
	var moved []*models.CardInstance
	for _, id := range dedupe(ids) {
		card, _, fromZone, ok := r.removeCardLocked(id)
		if !ok {
			continue
		}
		if fromZone == models.ZoneBattlefield {
			r.clearAttachmentsToLocked(card.ID)
		}
		card.ResetTableState()
		moved = append(moved, card)
	}
	if top {
		p.Deck = append(moved, p.Deck...)
	} else {
		p.Deck = append(p.Deck, moved...)
	}
}

// revealLocked ships a reveal payload over the side channel: to the other
// seats when toOthers is set (showing a hand or a card), otherwise back to
// the revealing seat (peeking a library).
func (r *Room) revealLocked(seat int, cards []*models.CardInstance, source string, toOthers bool) {
	revealed := make([]protocol.RevealedCard, 0, len(cards))
	for _, c := range cards {
		revealed = append(revealed, protocol.RevealedCard{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL})
	}
	msg := protocol.ServerMessage{
		Type: protocol.TypeCardsRevealed,
		Payload: protocol.CardsRevealedPayload{
			RevealerName: r.State.Players[seat].Name,
			Source:       source,
			Cards:        revealed,
		},
	}
	if toOthers {
		r.notifyOthersLocked(seat, msg)
	} else {
		r.send(seat, msg)
	}
}

// recordResultLocked closes the current game. Two wins or three completed
// games finish the match; otherwise the room moves to sideboarding and the
// between-games ready flags reset.
func (r *Room) recordResultLocked(winner int, concession bool) {
	if r.State.Phase != models.PhasePlaying && r.State.Phase != models.PhaseMulligan {
		return
	}
	r.State.Results = append(r.State.Results, models.GameResult{
		Game:       r.State.GameNumber,
		Winner:     winner,
		Concession: concession,
	})
	if r.State.Wins(winner) >= 2 || len(r.State.Results) >= 3 {
		r.State.Phase = models.PhaseFinished
		return
	}
	r.State.Phase = models.PhaseSideboarding
	for _, p := range r.State.Players {
		if p != nil && !p.Synthetic {
			p.ReadyForNextGame = false
		}
	}
}

// nextGameLocked sets up the following game of the match. Each player's
// non-sideboard cards are pooled back into the library with tokens discarded
// and table state scrubbed, then the normal shuffle-and-deal runs again.
func (r *Room) nextGameLocked() {
	r.State.GameNumber++
	for _, p := range r.State.Players {
		if p == nil || p.Synthetic {
			continue
		}
		var pool []*models.CardInstance
		for _, zone := range [][]*models.CardInstance{p.Deck, p.Hand, p.Battlefield, p.Graveyard, p.ExileActive, p.ExilePermanent} {
			for _, card := range zone {
				if card.Token {
					continue
				}
				card.ResetTableState()
				pool = append(pool, card)
			}
		}
		p.Deck = pool
		p.Hand = nil
		p.Battlefield = nil
		p.Graveyard = nil
		p.ExileActive = nil
		p.ExilePermanent = nil
	}
	r.State.Stack = nil
	r.dealOpeningHandsLocked()
	r.State.Phase = models.PhaseMulligan
	r.State.Turn = models.PreGameTurn()
}

// --- lookup helpers ---

// findCardLocked locates a card anywhere on the table. The owner seat is -1
// for the shared stack. A miss returns a nil card.
func (r *Room) findCardLocked(id uuid.UUID) (*models.CardInstance, int, models.Zone) {
	for seat, p := range r.State.Players {
		if p == nil {
			continue
		}
		for _, z := range models.PlayerZones {
			for _, c := range *p.ZoneCards(z) {
				if c.ID == id {
					return c, seat, z
				}
			}
		}
	}
	for _, c := range r.State.Stack {
		if c.ID == id {
			return c, -1, models.ZoneStack
		}
	}
	return nil, 0, ""
}

// removeCardLocked extracts a card from whichever zone holds it.
func (r *Room) removeCardLocked(id uuid.UUID) (*models.CardInstance, int, models.Zone, bool) {
	for seat, p := range r.State.Players {
		if p == nil {
			continue
		}
		for _, z := range models.PlayerZones {
			if card, ok := removeFromSlice(p.ZoneCards(z), id); ok {
				return card, seat, z, true
			}
		}
	}
	if card, ok := removeFromSlice(&r.State.Stack, id); ok {
		return card, -1, models.ZoneStack, true
	}
	return nil, 0, "", false
}

func removeFromSlice(cards *[]*models.CardInstance, id uuid.UUID) (*models.CardInstance, bool) {
	for i, c := range *cards {
		if c.ID == id {
			*cards = append((*cards)[:i], (*cards)[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

// clearAttachmentsToLocked detaches every card attached to the given host.
func (r *Room) clearAttachmentsToLocked(hostID uuid.UUID) {
	for _, p := range r.State.Players {
		if p == nil {
			continue
		}
		for _, c := range p.Battlefield {
			if c.AttachedTo != nil && *c.AttachedTo == hostID {
				c.AttachedTo = nil
			}
		}
	}
}

// dropPositionLocked resolves a battlefield landing spot: explicit
// coordinates when the client supplied them, otherwise a lightly jittered
// default so stacked drops stay individually grabbable.
func (r *Room) dropPositionLocked(x, y *float64) *models.Position {
	if x != nil && y != nil {
		return &models.Position{X: *x, Y: *y}
	}
	return &models.Position{
		X: 0.4 + (r.rng.Float64()-0.5)*0.1,
		Y: 0.4 + (r.rng.Float64()-0.5)*0.1,
	}
}

func maxZIndex(cards []*models.CardInstance) int {
	max := 0
	for _, c := range cards {
		if c.ZIndex > max {
			max = c.ZIndex
		}
	}
	return max
}

func adjustCardCounter(card *models.CardInstance, kind string, delta int) {
	for i := range card.Counters {
		if card.Counters[i].Kind == kind {
			card.Counters[i].Count += delta
			if card.Counters[i].Count <= 0 {
				card.Counters = append(card.Counters[:i], card.Counters[i+1:]...)
			}
			return
		}
	}
	if delta > 0 {
		card.Counters = append(card.Counters, models.CardCounter{Kind: kind, Count: delta})
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *Room) allKeptLocked() bool {
	for _, p := range r.State.Players {
		if p != nil && !p.HasKeptHand {
			return false
		}
	}
	return true
}

func (r *Room) allReadyLocked() bool {
	for _, p := range r.State.Players {
		if p != nil && !p.ReadyForNextGame {
			return false
		}
	}
	return true
}
