// internal/game/action.go
package game

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/playmat/playmat/internal/models"
)

// ActionKind tags one game-action variant.
type ActionKind string

const (
	ActionMoveCard      ActionKind = "MOVE_CARD"
	ActionDrawCard      ActionKind = "DRAW_CARD"
	ActionTapCard       ActionKind = "TAP_CARD"
	ActionUntapAll      ActionKind = "UNTAP_ALL"
	ActionFlipCard      ActionKind = "FLIP_CARD"
	ActionTransformCard ActionKind = "TRANSFORM_CARD"
	ActionCreateToken   ActionKind = "CREATE_TOKEN"
	ActionAddCounter    ActionKind = "ADD_COUNTER"
	ActionAttachCard    ActionKind = "ATTACH_CARD"
	ActionDetachCard    ActionKind = "DETACH_CARD"
	ActionBringToFront  ActionKind = "BRING_TO_FRONT"
	ActionSendToBack    ActionKind = "SEND_TO_BACK"
	ActionPutOnTop      ActionKind = "PUT_ON_TOP"
	ActionPutOnBottom   ActionKind = "PUT_ON_BOTTOM"
	ActionShuffle       ActionKind = "SHUFFLE_LIBRARY"
	ActionMulliganAgain ActionKind = "MULLIGAN_AGAIN"
	ActionMulliganKeep  ActionKind = "MULLIGAN_KEEP"
	ActionRevealHand    ActionKind = "REVEAL_HAND"
	ActionRevealCard    ActionKind = "REVEAL_CARD"
	ActionPeekLibrary   ActionKind = "PEEK_LIBRARY"
	ActionAdjustLife    ActionKind = "ADJUST_LIFE"
	ActionSetCounter    ActionKind = "SET_COUNTER"
	ActionPassTurn      ActionKind = "PASS_TURN"
	ActionConcede       ActionKind = "CONCEDE"
	ActionDeclareWinner ActionKind = "DECLARE_WINNER"
	ActionReadyNextGame ActionKind = "READY_FOR_NEXT_GAME"
	ActionUndo          ActionKind = "UNDO"
	ActionRedo          ActionKind = "REDO"
	ActionSaveGame      ActionKind = "SAVE_GAME"
	ActionLoadGame      ActionKind = "LOAD_GAME"
)

// Per-variant payloads. Optional scalars are pointers so "absent" is
// distinguishable from the zero value.

type MoveCardPayload struct {
	CardID   uuid.UUID   `json:"cardId"`
	From     models.Zone `json:"from,omitempty"`
	To       models.Zone `json:"to"`
	ToSeat   *int        `json:"toSeat,omitempty"`
	X        *float64    `json:"x,omitempty"`
	Y        *float64    `json:"y,omitempty"`
	FaceDown bool        `json:"faceDown,omitempty"`
}

type DrawCardPayload struct {
	Count int `json:"count,omitempty"`
}

type TapCardPayload struct {
	CardID uuid.UUID `json:"cardId"`
	Tapped bool      `json:"tapped"`
}

type FlipCardPayload struct {
	CardID   uuid.UUID `json:"cardId"`
	FaceDown bool      `json:"faceDown"`
}

// CardPayload serves single-card actions with no extra fields
// (TRANSFORM_CARD, DETACH_CARD, BRING_TO_FRONT, SEND_TO_BACK, REVEAL_CARD).
type CardPayload struct {
	CardID uuid.UUID `json:"cardId"`
}

type CreateTokenPayload struct {
	Name string   `json:"name"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
}

type AddCounterPayload struct {
	CardID uuid.UUID `json:"cardId"`
	Kind   string    `json:"kind"`
	Delta  int       `json:"delta"`
}

type AttachCardPayload struct {
	CardID   uuid.UUID `json:"cardId"`
	TargetID uuid.UUID `json:"targetId"`
}

// CardListPayload serves PUT_ON_TOP, PUT_ON_BOTTOM and MULLIGAN_KEEP.
type CardListPayload struct {
	CardIDs []uuid.UUID `json:"cardIds,omitempty"`

	// BottomIDs is the MULLIGAN_KEEP alias for the same list.
	BottomIDs []uuid.UUID `json:"bottomIds,omitempty"`
}

// IDs returns whichever list the client populated.
func (p *CardListPayload) IDs() []uuid.UUID {
	if len(p.CardIDs) > 0 {
		return p.CardIDs
	}
	return p.BottomIDs
}

type PeekLibraryPayload struct {
	Seat  int `json:"seat"`
	Count int `json:"count,omitempty"`
}

type AdjustLifePayload struct {
	Delta int    `json:"delta"`
	Note  string `json:"note,omitempty"`
}

type SetCounterPayload struct {
	Kind  string `json:"kind"`
	Delta int    `json:"delta"`
}

type DeclareWinnerPayload struct {
	Winner int `json:"winner"`
}

type LoadGamePayload struct {
	Code string `json:"code"`
}

// GameAction is the closed tagged union of every action the processor
// understands. Exactly one payload pointer is set for kinds that carry one;
// an unknown kind decodes to a bare GameAction and is applied as a no-op.
type GameAction struct {
	Kind ActionKind

	Move     *MoveCardPayload
	Draw     *DrawCardPayload
	Tap      *TapCardPayload
	Flip     *FlipCardPayload
	Card     *CardPayload
	Token    *CreateTokenPayload
	Counter  *AddCounterPayload
	Attach   *AttachCardPayload
	CardList *CardListPayload
	Peek     *PeekLibraryPayload
	Life     *AdjustLifePayload
	SetCtr   *SetCounterPayload
	Winner   *DeclareWinnerPayload
	Load     *LoadGamePayload
}

// IsMeta reports whether the kind is a meta action: meta actions never push
// a history snapshot.
func (a GameAction) IsMeta() bool {
	switch a.Kind {
	case ActionUndo, ActionRedo, ActionSaveGame, ActionLoadGame:
		return true
	}
	return false
}

// DecodeAction parses a GAME_ACTION payload into a GameAction. The kind tag
// selects the variant; field-level JSON errors are returned so the boundary
// can answer PARSE_ERROR. Unknown kinds are accepted and decode to a
// payload-less action so newer clients cannot crash the session.
func DecodeAction(raw json.RawMessage) (GameAction, error) {
	var tag struct {
		Kind ActionKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return GameAction{}, err
	}
	act := GameAction{Kind: tag.Kind}

	decode := func(v interface{}) error {
		return json.Unmarshal(raw, v)
	}

	var err error
	switch tag.Kind {
	case ActionMoveCard:
		act.Move = &MoveCardPayload{}
		err = decode(act.Move)
	case ActionDrawCard:
		act.Draw = &DrawCardPayload{}
		err = decode(act.Draw)
	case ActionTapCard:
		act.Tap = &TapCardPayload{}
		err = decode(act.Tap)
	case ActionFlipCard:
		act.Flip = &FlipCardPayload{}
		err = decode(act.Flip)
	case ActionTransformCard, ActionDetachCard, ActionBringToFront, ActionSendToBack, ActionRevealCard:
		act.Card = &CardPayload{}
		err = decode(act.Card)
	case ActionCreateToken:
		act.Token = &CreateTokenPayload{}
		err = decode(act.Token)
	case ActionAddCounter:
		act.Counter = &AddCounterPayload{}
		err = decode(act.Counter)
	case ActionAttachCard:
		act.Attach = &AttachCardPayload{}
		err = decode(act.Attach)
	case ActionPutOnTop, ActionPutOnBottom, ActionMulliganKeep:
		act.CardList = &CardListPayload{}
		err = decode(act.CardList)
	case ActionPeekLibrary:
		act.Peek = &PeekLibraryPayload{}
		err = decode(act.Peek)
	case ActionAdjustLife:
		act.Life = &AdjustLifePayload{}
		err = decode(act.Life)
	case ActionSetCounter:
		act.SetCtr = &SetCounterPayload{}
		err = decode(act.SetCtr)
	case ActionDeclareWinner:
		act.Winner = &DeclareWinnerPayload{}
		err = decode(act.Winner)
	case ActionLoadGame:
		act.Load = &LoadGamePayload{}
		err = decode(act.Load)
	}
	if err != nil {
		return GameAction{}, err
	}
	return act, nil
}
