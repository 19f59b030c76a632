// internal/models/card.go
package models

import (
	"github.com/google/uuid"
)

// Position is a normalized 2D battlefield placement (0..1 in both axes).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CardCounter is a named counter sitting on a single card instance
// (+1/+1, loyalty, charge, ...). Kinds are free-form client strings.
type CardCounter struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// CardInstance is one physical copy of a card on the table. The instance ID is
// distinct from the card's catalog identity, so duplicate copies of the same
// card remain individually addressable.
type CardInstance struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`

	Tapped      bool `json:"tapped,omitempty"`
	FaceDown    bool `json:"faceDown,omitempty"`
	Transformed bool `json:"transformed,omitempty"`
	Token       bool `json:"token,omitempty"`

	// Hidden marks a sanitized placeholder stub; the server never stores one.
	Hidden bool `json:"hidden,omitempty"`

	Counters []CardCounter `json:"counters,omitempty"`

	// AttachedTo points at the host card this one is attached to. The host
	// must currently be on some battlefield; removing the host clears this.
	AttachedTo *uuid.UUID `json:"attachedTo,omitempty"`

	Position *Position `json:"position,omitempty"`

	// ZIndex resolves front/back order of overlapping battlefield cards;
	// higher is closer to the viewer.
	ZIndex int `json:"zIndex,omitempty"`
}

// NewCardInstance mints a fresh instance for a resolved catalog record.
func NewCardInstance(name, imageURL string) *CardInstance {
	return &CardInstance{
		ID:       uuid.New(),
		Name:     name,
		ImageURL: imageURL,
	}
}

// Clone returns a deep copy of the instance.
func (c *CardInstance) Clone() *CardInstance {
	cp := *c
	if c.Counters != nil {
		cp.Counters = make([]CardCounter, len(c.Counters))
		copy(cp.Counters, c.Counters)
	}
	if c.AttachedTo != nil {
		id := *c.AttachedTo
		cp.AttachedTo = &id
	}
	if c.Position != nil {
		pos := *c.Position
		cp.Position = &pos
	}
	return &cp
}

// ResetTableState strips all per-game, on-table state from the instance,
// leaving only its catalog identity. Used for non-battlefield zone entry and
// between-games cleanup.
func (c *CardInstance) ResetTableState() {
	c.Tapped = false
	c.FaceDown = false
	c.Transformed = false
	c.Counters = nil
	c.AttachedTo = nil
	c.Position = nil
	c.ZIndex = 0
}
