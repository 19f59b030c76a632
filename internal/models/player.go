// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Zone names a per-player ordered card container. The shared stack is not a
// player zone; it lives on GameState.
type Zone string

const (
	ZoneDeck           Zone = "deck"
	ZoneHand           Zone = "hand"
	ZoneBattlefield    Zone = "battlefield"
	ZoneGraveyard      Zone = "graveyard"
	ZoneExileActive    Zone = "exileActive"
	ZoneExilePermanent Zone = "exilePermanent"
	ZoneSideboard      Zone = "sideboard"

	// ZoneStack addresses the shared stack in move payloads.
	ZoneStack Zone = "stack"
)

// PlayerZones lists every per-player zone in a stable order.
var PlayerZones = []Zone{
	ZoneDeck, ZoneHand, ZoneBattlefield, ZoneGraveyard,
	ZoneExileActive, ZoneExilePermanent, ZoneSideboard,
}

// LifeEntry is one row of the append-only life ledger.
type LifeEntry struct {
	Delta int       `json:"delta"`
	Total int       `json:"total"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

// Player is one seated participant. The live connection is tracked by the
// room's seat table, not here; everything on this struct is game state.
type Player struct {
	ID   uuid.UUID `json:"playerId"`
	Name string    `json:"name"`

	// Synthetic marks the always-ready practice opponent in solo rooms.
	Synthetic bool `json:"synthetic,omitempty"`

	Deck           []*CardInstance `json:"deck"`
	Hand           []*CardInstance `json:"hand"`
	Battlefield    []*CardInstance `json:"battlefield"`
	Graveyard      []*CardInstance `json:"graveyard"`
	ExileActive    []*CardInstance `json:"exileActive"`
	ExilePermanent []*CardInstance `json:"exilePermanent"`
	Sideboard      []*CardInstance `json:"sideboard"`

	Life     []LifeEntry    `json:"life"`
	Counters map[string]int `json:"counters,omitempty"`

	Mulligans        int  `json:"mulligans"`
	HasKeptHand      bool `json:"hasKeptHand"`
	ReadyForNextGame bool `json:"readyForNextGame"`
}

// NewPlayer seats a human participant with empty zones.
func NewPlayer(name string) *Player {
	return &Player{
		ID:   uuid.New(),
		Name: name,
	}
}

// NewSyntheticOpponent builds the solo-mode practice dummy: empty zones,
// permanently ready so lifecycle gates never wait on it.
func NewSyntheticOpponent() *Player {
	return &Player{
		ID:               uuid.New(),
		Name:             "Practice Opponent",
		Synthetic:        true,
		HasKeptHand:      true,
		ReadyForNextGame: true,
	}
}

// ZoneCards returns a pointer to the slice backing the named zone, or nil for
// an unknown (or shared) zone name.
func (p *Player) ZoneCards(z Zone) *[]*CardInstance {
	switch z {
	case ZoneDeck:
		return &p.Deck
	case ZoneHand:
		return &p.Hand
	case ZoneBattlefield:
		return &p.Battlefield
	case ZoneGraveyard:
		return &p.Graveyard
	case ZoneExileActive:
		return &p.ExileActive
	case ZoneExilePermanent:
		return &p.ExilePermanent
	case ZoneSideboard:
		return &p.Sideboard
	}
	return nil
}

// LifeTotal reads the running total off the ledger tail.
func (p *Player) LifeTotal() int {
	if len(p.Life) == 0 {
		return 0
	}
	return p.Life[len(p.Life)-1].Total
}

// AdjustLife appends a signed delta to the ledger. The ledger is append-only;
// totals are never overwritten in place.
func (p *Player) AdjustLife(delta int, note string) {
	p.Life = append(p.Life, LifeEntry{
		Delta: delta,
		Total: p.LifeTotal() + delta,
		Note:  note,
		At:    time.Now(),
	})
}

// AdjustCounter applies a delta to a named player counter, clamped at zero.
func (p *Player) AdjustCounter(kind string, delta int) {
	if p.Counters == nil {
		p.Counters = make(map[string]int)
	}
	v := p.Counters[kind] + delta
	if v < 0 {
		v = 0
	}
	p.Counters[kind] = v
}

func cloneCards(cards []*CardInstance) []*CardInstance {
	if cards == nil {
		return nil
	}
	out := make([]*CardInstance, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of the player.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Deck = cloneCards(p.Deck)
	cp.Hand = cloneCards(p.Hand)
	cp.Battlefield = cloneCards(p.Battlefield)
	cp.Graveyard = cloneCards(p.Graveyard)
	cp.ExileActive = cloneCards(p.ExileActive)
	cp.ExilePermanent = cloneCards(p.ExilePermanent)
	cp.Sideboard = cloneCards(p.Sideboard)
	if p.Life != nil {
		cp.Life = make([]LifeEntry, len(p.Life))
		copy(cp.Life, p.Life)
	}
	if p.Counters != nil {
		cp.Counters = make(map[string]int, len(p.Counters))
		for k, v := range p.Counters {
			cp.Counters[k] = v
		}
	}
	return &cp
}
