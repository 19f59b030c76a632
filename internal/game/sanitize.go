// internal/game/sanitize.go
package game

import (
	"github.com/google/uuid"

	"github.com/playmat/playmat/internal/models"
)

// Sanitize produces the redacted copy of state that the viewer at the given
// seat is allowed to see. The opponent's hand cards are replaced by stubs
// that keep their instance ids (so client-side animation keys stay stable)
// but lose all catalog identity, and the opponent's library is replaced by
// count-many opaque placeholders. Every other zone is fully visible to both
// viewers. The view is recomputed for each recipient on every broadcast and
// never cached across mutations.
func Sanitize(state *models.GameState, viewerSeat int) *models.GameState {
	view := state.Clone()
	for seat, p := range view.Players {
		if p == nil || seat == viewerSeat {
			continue
		}
		for i, c := range p.Hand {
			p.Hand[i] = &models.CardInstance{ID: c.ID, Hidden: true}
		}
		deck := make([]*models.CardInstance, len(p.Deck))
		for i := range deck {
			deck[i] = &models.CardInstance{ID: uuid.Nil, Hidden: true}
		}
		p.Deck = deck
	}
	return view
}
