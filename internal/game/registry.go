// internal/game/registry.go
package game

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playmat/playmat/internal/auth"
	"github.com/playmat/playmat/internal/historian"
	"github.com/playmat/playmat/internal/models"
)

// Room codes avoid visually confusable characters (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
const codeLength = 6

// DefaultGracePeriod is how long a room with zero live connections survives
// before it is reaped.
const DefaultGracePeriod = 5 * time.Minute

// Registry maps short shareable codes to live rooms and owns their creation
// and expiry. Construct exactly one per server process; distinct rooms are
// fully independent and only code allocation goes through the registry lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	grace time.Duration
	log   *logrus.Logger
	hist  *historian.Historian
	rng   *rand.Rand
}

// NewRegistry builds an empty registry. A zero grace duration selects
// DefaultGracePeriod.
func NewRegistry(grace time.Duration, log *logrus.Logger, hist *historian.Historian) *Registry {
	if grace == 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{
		rooms: make(map[string]*Room),
		grace: grace,
		log:   log,
		hist:  hist,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom allocates a fresh lobby-phase room, seats the creator in slot 0
// and returns both. In solo mode slot 1 is filled with a synthetic
// always-ready opponent.
func (r *Registry) CreateRoom(creatorName, password string, solo bool) (*Room, *models.Player, error) {
	hash, err := auth.HashRoomPassword(password)
	if err != nil {
		return nil, nil, err
	}

	creator := models.NewPlayer(creatorName)

	r.mu.Lock()
	code := r.generateCodeLocked()
	room := newRoom(code, hash, solo, r.grace, r.log, r.hist)
	room.onEmpty = r.removeRoom
	room.State.Players[0] = creator
	if solo {
		room.State.Players[1] = models.NewSyntheticOpponent()
	}
	r.rooms[code] = room
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"room": code, "solo": solo}).Info("Room created")
	return room, creator, nil
}

// FindRoom resolves a code to a live room. Lookup is case-insensitive.
// Absence is reported, not raised: callers must distinguish "not found" from
// "found but access denied".
func (r *Registry) FindRoom(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[strings.ToUpper(code)]
	return room, ok
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// removeRoom drops an expired room. Installed as each room's onEmpty hook.
func (r *Registry) removeRoom(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
	r.log.WithField("room", code).Info("Room reaped after grace period")
}

// generateCodeLocked draws codes until one misses the live set. Assumes the
// registry lock is held.
func (r *Registry) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[r.rng.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
}
