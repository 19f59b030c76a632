// internal/game/savecode.go
package game

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/playmat/playmat/internal/models"
)

// SaveCodePrefix version-tags exported games so unknown future formats are
// rejected cleanly instead of misparsed.
const SaveCodePrefix = "PM1_"

var errBadSaveCode = errors.New("malformed save code")

// savedGame is the resume-relevant subset of GameState. The password hash is
// deliberately absent: a save code must never leak or replace room access.
type savedGame struct {
	Phase      models.Phase           `json:"phase"`
	Players    [2]*models.Player      `json:"players"`
	Stack      []*models.CardInstance `json:"stack"`
	GameNumber int                    `json:"gameNumber"`
	Results    []models.GameResult    `json:"results,omitempty"`
	Turn       models.TurnInfo        `json:"turn"`
}

// EncodeSaveCode exports the state as an opaque resumable token.
func EncodeSaveCode(state *models.GameState) (string, error) {
	snap := state.Clone()
	payload := savedGame{
		Phase:      snap.Phase,
		Players:    snap.Players,
		Stack:      snap.Stack,
		GameNumber: snap.GameNumber,
		Results:    snap.Results,
		Turn:       snap.Turn,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return SaveCodePrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeSaveCode validates and parses a save code. It checks the version tag
// and the minimal shape (a phase and at least one seated player) before
// returning; callers only replace live state on success.
func DecodeSaveCode(code string) (*savedGame, error) {
	if !strings.HasPrefix(code, SaveCodePrefix) {
		return nil, errBadSaveCode
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(code, SaveCodePrefix))
	if err != nil {
		return nil, errBadSaveCode
	}
	var payload savedGame
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errBadSaveCode
	}
	if payload.Phase == "" {
		return nil, errBadSaveCode
	}
	if payload.Players[0] == nil && payload.Players[1] == nil {
		return nil, errBadSaveCode
	}
	return &payload, nil
}
