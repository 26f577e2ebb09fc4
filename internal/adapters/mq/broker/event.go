// Package broker fans game events out to live subscribers.
package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeRoundOpened         = "round.opened"
	TypeRoundClosed         = "round.closed"
	TypeRoundScored         = "round.scored"
	TypePredictionSubmitted = "prediction.submitted"
	TypePredictionsReset    = "predictions.reset"
	TypeLeaderboardUpdated  = "leaderboard.updated"
	TypeTeamCreated         = "team.created"
)

// Event is one state change broadcast on the stream.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	RoundID string          `json:"round_id,omitempty"`
	Team    string          `json:"team_name,omitempty"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewEvent stamps an event with a fresh ID and encodes data as its payload.
func NewEvent(typ, roundID, team string, data any) (Event, error) {
	e := Event{
		ID:      uuid.NewString(),
		Type:    typ,
		RoundID: roundID,
		Team:    team,
		At:      time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		e.Data = raw
	}
	return e, nil
}
