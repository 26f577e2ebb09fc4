// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// maxTeamNameLength bounds provisioned team names.
const maxTeamNameLength = 64

// Team is a participant. Name doubles as the join key to predictions.
type Team struct {
	Name      string    `json:"team_name"`
	Score     int       `json:"score"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeTeamName trims surrounding whitespace and validates the result.
func NormalizeTeamName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", fmt.Errorf("team name must not be empty: %w", ErrInvalidTeamName)
	}
	if len(n) > maxTeamNameLength {
		return "", fmt.Errorf("team name longer than %d bytes: %w", maxTeamNameLength, ErrInvalidTeamName)
	}
	return n, nil
}
