package model

import "errors"

// Sentinel error kinds shared by the ledger, the scoring engine and the API.
var (
	ErrRoundClosed        = errors.New("round closed")
	ErrInvalidRange       = errors.New("value out of range")
	ErrInvalidTeamName    = errors.New("invalid team name")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamExists         = errors.New("team already exists")
	ErrScoringFailed      = errors.New("scoring failed")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrRoundAlreadyScored = errors.New("round already scored")
)
