// Package game implements the round lifecycle of a Hand Shadda game: staging
// provisional scores in a draft and planning the writes a round submission
// makes.
package game

import (
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/scoring"
)

// Draft holds the provisional scores of the round in progress. It is owned
// by the session handling one game and is never persisted.
type Draft struct {
	GameID      string
	RoundNumber int
	members     map[string]bool
	staged      map[string]int
}

// NewDraft creates an empty draft for the given round and game players
func NewDraft(gameID string, roundNumber int, players []domain.GamePlayer) *Draft {
	members := make(map[string]bool, len(players))
	for _, p := range players {
		members[p.ID] = true
	}
	return &Draft{
		GameID:      gameID,
		RoundNumber: roundNumber,
		members:     members,
		staged:      make(map[string]int, len(players)),
	}
}

// RecordProvisionalScore stages a score for one game player, replacing any
// value staged earlier in the round.
func (d *Draft) RecordProvisionalScore(gamePlayerID string, score int) error {
	if !d.members[gamePlayerID] {
		return domain.ErrUnknownPlayer
	}
	if !scoring.IsValidScore(score) {
		return domain.ErrInvalidScore
	}
	d.staged[gamePlayerID] = score
	return nil
}

// Staged returns the value staged for a game player
func (d *Draft) Staged(gamePlayerID string) (int, bool) {
	v, ok := d.staged[gamePlayerID]
	return v, ok
}

// Len returns the number of players with a staged score
func (d *Draft) Len() int {
	return len(d.staged)
}

// IsComplete reports whether every member has a staged score
func (d *Draft) IsComplete() bool {
	return len(d.members) > 0 && len(d.staged) == len(d.members)
}

// Clear drops every staged score and moves the draft to a new round
func (d *Draft) Clear(nextRound int) {
	d.staged = make(map[string]int, len(d.members))
	d.RoundNumber = nextRound
}
