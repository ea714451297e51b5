package game

import (
	"time"

	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/scoring"
)

// FateetFromRound is the first submitted round after which the running
// fateet is recomputed and announced. Game completion always recomputes.
const FateetFromRound = 2

// Plan is the outcome of a round submission before it is persisted
type Plan struct {
	Commit domain.RoundCommit
	Status domain.GameStatus
	// Fateet is set when the fateet flags were recomputed by this round
	Fateet *domain.GamePlayer
	// Announce is true when the running fateet must be announced
	Announce bool
}

// PlanRound computes every write of a round submission from the current game
// state and a complete draft. Nothing is modified; the caller persists
// plan.Commit as one unit and clears the draft afterwards.
func PlanRound(
	g domain.Game,
	round domain.Round,
	players []domain.GamePlayer,
	draft *Draft,
	newID func() string,
	now time.Time,
) (*Plan, error) {
	if g.IsCompleted {
		return nil, domain.ErrGameAlreadyCompleted
	}
	if round.IsCompleted || round.RoundNumber != g.CurrentRound {
		return nil, domain.ErrRoundAlreadySubmitted
	}
	if draft == nil || draft.GameID != g.ID || !draft.IsComplete() {
		return nil, domain.ErrIncompleteRound
	}
	// values staged for an earlier round never move into a later one
	if draft.RoundNumber != g.CurrentRound {
		return nil, domain.ErrRoundAlreadySubmitted
	}

	scores := make([]domain.Score, 0, len(players))
	updated := make([]domain.GamePlayer, len(players))
	for i, p := range players {
		v, ok := draft.Staged(p.ID)
		if !ok {
			return nil, domain.ErrIncompleteRound
		}
		scores = append(scores, domain.Score{
			ID:           newID(),
			RoundID:      round.ID,
			GamePlayerID: p.ID,
			Value:        v,
			CreatedAt:    now,
		})
		p.TotalScore += v
		updated[i] = p
	}

	round.IsCompleted = true
	plan := &Plan{
		Commit: domain.RoundCommit{
			Game:    g,
			Round:   round,
			Scores:  scores,
			Players: updated,
		},
	}

	next := g.CurrentRound + 1
	if next > g.TotalRounds {
		plan.Commit.Game.IsCompleted = true
		plan.Fateet = markFateet(plan.Commit.Players)
		plan.Status = domain.GameStatusCompleted
		return plan, nil
	}

	plan.Commit.NextRound = &domain.Round{
		ID:          newID(),
		GameID:      g.ID,
		RoundNumber: next,
		CreatedAt:   now,
	}
	plan.Commit.Game.CurrentRound = next
	if round.RoundNumber >= FateetFromRound {
		plan.Fateet = markFateet(plan.Commit.Players)
		plan.Announce = plan.Fateet != nil
	}
	plan.Status = domain.GameStatusAwaitingScores
	return plan, nil
}

// Rederive rebuilds totals and fateet flags from persisted scores. Only
// scores of completed rounds count.
func Rederive(g domain.Game, players []domain.GamePlayer, rounds []domain.Round, scores []domain.Score) []domain.GamePlayer {
	completed := make(map[string]bool, len(rounds))
	completedCount := 0
	for _, r := range rounds {
		if r.GameID == g.ID && r.IsCompleted {
			completed[r.ID] = true
			completedCount++
		}
	}

	totals := make(map[string]int, len(players))
	for _, s := range scores {
		if completed[s.RoundID] {
			totals[s.GamePlayerID] += s.Value
		}
	}

	out := make([]domain.GamePlayer, len(players))
	for i, p := range players {
		p.TotalScore = totals[p.ID]
		p.IsFateet = false
		out[i] = p
	}

	if g.IsCompleted || completedCount >= FateetFromRound {
		markFateet(out)
	}
	return out
}

// FateetOf returns the game player currently flagged as fateet
func FateetOf(players []domain.GamePlayer) (domain.GamePlayer, bool) {
	for _, p := range players {
		if p.IsFateet {
			return p, true
		}
	}
	return domain.GamePlayer{}, false
}

// Standings converts game players to resolver input, keeping seat order
func Standings(players []domain.GamePlayer) []domain.Standing {
	out := make([]domain.Standing, len(players))
	for i, p := range players {
		out[i] = domain.Standing{
			GamePlayerID: p.ID,
			PlayerID:     p.PlayerID,
			TotalScore:   p.TotalScore,
			IsFateet:     p.IsFateet,
		}
	}
	return out
}

// markFateet resets every flag and sets the one the resolver picks
func markFateet(players []domain.GamePlayer) *domain.GamePlayer {
	for i := range players {
		players[i].IsFateet = false
	}
	f, ok := scoring.DetermineFateet(Standings(players))
	if !ok {
		return nil
	}
	for i := range players {
		if players[i].ID == f.GamePlayerID {
			players[i].IsFateet = true
			p := players[i]
			return &p
		}
	}
	return nil
}
