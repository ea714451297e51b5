package scoring

import (
	"sort"

	"github.com/shadda-scores/internal/domain"
)

// DetermineFateet returns the player with the highest total. Among equal
// totals the one listed first wins. An empty list has no fateet.
func DetermineFateet(players []domain.Standing) (domain.Standing, bool) {
	if len(players) == 0 {
		return domain.Standing{}, false
	}
	sorted := sortedCopy(players, func(a, b domain.Standing) bool {
		return a.TotalScore > b.TotalScore
	})
	return sorted[0], true
}

// DetermineWinner returns the player with the lowest total, first of ties
func DetermineWinner(players []domain.Standing) (domain.Standing, bool) {
	if len(players) == 0 {
		return domain.Standing{}, false
	}
	sorted := sortedCopy(players, func(a, b domain.Standing) bool {
		return a.TotalScore < b.TotalScore
	})
	return sorted[0], true
}

// Rank orders players from best (lowest total) to worst, keeping list
// order among equal totals.
func Rank(players []domain.Standing) []domain.Standing {
	return sortedCopy(players, func(a, b domain.Standing) bool {
		return a.TotalScore < b.TotalScore
	})
}

func sortedCopy(players []domain.Standing, less func(a, b domain.Standing) bool) []domain.Standing {
	out := make([]domain.Standing, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}
