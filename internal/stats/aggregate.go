// Package stats derives per-player records and per-day game counts from the
// history of completed games.
package stats

import (
	"sort"

	"github.com/shadda-scores/internal/domain"
)

// Aggregate computes statistics over completed games. Rows of games that are
// not completed (or not listed) are ignored, and so are rows whose player has
// been removed from the roster. Players are kept in roster order before
// being sorted by wins, so equal records list in roster order.
func Aggregate(games []domain.Game, gamePlayers []domain.GamePlayer, players []domain.Player) domain.Statistics {
	completed := make(map[string]bool, len(games))
	perDate := make(map[string]int)
	result := domain.Statistics{}
	for _, g := range games {
		if !g.IsCompleted || completed[g.ID] {
			continue
		}
		completed[g.ID] = true
		perDate[g.Date]++
		result.TotalGames++
	}

	byPlayer := make(map[string]*domain.PlayerStats, len(players))
	order := make([]*domain.PlayerStats, 0, len(players))
	for _, p := range players {
		ps := &domain.PlayerStats{PlayerID: p.ID, PlayerName: p.Name}
		byPlayer[p.ID] = ps
		order = append(order, ps)
	}

	byGame := make(map[string][]domain.GamePlayer)
	for _, gp := range gamePlayers {
		if !completed[gp.GameID] {
			continue
		}
		byGame[gp.GameID] = append(byGame[gp.GameID], gp)

		ps, ok := byPlayer[gp.PlayerID]
		if !ok {
			continue
		}
		ps.TotalGames++
		if gp.IsFateet {
			ps.TotalFateet++
		}
	}

	for _, rows := range byGame {
		for _, id := range winners(rows) {
			if ps, ok := byPlayer[id]; ok {
				ps.TotalWins++
			}
		}
	}

	for _, ps := range order {
		if ps.TotalGames > 0 {
			result.PlayerStats = append(result.PlayerStats, *ps)
		}
	}
	sort.SliceStable(result.PlayerStats, func(i, j int) bool {
		return result.PlayerStats[i].TotalWins > result.PlayerStats[j].TotalWins
	})

	result.PerDateCounts = make([]domain.DateCount, 0, len(perDate))
	for date, n := range perDate {
		result.PerDateCounts = append(result.PerDateCounts, domain.DateCount{Date: date, GamesCount: n})
	}
	// DateLayout sorts lexically in calendar order
	sort.Slice(result.PerDateCounts, func(i, j int) bool {
		return result.PerDateCounts[i].Date > result.PerDateCounts[j].Date
	})

	return result
}

// winners returns every player sharing the lowest total of one game
func winners(rows []domain.GamePlayer) []string {
	if len(rows) == 0 {
		return nil
	}
	lowest := rows[0].TotalScore
	for _, r := range rows[1:] {
		if r.TotalScore < lowest {
			lowest = r.TotalScore
		}
	}
	var ids []string
	for _, r := range rows {
		if r.TotalScore == lowest {
			ids = append(ids, r.PlayerID)
		}
	}
	return ids
}
