package stats

import (
	"testing"

	"github.com/shadda-scores/internal/domain"
)

func roster() []domain.Player {
	return []domain.Player{
		{ID: "p1", Name: "محمد"},
		{ID: "p2", Name: "أحمد"},
		{ID: "p3", Name: "خالد"},
		{ID: "p4", Name: "سامي"},
		{ID: "p5", Name: "عمر"},
	}
}

func seat(game, player string, total int, fateet bool) domain.GamePlayer {
	return domain.GamePlayer{
		ID:         game + "-" + player,
		GameID:     game,
		PlayerID:   player,
		TotalScore: total,
		IsFateet:   fateet,
	}
}

func find(t *testing.T, s domain.Statistics, playerID string) domain.PlayerStats {
	t.Helper()
	for _, ps := range s.PlayerStats {
		if ps.PlayerID == playerID {
			return ps
		}
	}
	t.Fatalf("player %s missing from %+v", playerID, s.PlayerStats)
	return domain.PlayerStats{}
}

func TestAggregateCountsTiedWinners(t *testing.T) {
	games := []domain.Game{
		{ID: "g1", Date: "2026-10-01", IsCompleted: true},
		{ID: "g2", Date: "2026-10-02", IsCompleted: true},
	}
	gps := []domain.GamePlayer{
		seat("g1", "p1", -120, false),
		seat("g1", "p2", 300, true),
		seat("g1", "p3", 100, false),
		seat("g1", "p4", 40, false),

		seat("g2", "p1", -60, false),
		seat("g2", "p2", -60, false),
		seat("g2", "p3", 400, true),
		seat("g2", "p4", 200, false),
	}

	s := Aggregate(games, gps, roster())

	if s.TotalGames != 2 {
		t.Fatalf("total games = %d, want 2", s.TotalGames)
	}
	wins := 0
	for _, ps := range s.PlayerStats {
		wins += ps.TotalWins
	}
	if wins != 3 {
		t.Fatalf("total wins = %d, want 3", wins)
	}
	if p1 := find(t, s, "p1"); p1.TotalWins != 2 || p1.TotalGames != 2 {
		t.Fatalf("p1 = %+v", p1)
	}
	if p2 := find(t, s, "p2"); p2.TotalWins != 1 || p2.TotalFateet != 1 {
		t.Fatalf("p2 = %+v", p2)
	}
	if p3 := find(t, s, "p3"); p3.TotalWins != 0 || p3.TotalFateet != 1 {
		t.Fatalf("p3 = %+v", p3)
	}
	if s.PlayerStats[0].PlayerID != "p1" {
		t.Fatalf("player stats should be sorted by wins, got %+v", s.PlayerStats)
	}
}

func TestAggregateIgnoresOpenGamesAndEmptyPlayers(t *testing.T) {
	games := []domain.Game{
		{ID: "done", Date: "2026-10-03", IsCompleted: true},
		{ID: "open", Date: "2026-10-03", IsCompleted: false},
	}
	gps := []domain.GamePlayer{
		seat("done", "p1", 100, true),
		seat("done", "p2", -30, false),
		seat("done", "p3", -30, false),
		seat("done", "gone", -30, false),
		seat("open", "p5", -60, true),
	}

	s := Aggregate(games, gps, roster())

	if s.TotalGames != 1 {
		t.Fatalf("total games = %d, want 1", s.TotalGames)
	}
	for _, ps := range s.PlayerStats {
		if ps.PlayerID == "p5" || ps.PlayerID == "p4" {
			t.Fatalf("player without completed games listed: %+v", ps)
		}
	}
	if len(s.PlayerStats) != 3 {
		t.Fatalf("expected 3 players, got %+v", s.PlayerStats)
	}
	// equal wins keep roster order
	if s.PlayerStats[0].PlayerID != "p2" || s.PlayerStats[1].PlayerID != "p3" {
		t.Fatalf("unexpected order %+v", s.PlayerStats)
	}
}

func TestAggregatePerDateCounts(t *testing.T) {
	games := []domain.Game{
		{ID: "a", Date: "2026-09-30", IsCompleted: true},
		{ID: "b", Date: "2026-10-02", IsCompleted: true},
		{ID: "c", Date: "2026-10-02", IsCompleted: true},
		{ID: "d", Date: "2026-10-01", IsCompleted: true},
	}
	s := Aggregate(games, nil, roster())

	want := []domain.DateCount{
		{Date: "2026-10-02", GamesCount: 2},
		{Date: "2026-10-01", GamesCount: 1},
		{Date: "2026-09-30", GamesCount: 1},
	}
	if len(s.PerDateCounts) != len(want) {
		t.Fatalf("got %+v", s.PerDateCounts)
	}
	for i := range want {
		if s.PerDateCounts[i] != want[i] {
			t.Fatalf("per date[%d] = %+v, want %+v", i, s.PerDateCounts[i], want[i])
		}
	}

	recent := s.RecentDays(2)
	if len(recent.PerDateCounts) != 2 || recent.PerDateCounts[0].Date != "2026-10-02" {
		t.Fatalf("RecentDays(2) = %+v", recent.PerDateCounts)
	}
	if len(s.PerDateCounts) != 3 {
		t.Fatal("RecentDays must not modify the receiver")
	}
	if len(s.PlayerStats) != 0 {
		t.Fatalf("no player rows expected, got %+v", s.PlayerStats)
	}
}
