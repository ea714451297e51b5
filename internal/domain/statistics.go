package domain

// PlayerStats is a player's record over completed games
type PlayerStats struct {
	PlayerID    string `json:"player_id"`
	PlayerName  string `json:"player_name"`
	TotalGames  int    `json:"total_games"`
	TotalFateet int    `json:"total_fateet"`
	TotalWins   int    `json:"total_wins"`
}

// DateCount is the number of completed games played on a date
type DateCount struct {
	Date       string `json:"date"`
	GamesCount int    `json:"games_count"`
}

// Statistics is the aggregate view over all completed games
type Statistics struct {
	TotalGames    int           `json:"total_games"`
	PerDateCounts []DateCount   `json:"per_date_counts"`
	PlayerStats   []PlayerStats `json:"player_stats"`
}

// RecentDays returns a copy limited to the n most recent dates.
// n <= 0 keeps every date.
func (s Statistics) RecentDays(n int) Statistics {
	if n <= 0 || len(s.PerDateCounts) <= n {
		return s
	}
	out := s
	out.PerDateCounts = append([]DateCount(nil), s.PerDateCounts[:n]...)
	return out
}
