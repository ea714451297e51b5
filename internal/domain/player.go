package domain

import "time"

// PlayersPerGame is the fixed table size of Hand Shadda
const PlayersPerGame = 4

// Player represents a player in the roster
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePlayerRequest represents a request to add a player to the roster
type CreatePlayerRequest struct {
	Name string `json:"name"`
}

// GamePlayer is one player's participation in a game
type GamePlayer struct {
	ID         string `json:"id"`
	GameID     string `json:"game_id"`
	PlayerID   string `json:"player_id"`
	Seat       int    `json:"seat"`
	TotalScore int    `json:"total_score"`
	IsFateet   bool   `json:"is_fateet"`
}

// GamePlayerView is a GamePlayer joined with its roster name and score history
type GamePlayerView struct {
	GamePlayer
	Name   string `json:"name"`
	Scores []int  `json:"scores"`
	Staged *int   `json:"staged,omitempty"`
}
