package domain

import (
	"time"
)

// DefaultTotalRounds is the number of rounds in a standard game
const DefaultTotalRounds = 7

// DateLayout is the calendar-date format used for game dates
const DateLayout = "2006-01-02"

// GameStatus is the state of a game's round lifecycle
type GameStatus string

const (
	GameStatusAwaitingScores GameStatus = "awaiting_scores"
	GameStatusSubmitting     GameStatus = "submitting"
	GameStatusCompleted      GameStatus = "completed"
)

// Game represents a match among four players
type Game struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	TotalRounds  int       `json:"total_rounds"`
	IsCompleted  bool      `json:"is_completed"`
	CurrentRound int       `json:"current_round"`
	CreatedAt    time.Time `json:"created_at"`
}

// Status derives the lifecycle state from the persisted fields
func (g *Game) Status() GameStatus {
	if g.IsCompleted {
		return GameStatusCompleted
	}
	return GameStatusAwaitingScores
}

// Round is one scoring cycle of a game
type Round struct {
	ID          string    `json:"id"`
	GameID      string    `json:"game_id"`
	RoundNumber int       `json:"round_number"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Score is one player's value for one round
type Score struct {
	ID           string    `json:"id"`
	RoundID      string    `json:"round_id"`
	GamePlayerID string    `json:"game_player_id"`
	Value        int       `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoundCommit is every write a round submission makes. Stores must apply
// it as a single unit: either all of it is visible or none of it is.
type RoundCommit struct {
	Game      Game         `json:"game"`
	Round     Round        `json:"round"`
	Scores    []Score      `json:"scores"`
	Players   []GamePlayer `json:"players"`
	NextRound *Round       `json:"next_round,omitempty"`
}

// NewGame bundles the rows created when a game starts
type NewGame struct {
	Game       Game
	Players    []GamePlayer
	FirstRound Round
}

// StartGameRequest represents a request to start a game
type StartGameRequest struct {
	PlayerIDs []string `json:"player_ids"`
}

// StageScoreRequest represents a provisional score for one player
type StageScoreRequest struct {
	Score int `json:"score"`
}

// VoiceRequest carries a raw speech-to-text transcript
type VoiceRequest struct {
	Transcript string `json:"transcript"`
	Supported  *bool  `json:"supported,omitempty"`
}

// GameState is a game with its players, as shown while playing
type GameState struct {
	Game    Game             `json:"game"`
	Status  GameStatus       `json:"status"`
	Players []GamePlayerView `json:"players"`
	// FateetID is the game player currently holding the fateet flag, if any
	FateetID string `json:"fateet_id,omitempty"`
}

// RoundResult reports the outcome of a round submission
type RoundResult struct {
	GameID       string     `json:"game_id"`
	RoundNumber  int        `json:"round_number"`
	NextState    GameStatus `json:"next_state"`
	NextRound    int        `json:"next_round,omitempty"`
	FateetID     string     `json:"fateet_game_player_id,omitempty"`
	Announcement string     `json:"announcement,omitempty"`
	Totals       []Standing `json:"totals"`
}

// Standing is a player's total at some point in a game
type Standing struct {
	GamePlayerID string `json:"game_player_id"`
	PlayerID     string `json:"player_id,omitempty"`
	Name         string `json:"name,omitempty"`
	TotalScore   int    `json:"total_score"`
	IsFateet     bool   `json:"is_fateet,omitempty"`
}

// ParsedUtterance is a transcript resolved to a game player and a score
type ParsedUtterance struct {
	GamePlayerID string `json:"game_player_id"`
	PlayerName   string `json:"player_name"`
	Score        int    `json:"score"`
}

// VoiceResult is the outcome of applying a transcript
type VoiceResult struct {
	Understood bool             `json:"understood"`
	Parsed     *ParsedUtterance `json:"parsed,omitempty"`
	Warning    string           `json:"warning,omitempty"`
}

// SummaryEntry is one row of the game-over table
type SummaryEntry struct {
	Rank      int    `json:"rank"`
	RankLabel string `json:"rank_label"`
	Standing
	IsWinner bool `json:"is_winner"`
}

// GameSummary is the final ranking of a game
type GameSummary struct {
	GameID    string         `json:"game_id"`
	Completed bool           `json:"completed"`
	Entries   []SummaryEntry `json:"entries"`
}
