package domain

import "time"

// GameEventType identifies what happened to a game
type GameEventType string

const (
	EventRoundSubmitted     GameEventType = "round_submitted"
	EventFateetAnnouncement GameEventType = "fateet_announcement"
	EventGameCompleted      GameEventType = "game_completed"
	EventGameRepaired       GameEventType = "game_repaired"
)

// GameEvent is published after a round submission or a repair has been
// committed
type GameEvent struct {
	Type        GameEventType `json:"type"`
	GameID      string        `json:"game_id"`
	RoundNumber int           `json:"round_number"`
	Completed   bool          `json:"completed,omitempty"`
	FateetID    string        `json:"fateet_game_player_id,omitempty"`
	Text        string        `json:"text,omitempty"`
	Totals      []Standing    `json:"totals,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// CommandType identifies a game command arriving from a message queue
type CommandType string

const (
	CommandUtterance CommandType = "utterance"
	CommandStage     CommandType = "stage"
	CommandSubmit    CommandType = "submit"
)

// GameCommand is a command for one game, as carried on the commands topic
type GameCommand struct {
	GameID       string      `json:"game_id"`
	Type         CommandType `json:"type"`
	Transcript   string      `json:"transcript,omitempty"`
	GamePlayerID string      `json:"game_player_id,omitempty"`
	Score        int         `json:"score,omitempty"`
}
