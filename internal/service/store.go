package service

import (
	"context"

	"github.com/shadda-scores/internal/domain"
)

// Store is the persistence collaborator. Implementations hold no game rules;
// CommitRound and CreateGame must each be applied atomically.
type Store interface {
	CreatePlayer(ctx context.Context, player domain.Player) error
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	DeletePlayer(ctx context.Context, playerID string) error

	CreateGame(ctx context.Context, game domain.NewGame) error
	GetGame(ctx context.Context, gameID string) (*domain.Game, error)
	ListGames(ctx context.Context, completed *bool) ([]domain.Game, error)
	// GetGamePlayers returns the four game players in seat order
	GetGamePlayers(ctx context.Context, gameID string) ([]domain.GamePlayer, error)
	ListCompletedGamePlayers(ctx context.Context) ([]domain.GamePlayer, error)
	UpdateGamePlayers(ctx context.Context, players []domain.GamePlayer) error

	GetRound(ctx context.Context, gameID string, roundNumber int) (*domain.Round, error)
	ListRounds(ctx context.Context, gameID string) ([]domain.Round, error)
	// ListGameScores returns every score of every round of a game
	ListGameScores(ctx context.Context, gameID string) ([]domain.Score, error)

	CommitRound(ctx context.Context, commit domain.RoundCommit) error
}

// Announcer speaks a line to the players of a game. Delivery is best
// effort and never reported back.
type Announcer interface {
	Announce(gameID, text string)
}

// EventPublisher receives game events after they are committed
type EventPublisher interface {
	Publish(ctx context.Context, event domain.GameEvent) error
}

// StandingsCache keeps the live totals of running games
type StandingsCache interface {
	SetStandings(ctx context.Context, gameID string, standings []domain.Standing) error
	GetStandings(ctx context.Context, gameID string) ([]domain.Standing, error)
	DeleteStandings(ctx context.Context, gameID string) error
}

// StatisticsCache keeps the last computed statistics snapshot
type StatisticsCache interface {
	SetStatistics(ctx context.Context, stats domain.Statistics) error
	GetStatistics(ctx context.Context) (*domain.Statistics, error)
	InvalidateStatistics(ctx context.Context) error
}
