// Package memstore is an in-process implementation of the persistence
// collaborator, used when the service runs without a database and in tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/shadda-scores/internal/domain"
)

// Store keeps every entity in maps guarded by one lock, so each call,
// including CommitRound, is atomic.
type Store struct {
	mu          sync.RWMutex
	players     map[string]domain.Player
	games       map[string]domain.Game
	gamePlayers map[string][]domain.GamePlayer
	rounds      map[string][]domain.Round
	scores      map[string][]domain.Score
}

// New creates an empty store
func New() *Store {
	return &Store{
		players:     make(map[string]domain.Player),
		games:       make(map[string]domain.Game),
		gamePlayers: make(map[string][]domain.GamePlayer),
		rounds:      make(map[string][]domain.Round),
		scores:      make(map[string][]domain.Score),
	}
}

// CreatePlayer adds a player
func (s *Store) CreatePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	return nil
}

// GetPlayer returns a player by ID
func (s *Store) GetPlayer(_ context.Context, playerID string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

// ListPlayers returns the roster, newest first
func (s *Store) ListPlayers(_ context.Context) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeletePlayer removes a player from the roster
func (s *Store) DeletePlayer(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[playerID]; !ok {
		return domain.ErrPlayerNotFound
	}
	delete(s.players, playerID)
	return nil
}

// CreateGame stores a game with its players and first round
func (s *Store) CreateGame(_ context.Context, ng domain.NewGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[ng.Game.ID] = ng.Game
	s.gamePlayers[ng.Game.ID] = append([]domain.GamePlayer(nil), ng.Players...)
	s.rounds[ng.Game.ID] = []domain.Round{ng.FirstRound}
	return nil
}

// GetGame returns a game by ID
func (s *Store) GetGame(_ context.Context, gameID string) (*domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return &g, nil
}

// ListGames returns games newest first, optionally filtered by completion
func (s *Store) ListGames(_ context.Context, completed *bool) ([]domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Game, 0, len(s.games))
	for _, g := range s.games {
		if completed != nil && g.IsCompleted != *completed {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetGamePlayers returns the players of a game in seat order
func (s *Store) GetGamePlayers(_ context.Context, gameID string) ([]domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.GamePlayer(nil), s.gamePlayers[gameID]...), nil
}

// ListCompletedGamePlayers returns the players of every completed game
func (s *Store) ListCompletedGamePlayers(_ context.Context) ([]domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.GamePlayer
	for gameID, gps := range s.gamePlayers {
		if s.games[gameID].IsCompleted {
			out = append(out, gps...)
		}
	}
	return out, nil
}

// UpdateGamePlayers overwrites totals and fateet flags
func (s *Store) UpdateGamePlayers(_ context.Context, players []domain.GamePlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateGamePlayers(players)
	return nil
}

func (s *Store) updateGamePlayers(players []domain.GamePlayer) {
	for _, p := range players {
		rows := s.gamePlayers[p.GameID]
		for i := range rows {
			if rows[i].ID == p.ID {
				rows[i].TotalScore = p.TotalScore
				rows[i].IsFateet = p.IsFateet
			}
		}
	}
}

// GetRound returns a round by number
func (s *Store) GetRound(_ context.Context, gameID string, roundNumber int) (*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rounds[gameID] {
		if r.RoundNumber == roundNumber {
			return &r, nil
		}
	}
	return nil, domain.ErrRoundNotFound
}

// ListRounds returns the rounds of a game in order
func (s *Store) ListRounds(_ context.Context, gameID string) ([]domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Round(nil), s.rounds[gameID]...), nil
}

// ListGameScores returns every score of a game
func (s *Store) ListGameScores(_ context.Context, gameID string) ([]domain.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Score(nil), s.scores[gameID]...), nil
}

// CommitRound applies a round submission under the store lock
func (s *Store) CommitRound(_ context.Context, c domain.RoundCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gameID := c.Game.ID
	if _, ok := s.games[gameID]; !ok {
		return domain.ErrGameNotFound
	}
	rounds := s.rounds[gameID]
	idx := -1
	for i, r := range rounds {
		if r.ID == c.Round.ID {
			idx = i
		}
	}
	if idx < 0 {
		return domain.ErrRoundNotFound
	}
	if rounds[idx].IsCompleted {
		return domain.ErrRoundAlreadySubmitted
	}

	rounds[idx].IsCompleted = true
	s.scores[gameID] = append(s.scores[gameID], c.Scores...)
	s.updateGamePlayers(c.Players)
	s.games[gameID] = c.Game
	if c.NextRound != nil {
		s.rounds[gameID] = append(rounds, *c.NextRound)
	}
	return nil
}
