package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/game"
	"github.com/shadda-scores/internal/scoring"
)

// GameService runs games: roster, round lifecycle and voice input
type GameService struct {
	store      Store
	announcer  Announcer
	publishers []EventPublisher
	standings  StandingsCache
	config     *config.GameConfig
	logger     *slog.Logger

	newID func() string
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// session serializes the mutating calls of one running game and owns its
// draft. publish orders the side effects of successive commits without
// holding up staging.
type session struct {
	mu      sync.Mutex
	publish sync.Mutex
	draft   *game.Draft
}

// NewGameService creates a new game service
func NewGameService(store Store, cfg *config.GameConfig, logger *slog.Logger) *GameService {
	return &GameService{
		store:    store,
		config:   cfg,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// SetAnnouncer sets the text-to-speech collaborator
func (s *GameService) SetAnnouncer(a Announcer) {
	s.announcer = a
}

// AddPublisher registers a receiver of game events
func (s *GameService) AddPublisher(p EventPublisher) {
	s.publishers = append(s.publishers, p)
}

// SetStandingsCache sets the live standings cache
func (s *GameService) SetStandingsCache(c StandingsCache) {
	s.standings = c
}

// CreatePlayer adds a player to the roster
func (s *GameService) CreatePlayer(ctx context.Context, req domain.CreatePlayerRequest) (*domain.Player, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidRequest
	}

	player := domain.Player{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	return &player, nil
}

// ListPlayers returns the roster
func (s *GameService) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	return s.store.ListPlayers(ctx)
}

// DeletePlayer removes a player from the roster. Games the player took
// part in are left untouched.
func (s *GameService) DeletePlayer(ctx context.Context, playerID string) error {
	return s.store.DeletePlayer(ctx, playerID)
}

// StartGame creates a game for four distinct roster players, seated in the
// given order, with its first round.
func (s *GameService) StartGame(ctx context.Context, playerIDs []string) (*domain.GameState, error) {
	if len(playerIDs) != domain.PlayersPerGame {
		return nil, domain.ErrInvalidRoster
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return nil, domain.ErrInvalidRoster
		}
		seen[id] = true
		if _, err := s.store.GetPlayer(ctx, id); err != nil {
			return nil, err
		}
	}

	now := s.now()
	g := domain.Game{
		ID:           s.newID(),
		Date:         now.Format(domain.DateLayout),
		TotalRounds:  s.config.TotalRounds,
		CurrentRound: 1,
		CreatedAt:    now,
	}
	if g.TotalRounds <= 0 {
		g.TotalRounds = domain.DefaultTotalRounds
	}

	players := make([]domain.GamePlayer, len(playerIDs))
	for i, id := range playerIDs {
		players[i] = domain.GamePlayer{
			ID:       s.newID(),
			GameID:   g.ID,
			PlayerID: id,
			Seat:     i,
		}
	}

	first := domain.Round{
		ID:          s.newID(),
		GameID:      g.ID,
		RoundNumber: 1,
		CreatedAt:   now,
	}

	if err := s.store.CreateGame(ctx, domain.NewGame{Game: g, Players: players, FirstRound: first}); err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	s.mu.Lock()
	s.sessions[g.ID] = &session{draft: game.NewDraft(g.ID, 1, players)}
	s.mu.Unlock()

	s.logger.Info("game started", "game_id", g.ID, "total_rounds", g.TotalRounds)
	return s.GetGame(ctx, g.ID)
}

// session returns the session of a running game, creating it with an
// empty draft for the current round when the game has none yet. Completed
// games get a detached session that is never kept.
func (s *GameService) session(ctx context.Context, gameID string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[gameID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game players: %w", err)
	}
	fresh := &session{draft: game.NewDraft(gameID, g.CurrentRound, players)}
	if g.IsCompleted {
		return fresh, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[gameID]; ok {
		return sess, nil
	}
	s.sessions[gameID] = fresh
	return fresh, nil
}

// dropSession forgets the session of a game if it is still the current one
func (s *GameService) dropSession(gameID string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[gameID] == sess {
		delete(s.sessions, gameID)
	}
}

// stagedValues copies the staged scores of a game without creating a session
func (s *GameService) stagedValues(gameID string, players []domain.GamePlayer) map[string]int {
	s.mu.Lock()
	sess, ok := s.sessions[gameID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make(map[string]int)
	for _, p := range players {
		if v, ok := sess.draft.Staged(p.ID); ok {
			out[p.ID] = v
		}
	}
	return out
}

// StageScore records a provisional score for a game player in the current round
func (s *GameService) StageScore(ctx context.Context, gameID, gamePlayerID string, score int) error {
	sess, err := s.session(ctx, gameID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.IsCompleted {
		return domain.ErrGameAlreadyCompleted
	}
	if sess.draft.RoundNumber != g.CurrentRound {
		sess.draft.Clear(g.CurrentRound)
	}
	if err := sess.draft.RecordProvisionalScore(gamePlayerID, score); err != nil {
		return err
	}
	s.logger.Debug("score staged",
		"game_id", gameID,
		"game_player_id", gamePlayerID,
		"score", score,
		"staged", sess.draft.Len(),
	)
	return nil
}

// SubmitRound commits the staged round of a game and advances or completes it
func (s *GameService) SubmitRound(ctx context.Context, gameID string) (*domain.RoundResult, error) {
	sess, err := s.session(ctx, gameID)
	if err != nil {
		return nil, err
	}

	result, err := s.commitRound(ctx, gameID, sess)
	if err != nil {
		return nil, err
	}
	defer sess.publish.Unlock()

	s.afterCommit(ctx, result)
	return result, nil
}

// commitRound plans and persists a submission under the session lock. On
// success it returns with sess.publish held so side effects keep commit
// order once staging resumes.
func (s *GameService) commitRound(ctx context.Context, gameID string, sess *session) (*domain.RoundResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.IsCompleted {
		return nil, domain.ErrGameAlreadyCompleted
	}
	if !sess.draft.IsComplete() {
		return nil, domain.ErrIncompleteRound
	}

	round, err := s.store.GetRound(ctx, gameID, g.CurrentRound)
	if err != nil {
		return nil, fmt.Errorf("loading round %d: %w", g.CurrentRound, err)
	}
	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game players: %w", err)
	}

	plan, err := game.PlanRound(*g, *round, players, sess.draft, s.newID, s.now())
	if err == nil {
		err = s.store.CommitRound(ctx, plan.Commit)
	}
	if err != nil {
		if errors.Is(err, domain.ErrRoundAlreadySubmitted) {
			// another writer got there first; start the next round clean
			s.dropSession(gameID, sess)
			return nil, err
		}
		if domain.IsClientError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("committing round %d: %w", round.RoundNumber, err)
	}

	if plan.Status == domain.GameStatusCompleted {
		s.dropSession(gameID, sess)
	} else {
		sess.draft.Clear(plan.Commit.Game.CurrentRound)
	}

	names := s.playerNames(ctx, players)
	result := &domain.RoundResult{
		GameID:      gameID,
		RoundNumber: round.RoundNumber,
		NextState:   plan.Status,
		Totals:      withNames(game.Standings(plan.Commit.Players), names),
	}
	if plan.Commit.NextRound != nil {
		result.NextRound = plan.Commit.NextRound.RoundNumber
	}
	if plan.Fateet != nil {
		result.FateetID = plan.Fateet.ID
	}
	if plan.Announce {
		result.Announcement = scoring.FateetAnnouncement(names[plan.Fateet.PlayerID])
	}

	s.logger.Info("round submitted",
		"game_id", gameID,
		"round", round.RoundNumber,
		"next_state", plan.Status,
		"fateet", result.FateetID,
	)

	sess.publish.Lock()
	return result, nil
}

// afterCommit runs the side effects of a committed round. None of them can
// fail the submission.
func (s *GameService) afterCommit(ctx context.Context, result *domain.RoundResult) {
	if s.standings != nil {
		var err error
		if result.NextState == domain.GameStatusCompleted {
			err = s.standings.DeleteStandings(ctx, result.GameID)
		} else {
			err = s.standings.SetStandings(ctx, result.GameID, result.Totals)
		}
		if err != nil {
			s.logger.Warn("failed to update standings cache", "game_id", result.GameID, "error", err)
		}
	}

	if result.Announcement != "" && s.announcer != nil {
		s.announcer.Announce(result.GameID, result.Announcement)
	}

	now := s.now()
	events := []domain.GameEvent{{
		Type:        domain.EventRoundSubmitted,
		GameID:      result.GameID,
		RoundNumber: result.RoundNumber,
		FateetID:    result.FateetID,
		Totals:      result.Totals,
		Timestamp:   now,
	}}
	if result.Announcement != "" {
		events = append(events, domain.GameEvent{
			Type:        domain.EventFateetAnnouncement,
			GameID:      result.GameID,
			RoundNumber: result.RoundNumber,
			FateetID:    result.FateetID,
			Text:        result.Announcement,
			Timestamp:   now,
		})
	}
	if result.NextState == domain.GameStatusCompleted {
		events = append(events, domain.GameEvent{
			Type:        domain.EventGameCompleted,
			GameID:      result.GameID,
			RoundNumber: result.RoundNumber,
			FateetID:    result.FateetID,
			Totals:      result.Totals,
			Timestamp:   now,
		})
	}

	s.publish(ctx, events...)
}

// publish hands events to every publisher. Failures are logged only.
func (s *GameService) publish(ctx context.Context, events ...domain.GameEvent) {
	for _, p := range s.publishers {
		for _, ev := range events {
			if err := p.Publish(ctx, ev); err != nil {
				s.logger.Warn("failed to publish game event",
					"game_id", ev.GameID,
					"type", ev.Type,
					"error", err,
				)
			}
		}
	}
}

// ParseUtterance resolves a transcript against the players of a game. It
// returns nil when the transcript is not understood.
func (s *GameService) ParseUtterance(ctx context.Context, gameID, text string) (*domain.ParsedUtterance, error) {
	if !s.config.Voice() {
		return nil, domain.ErrSpeechUnsupported
	}

	cmd, ok := scoring.Parse(text)
	if !ok {
		return nil, nil
	}

	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, domain.ErrGameNotFound
	}
	names := s.playerNames(ctx, players)

	seated := make([]string, len(players))
	for i, p := range players {
		seated[i] = names[p.PlayerID]
	}
	idx := scoring.ResolvePlayer(cmd.PlayerNameFragment, seated)
	if idx < 0 {
		s.logger.Debug("utterance did not match a player", "game_id", gameID, "fragment", cmd.PlayerNameFragment)
		return nil, nil
	}

	return &domain.ParsedUtterance{
		GamePlayerID: players[idx].ID,
		PlayerName:   seated[idx],
		Score:        cmd.Score,
	}, nil
}

// ApplyUtterance parses a transcript and stages the score it names
func (s *GameService) ApplyUtterance(ctx context.Context, gameID, text string) (*domain.VoiceResult, error) {
	parsed, err := s.ParseUtterance(ctx, gameID, text)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return &domain.VoiceResult{Understood: false}, nil
	}
	if err := s.StageScore(ctx, gameID, parsed.GamePlayerID, parsed.Score); err != nil {
		return nil, err
	}
	return &domain.VoiceResult{Understood: true, Parsed: parsed}, nil
}

// HandleCommand applies a command received from the message queue
func (s *GameService) HandleCommand(ctx context.Context, cmd domain.GameCommand) error {
	switch cmd.Type {
	case domain.CommandUtterance:
		res, err := s.ApplyUtterance(ctx, cmd.GameID, cmd.Transcript)
		if err != nil {
			return err
		}
		if !res.Understood {
			s.logger.Info("utterance not understood", "game_id", cmd.GameID)
		}
		return nil
	case domain.CommandStage:
		return s.StageScore(ctx, cmd.GameID, cmd.GamePlayerID, cmd.Score)
	case domain.CommandSubmit:
		_, err := s.SubmitRound(ctx, cmd.GameID)
		return err
	default:
		return domain.ErrInvalidRequest
	}
}

// GetGame returns a game with its players, score history and staged draft
func (s *GameService) GetGame(ctx context.Context, gameID string) (*domain.GameState, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game players: %w", err)
	}
	rounds, err := s.store.ListRounds(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading rounds: %w", err)
	}
	scores, err := s.store.ListGameScores(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading scores: %w", err)
	}

	roundNumber := make(map[string]int, len(rounds))
	for _, r := range rounds {
		roundNumber[r.ID] = r.RoundNumber
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return roundNumber[scores[i].RoundID] < roundNumber[scores[j].RoundID]
	})

	names := s.playerNames(ctx, players)
	staged := s.stagedValues(gameID, players)

	state := &domain.GameState{
		Game:    *g,
		Status:  g.Status(),
		Players: make([]domain.GamePlayerView, len(players)),
	}
	for i, p := range players {
		view := domain.GamePlayerView{
			GamePlayer: p,
			Name:       names[p.PlayerID],
			Scores:     []int{},
		}
		for _, sc := range scores {
			if sc.GamePlayerID == p.ID {
				view.Scores = append(view.Scores, sc.Value)
			}
		}
		if v, ok := staged[p.ID]; ok {
			view.Staged = &v
		}
		state.Players[i] = view
	}
	if f, ok := game.FateetOf(players); ok {
		state.FateetID = f.ID
	}
	return state, nil
}

// ListGames returns games, optionally filtered by completion
func (s *GameService) ListGames(ctx context.Context, completed *bool) ([]domain.Game, error) {
	return s.store.ListGames(ctx, completed)
}

// Standings returns the live totals of a game, from cache when possible
func (s *GameService) Standings(ctx context.Context, gameID string) ([]domain.Standing, error) {
	if s.standings != nil {
		cached, err := s.standings.GetStandings(ctx, gameID)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
		if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("failed to read standings cache", "game_id", gameID, "error", err)
		}
	}

	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, domain.ErrGameNotFound
	}
	return withNames(game.Standings(players), s.playerNames(ctx, players)), nil
}

// Summary ranks the players of a game from winner to fateet
func (s *GameService) Summary(ctx context.Context, gameID string) (*domain.GameSummary, error) {
	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game players: %w", err)
	}

	standings := withNames(game.Standings(players), s.playerNames(ctx, players))
	winner, hasWinner := scoring.DetermineWinner(standings)

	summary := &domain.GameSummary{GameID: g.ID, Completed: g.IsCompleted}
	for i, st := range scoring.Rank(standings) {
		summary.Entries = append(summary.Entries, domain.SummaryEntry{
			Rank:      i + 1,
			RankLabel: scoring.RankLabel(i + 1),
			Standing:  st,
			IsWinner:  hasWinner && st.GamePlayerID == winner.GamePlayerID,
		})
	}
	return summary, nil
}

// Reconcile rebuilds a game's totals and fateet flags from its persisted
// scores and writes them back when they disagree. It reports whether
// anything was repaired.
func (s *GameService) Reconcile(ctx context.Context, gameID string) (bool, error) {
	sess, err := s.session(ctx, gameID)
	if err != nil {
		return false, err
	}

	event, err := s.repair(ctx, gameID, sess)
	if err != nil || event == nil {
		return false, err
	}
	defer sess.publish.Unlock()

	if s.standings != nil && !event.Completed {
		if err := s.standings.SetStandings(ctx, gameID, event.Totals); err != nil {
			s.logger.Warn("failed to update standings cache", "game_id", gameID, "error", err)
		}
	}
	s.publish(ctx, *event)
	return true, nil
}

// repair writes rederived rows under the session lock and returns the
// repair event, or nil when the stored rows were already right. Like
// commitRound it returns with sess.publish held after a write.
func (s *GameService) repair(ctx context.Context, gameID string, sess *session) (*domain.GameEvent, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetGamePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading game players: %w", err)
	}
	rounds, err := s.store.ListRounds(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading rounds: %w", err)
	}
	scores, err := s.store.ListGameScores(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("loading scores: %w", err)
	}

	rederived := game.Rederive(*g, players, rounds, scores)
	changed := false
	for i := range players {
		if players[i] != rederived[i] {
			changed = true
			break
		}
	}
	if !changed {
		return nil, nil
	}

	if err := s.store.UpdateGamePlayers(ctx, rederived); err != nil {
		return nil, fmt.Errorf("repairing game players: %w", err)
	}
	s.logger.Warn("repaired game totals from scores", "game_id", gameID, "completed", g.IsCompleted)

	event := &domain.GameEvent{
		Type:        domain.EventGameRepaired,
		GameID:      gameID,
		RoundNumber: g.CurrentRound,
		Completed:   g.IsCompleted,
		Totals:      withNames(game.Standings(rederived), s.playerNames(ctx, rederived)),
		Timestamp:   s.now(),
	}
	if f, ok := game.FateetOf(rederived); ok {
		event.FateetID = f.ID
	}

	sess.publish.Lock()
	return event, nil
}

// playerNames maps player ids to roster names. A player missing from the
// roster keeps an empty name.
func (s *GameService) playerNames(ctx context.Context, players []domain.GamePlayer) map[string]string {
	names := make(map[string]string, len(players))
	for _, p := range players {
		player, err := s.store.GetPlayer(ctx, p.PlayerID)
		if err != nil {
			if !errors.Is(err, domain.ErrPlayerNotFound) {
				s.logger.Warn("failed to load player", "player_id", p.PlayerID, "error", err)
			}
			continue
		}
		names[p.PlayerID] = player.Name
	}
	return names
}

func withNames(standings []domain.Standing, names map[string]string) []domain.Standing {
	for i := range standings {
		standings[i].Name = names[standings[i].PlayerID]
	}
	return standings
}
