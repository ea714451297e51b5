package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/game"
	"github.com/shadda-scores/internal/memstore"
	"github.com/shadda-scores/internal/scoring"
)

type recordingAnnouncer struct {
	mu    sync.Mutex
	lines []string
}

func (a *recordingAnnouncer) Announce(_, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, text)
}

type recordingPublisher struct {
	events []domain.GameEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.GameEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type memoryStatsCache struct {
	mu   sync.Mutex
	snap *domain.Statistics
}

func (c *memoryStatsCache) SetStatistics(_ context.Context, stats domain.Statistics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &stats
	return nil
}

func (c *memoryStatsCache) GetStatistics(context.Context) (*domain.Statistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return nil, domain.ErrCacheMiss
	}
	out := *c.snap
	return &out, nil
}

func (c *memoryStatsCache) InvalidateStatistics(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	return nil
}

// blockingPublisher holds the first event until released
type blockingPublisher struct {
	entered     chan struct{}
	release     chan struct{}
	once        sync.Once
	releaseOnce sync.Once
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *blockingPublisher) Publish(context.Context, domain.GameEvent) error {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return nil
}

func (p *blockingPublisher) open() {
	p.releaseOnce.Do(func() { close(p.release) })
}

type harness struct {
	svc       *GameService
	store     *memstore.Store
	announcer *recordingAnnouncer
	publisher *recordingPublisher
	players   []*domain.Player
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, totalRounds int) *harness {
	t.Helper()
	h := &harness{
		store:     memstore.New(),
		announcer: &recordingAnnouncer{},
		publisher: &recordingPublisher{},
	}
	h.svc = NewGameService(h.store, &config.GameConfig{TotalRounds: totalRounds}, testLogger())
	h.svc.SetAnnouncer(h.announcer)
	h.svc.AddPublisher(h.publisher)

	for _, name := range []string{"محمد", "أحمد", "خالد", "سامي"} {
		p, err := h.svc.CreatePlayer(context.Background(), domain.CreatePlayerRequest{Name: name})
		if err != nil {
			t.Fatalf("creating player: %v", err)
		}
		h.players = append(h.players, p)
	}
	return h
}

func (h *harness) start(t *testing.T) *domain.GameState {
	t.Helper()
	ids := make([]string, len(h.players))
	for i, p := range h.players {
		ids[i] = p.ID
	}
	state, err := h.svc.StartGame(context.Background(), ids)
	if err != nil {
		t.Fatalf("starting game: %v", err)
	}
	return state
}

func (h *harness) playRound(t *testing.T, state *domain.GameState, values ...int) *domain.RoundResult {
	t.Helper()
	ctx := context.Background()
	for i, v := range values {
		if err := h.svc.StageScore(ctx, state.Game.ID, state.Players[i].ID, v); err != nil {
			t.Fatalf("staging score: %v", err)
		}
	}
	res, err := h.svc.SubmitRound(ctx, state.Game.ID)
	if err != nil {
		t.Fatalf("submitting round: %v", err)
	}
	return res
}

// assertConsistent checks every persisted invariant of a game
func (h *harness) assertConsistent(t *testing.T, gameID string) {
	t.Helper()
	ctx := context.Background()
	g, _ := h.store.GetGame(ctx, gameID)
	players, _ := h.store.GetGamePlayers(ctx, gameID)
	rounds, _ := h.store.ListRounds(ctx, gameID)
	scores, _ := h.store.ListGameScores(ctx, gameID)

	if len(players) != domain.PlayersPerGame {
		t.Fatalf("expected 4 game players, got %d", len(players))
	}
	rederived := game.Rederive(*g, players, rounds, scores)
	for i := range players {
		if players[i] != rederived[i] {
			t.Fatalf("stored %+v, rederived %+v", players[i], rederived[i])
		}
	}

	perRound := map[string]map[string]bool{}
	for _, s := range scores {
		if perRound[s.RoundID] == nil {
			perRound[s.RoundID] = map[string]bool{}
		}
		if perRound[s.RoundID][s.GamePlayerID] {
			t.Fatalf("duplicate score for %s in round %s", s.GamePlayerID, s.RoundID)
		}
		perRound[s.RoundID][s.GamePlayerID] = true
	}
	for _, r := range rounds {
		n := len(perRound[r.ID])
		if r.IsCompleted && n != domain.PlayersPerGame {
			t.Fatalf("completed round %d has %d scores", r.RoundNumber, n)
		}
		if !r.IsCompleted && n != 0 {
			t.Fatalf("open round %d has %d scores", r.RoundNumber, n)
		}
	}
}

func TestStartGameValidatesRoster(t *testing.T) {
	h := newHarness(t, 7)
	ctx := context.Background()
	p := h.players

	tests := []struct {
		name string
		ids  []string
		want error
	}{
		{"three players", []string{p[0].ID, p[1].ID, p[2].ID}, domain.ErrInvalidRoster},
		{"duplicate", []string{p[0].ID, p[1].ID, p[2].ID, p[2].ID}, domain.ErrInvalidRoster},
		{"unknown", []string{p[0].ID, p[1].ID, p[2].ID, "nobody"}, domain.ErrPlayerNotFound},
	}
	for _, tt := range tests {
		if _, err := h.svc.StartGame(ctx, tt.ids); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	state := h.start(t)
	if state.Game.CurrentRound != 1 || state.Game.TotalRounds != 7 || state.Status != domain.GameStatusAwaitingScores {
		t.Fatalf("unexpected new game %+v", state.Game)
	}
	for i, gp := range state.Players {
		if gp.Seat != i || gp.PlayerID != p[i].ID || gp.TotalScore != 0 || gp.IsFateet {
			t.Fatalf("unexpected game player %+v", gp)
		}
	}
	if _, err := h.store.GetRound(ctx, state.Game.ID, 1); err != nil {
		t.Fatalf("round 1 should exist: %v", err)
	}
}

func TestSubmitRoundRequiresAllScores(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()

	if err := h.svc.StageScore(ctx, state.Game.ID, state.Players[0].ID, 100); err != nil {
		t.Fatalf("staging: %v", err)
	}
	if _, err := h.svc.SubmitRound(ctx, state.Game.ID); !errors.Is(err, domain.ErrIncompleteRound) {
		t.Fatalf("expected ErrIncompleteRound, got %v", err)
	}

	scores, _ := h.store.ListGameScores(ctx, state.Game.ID)
	if len(scores) != 0 {
		t.Fatalf("nothing should be persisted, got %d scores", len(scores))
	}

	if err := h.svc.StageScore(ctx, state.Game.ID, state.Players[1].ID, 50); !errors.Is(err, domain.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if err := h.svc.StageScore(ctx, state.Game.ID, h.players[0].ID, 100); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Fatalf("roster id is not a game player id, expected ErrUnknownPlayer, got %v", err)
	}

	got, _ := h.svc.GetGame(ctx, state.Game.ID)
	if got.Players[0].Staged == nil || *got.Players[0].Staged != 100 || got.Players[1].Staged != nil {
		t.Fatalf("unexpected staged values %+v", got.Players)
	}
}

func TestFullGame(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()

	res := h.playRound(t, state, 200, -30, -60, 100)
	if res.FateetID != "" || res.Announcement != "" || len(h.announcer.lines) != 0 {
		t.Fatalf("round 1 must not set or announce fateet: %+v", res)
	}
	got, _ := h.svc.GetGame(ctx, state.Game.ID)
	for _, p := range got.Players {
		if p.IsFateet {
			t.Fatalf("no fateet flag expected after round 1: %+v", p)
		}
		if p.Staged != nil {
			t.Fatalf("staging should be cleared: %+v", p)
		}
	}
	h.assertConsistent(t, state.Game.ID)

	res = h.playRound(t, state, 100, -30, -60, 100)
	if res.FateetID != state.Players[0].ID {
		t.Fatalf("expected %s as fateet, got %s", state.Players[0].ID, res.FateetID)
	}
	if len(h.announcer.lines) != 1 || h.announcer.lines[0] != scoring.FateetAnnouncement("محمد") {
		t.Fatalf("unexpected announcements %v", h.announcer.lines)
	}
	h.assertConsistent(t, state.Game.ID)

	for r := 3; r <= 7; r++ {
		res = h.playRound(t, state, -60, -30, 200, -30)
		h.assertConsistent(t, state.Game.ID)
	}

	if res.NextState != domain.GameStatusCompleted || res.NextRound != 0 {
		t.Fatalf("game should be completed: %+v", res)
	}
	got, _ = h.svc.GetGame(ctx, state.Game.ID)
	if !got.Game.IsCompleted || got.Status != domain.GameStatusCompleted {
		t.Fatalf("game not completed: %+v", got.Game)
	}
	// totals: 0, -210, 880, 50
	if got.FateetID != state.Players[2].ID {
		t.Fatalf("final fateet should be خالد, got %s", got.FateetID)
	}
	rounds, _ := h.store.ListRounds(ctx, state.Game.ID)
	if len(rounds) != 7 {
		t.Fatalf("expected exactly 7 rounds, got %d", len(rounds))
	}
	if got.Players[1].Scores[0] != -30 || len(got.Players[1].Scores) != 7 {
		t.Fatalf("unexpected score history %v", got.Players[1].Scores)
	}

	if _, err := h.svc.SubmitRound(ctx, state.Game.ID); !errors.Is(err, domain.ErrGameAlreadyCompleted) {
		t.Fatalf("expected ErrGameAlreadyCompleted, got %v", err)
	}
	if err := h.svc.StageScore(ctx, state.Game.ID, state.Players[0].ID, 100); !errors.Is(err, domain.ErrGameAlreadyCompleted) {
		t.Fatalf("expected ErrGameAlreadyCompleted when staging, got %v", err)
	}

	var completed int
	for _, ev := range h.publisher.events {
		if ev.Type == domain.EventGameCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected one game_completed event, got %d", completed)
	}

	summary, err := h.svc.Summary(ctx, state.Game.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Entries[0].Name != "أحمد" || !summary.Entries[0].IsWinner || summary.Entries[0].RankLabel != "الأول" {
		t.Fatalf("unexpected winner row %+v", summary.Entries[0])
	}
	if summary.Entries[3].GamePlayerID != state.Players[2].ID {
		t.Fatalf("fateet should rank last, got %+v", summary.Entries[3])
	}
}

func TestPublisherFailureDoesNotFailSubmission(t *testing.T) {
	h := newHarness(t, 7)
	h.publisher.err = errors.New("broker down")
	state := h.start(t)

	h.playRound(t, state, 100, 100, 100, 100)
	h.assertConsistent(t, state.Game.ID)
}

func TestUtterances(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()

	res, err := h.svc.ApplyUtterance(ctx, state.Game.ID, "خالد ميتين")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Understood || res.Parsed.GamePlayerID != state.Players[2].ID || res.Parsed.Score != 200 {
		t.Fatalf("unexpected result %+v", res)
	}

	for _, text := range []string{"ناقص ستين", "عمر مية", "كلام"} {
		res, err := h.svc.ApplyUtterance(ctx, state.Game.ID, text)
		if err != nil {
			t.Fatalf("apply %q: %v", text, err)
		}
		if res.Understood {
			t.Fatalf("%q should not be understood: %+v", text, res)
		}
	}

	got, _ := h.svc.GetGame(ctx, state.Game.ID)
	if got.Players[2].Staged == nil || *got.Players[2].Staged != 200 {
		t.Fatalf("voice score not staged: %+v", got.Players[2])
	}
	for _, i := range []int{0, 1, 3} {
		if got.Players[i].Staged != nil {
			t.Fatalf("dropped utterances must not stage anything: %+v", got.Players[i])
		}
	}
}

func TestUtteranceWithVoiceDisabled(t *testing.T) {
	h := newHarness(t, 7)
	off := false
	h.svc.config.VoiceEnabled = &off
	state := h.start(t)

	if _, err := h.svc.ApplyUtterance(context.Background(), state.Game.ID, "محمد مية"); !errors.Is(err, domain.ErrSpeechUnsupported) {
		t.Fatalf("expected ErrSpeechUnsupported, got %v", err)
	}
	// manual entry keeps working
	if err := h.svc.StageScore(context.Background(), state.Game.ID, state.Players[0].ID, 100); err != nil {
		t.Fatalf("staging: %v", err)
	}
}

func TestHandleCommand(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()

	cmds := []domain.GameCommand{
		{GameID: state.Game.ID, Type: domain.CommandUtterance, Transcript: "محمد مية"},
		{GameID: state.Game.ID, Type: domain.CommandStage, GamePlayerID: state.Players[1].ID, Score: -30},
		{GameID: state.Game.ID, Type: domain.CommandStage, GamePlayerID: state.Players[2].ID, Score: -60},
		{GameID: state.Game.ID, Type: domain.CommandUtterance, Transcript: "سامي ناقص ثلاثين"},
		{GameID: state.Game.ID, Type: domain.CommandSubmit},
	}
	for _, c := range cmds {
		if err := h.svc.HandleCommand(ctx, c); err != nil {
			t.Fatalf("command %+v: %v", c, err)
		}
	}

	got, _ := h.svc.GetGame(ctx, state.Game.ID)
	want := []int{100, -30, -60, -30}
	for i, p := range got.Players {
		if p.TotalScore != want[i] {
			t.Fatalf("player %d total = %d, want %d", i, p.TotalScore, want[i])
		}
	}
	if err := h.svc.HandleCommand(ctx, domain.GameCommand{GameID: state.Game.ID, Type: "dance"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestReconcileRepairsTotals(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()

	h.playRound(t, state, 100, -30, -60, 200)
	h.playRound(t, state, 100, -30, -60, -30)

	changed, err := h.svc.Reconcile(ctx, state.Game.ID)
	if err != nil || changed {
		t.Fatalf("consistent game should not change: changed=%v err=%v", changed, err)
	}

	players, _ := h.store.GetGamePlayers(ctx, state.Game.ID)
	players[0].TotalScore = 5000
	players[0].IsFateet = true
	players[3].IsFateet = false
	if err := h.store.UpdateGamePlayers(ctx, players); err != nil {
		t.Fatalf("corrupting: %v", err)
	}

	changed, err = h.svc.Reconcile(ctx, state.Game.ID)
	if err != nil || !changed {
		t.Fatalf("expected repair: changed=%v err=%v", changed, err)
	}
	h.assertConsistent(t, state.Game.ID)

	got, _ := h.svc.GetGame(ctx, state.Game.ID)
	if got.Players[0].TotalScore != 200 || got.FateetID != state.Players[0].ID {
		// totals 200, -60, -120, 170
		t.Fatalf("unexpected repaired state %+v", got.Players)
	}
}

func TestConcurrentSubmitIsSerialized(t *testing.T) {
	h := newHarness(t, 7)
	state := h.start(t)
	ctx := context.Background()
	for i, v := range []int{100, 100, -30, -60} {
		if err := h.svc.StageScore(ctx, state.Game.ID, state.Players[i].ID, v); err != nil {
			t.Fatalf("staging: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.SubmitRound(ctx, state.Game.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrIncompleteRound):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("exactly one submission should succeed, got %d", ok)
	}
	h.assertConsistent(t, state.Game.ID)
}

func fateetCount(t *testing.T, s *domain.Statistics, name string) int {
	t.Helper()
	for _, ps := range s.PlayerStats {
		if ps.PlayerName == name {
			return ps.TotalFateet
		}
	}
	t.Fatalf("no statistics for %s", name)
	return 0
}

func TestStatisticsService(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	statsSvc := NewStatisticsService(h.store, &config.StatisticsConfig{RecentDays: 7}, testLogger())
	statsSvc.SetCache(&memoryStatsCache{})
	h.svc.AddPublisher(statsSvc)

	g1 := h.start(t)
	h.playRound(t, g1, -60, 200, 100, 100)
	g2 := h.start(t)
	h.playRound(t, g2, -30, -30, 200, 100)
	h.start(t) // still running

	s, err := statsSvc.GetStatistics(ctx, 0)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if s.TotalGames != 2 {
		t.Fatalf("total games = %d, want 2", s.TotalGames)
	}
	wins := 0
	for _, ps := range s.PlayerStats {
		wins += ps.TotalWins
	}
	if wins != 3 {
		t.Fatalf("expected 3 wins over 2 games, got %d", wins)
	}
	if len(s.PerDateCounts) != 1 || s.PerDateCounts[0].GamesCount != 2 {
		t.Fatalf("unexpected per-date counts %+v", s.PerDateCounts)
	}
	if s.PlayerStats[0].PlayerName != "محمد" || s.PlayerStats[0].TotalWins != 2 {
		t.Fatalf("unexpected leader %+v", s.PlayerStats[0])
	}

	t.Run("repair of a completed game reaches the cache", func(t *testing.T) {
		players, _ := h.store.GetGamePlayers(ctx, g1.Game.ID)
		players[0].IsFateet = true
		players[1].IsFateet = false
		if err := h.store.UpdateGamePlayers(ctx, players); err != nil {
			t.Fatalf("corrupting flags: %v", err)
		}
		if _, err := statsSvc.Refresh(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		cached, _ := statsSvc.GetStatistics(ctx, 0)
		if fateetCount(t, cached, "محمد") != 1 {
			t.Fatal("cache should hold the corrupted snapshot before the repair")
		}

		changed, err := h.svc.Reconcile(ctx, g1.Game.ID)
		if err != nil || !changed {
			t.Fatalf("reconcile: changed=%v err=%v", changed, err)
		}

		s, err := statsSvc.GetStatistics(ctx, 0)
		if err != nil {
			t.Fatalf("statistics: %v", err)
		}
		if fateetCount(t, s, "أحمد") != 1 || fateetCount(t, s, "محمد") != 0 {
			t.Fatalf("statistics still show the corrupted fateet: %+v", s.PlayerStats)
		}

		last := h.publisher.events[len(h.publisher.events)-1]
		if last.Type != domain.EventGameRepaired || !last.Completed || last.GameID != g1.Game.ID {
			t.Fatalf("expected a repair event for the completed game, got %+v", last)
		}
	})
}

func TestSessionsAreReleased(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	var finished []string
	for i := 0; i < 5; i++ {
		state := h.start(t)
		h.playRound(t, state, 100, -30, -60, 200)
		finished = append(finished, state.Game.ID)
	}
	h.start(t) // keeps its session

	for _, id := range finished {
		if _, err := h.svc.Reconcile(ctx, id); err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if err := h.svc.StageScore(ctx, id, "gp", 100); !errors.Is(err, domain.ErrGameAlreadyCompleted) {
			t.Fatalf("expected ErrGameAlreadyCompleted, got %v", err)
		}
	}

	h.svc.mu.Lock()
	n := len(h.svc.sessions)
	h.svc.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected only the running game to keep a session, got %d", n)
	}
}

func TestSlowPublisherDoesNotBlockStaging(t *testing.T) {
	h := newHarness(t, 3)
	slow := newBlockingPublisher()
	t.Cleanup(slow.open)
	h.svc.AddPublisher(slow)
	ctx := context.Background()

	state := h.start(t)
	for _, p := range state.Players {
		if err := h.svc.StageScore(ctx, state.Game.ID, p.ID, 100); err != nil {
			t.Fatalf("staging: %v", err)
		}
	}

	submitted := make(chan error, 1)
	go func() {
		_, err := h.svc.SubmitRound(ctx, state.Game.ID)
		submitted <- err
	}()

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("round events were never published")
	}

	staged := make(chan error, 1)
	go func() {
		staged <- h.svc.StageScore(ctx, state.Game.ID, state.Players[0].ID, 200)
	}()
	select {
	case err := <-staged:
		if err != nil {
			t.Fatalf("staging round 2: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("staging waited for a stalled publisher")
	}

	slow.open()
	if err := <-submitted; err != nil {
		t.Fatalf("submit: %v", err)
	}
}

// commitBehindService submits the current round straight to the store, the
// way a second server instance would
func (h *harness) commitBehindService(t *testing.T, gameID string, value int) {
	t.Helper()
	ctx := context.Background()
	g, _ := h.store.GetGame(ctx, gameID)
	players, _ := h.store.GetGamePlayers(ctx, gameID)
	round, _ := h.store.GetRound(ctx, gameID, g.CurrentRound)

	draft := game.NewDraft(gameID, g.CurrentRound, players)
	for _, p := range players {
		_ = draft.RecordProvisionalScore(p.ID, value)
	}
	seq := 0
	newID := func() string { seq++; return fmt.Sprintf("%s-ext-%d", gameID, seq) }
	plan, err := game.PlanRound(*g, *round, players, draft, newID, time.Now())
	if err != nil {
		t.Fatalf("planning: %v", err)
	}
	if err := h.store.CommitRound(ctx, plan.Commit); err != nil {
		t.Fatalf("committing: %v", err)
	}
}

func TestStaleDraftIsNotCommitted(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	stageAll := func(state *domain.GameState, v int) {
		for _, p := range state.Players {
			if err := h.svc.StageScore(ctx, state.Game.ID, p.ID, v); err != nil {
				t.Fatalf("staging: %v", err)
			}
		}
	}

	// submitting a round someone else already closed
	g1 := h.start(t)
	stageAll(g1, 200)
	h.commitBehindService(t, g1.Game.ID, 100)
	if _, err := h.svc.SubmitRound(ctx, g1.Game.ID); !errors.Is(err, domain.ErrRoundAlreadySubmitted) {
		t.Fatalf("expected ErrRoundAlreadySubmitted, got %v", err)
	}
	h.assertConsistent(t, g1.Game.ID)

	// staging after the round moved on starts from an empty draft
	g2 := h.start(t)
	stageAll(g2, 200)
	h.commitBehindService(t, g2.Game.ID, 100)
	if err := h.svc.StageScore(ctx, g2.Game.ID, g2.Players[0].ID, -30); err != nil {
		t.Fatalf("staging: %v", err)
	}
	if _, err := h.svc.SubmitRound(ctx, g2.Game.ID); !errors.Is(err, domain.ErrIncompleteRound) {
		t.Fatalf("round 2 draft must not carry round 1 values, got %v", err)
	}

	players, _ := h.store.GetGamePlayers(ctx, g2.Game.ID)
	for _, p := range players {
		if p.TotalScore != 100 {
			t.Fatalf("expected totals from the external round only, got %+v", p)
		}
	}
	h.assertConsistent(t, g2.Game.ID)
}
