package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/memstore"
	"github.com/shadda-scores/internal/service"
)

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh(context.Context) (*domain.Statistics, error) {
	r.calls++
	return &domain.Statistics{}, nil
}

func TestRunOnceRepairsCorruptedGames(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	games := service.NewGameService(store, &config.GameConfig{TotalRounds: 7}, logger)

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		p, err := games.CreatePlayer(ctx, domain.CreatePlayerRequest{Name: name})
		if err != nil {
			t.Fatalf("creating player: %v", err)
		}
		ids = append(ids, p.ID)
	}
	state, err := games.StartGame(ctx, ids)
	if err != nil {
		t.Fatalf("starting game: %v", err)
	}
	for i, v := range []int{100, 200, -30, -60} {
		if err := games.StageScore(ctx, state.Game.ID, state.Players[i].ID, v); err != nil {
			t.Fatalf("staging: %v", err)
		}
	}
	if _, err := games.SubmitRound(ctx, state.Game.ID); err != nil {
		t.Fatalf("submitting: %v", err)
	}

	players, _ := store.GetGamePlayers(ctx, state.Game.ID)
	players[2].TotalScore = 999
	if err := store.UpdateGamePlayers(ctx, players); err != nil {
		t.Fatalf("corrupting: %v", err)
	}

	refresher := &countingRefresher{}
	w := NewReconcileWorker(games, refresher, &config.ReconcileConfig{Interval: time.Hour}, logger)

	if n := w.RunOnce(ctx, true); n != 1 {
		t.Fatalf("expected one repaired game, got %d", n)
	}
	if n := w.RunOnce(ctx, false); n != 0 {
		t.Fatalf("second pass should find nothing, got %d", n)
	}
	if refresher.calls != 2 {
		t.Fatalf("expected statistics refresh on every cycle, got %d", refresher.calls)
	}

	players, _ = store.GetGamePlayers(ctx, state.Game.ID)
	if players[2].TotalScore != -30 {
		t.Fatalf("total not repaired: %+v", players[2])
	}
}

func TestStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	games := service.NewGameService(memstore.New(), &config.GameConfig{TotalRounds: 7}, logger)
	w := NewReconcileWorker(games, nil, &config.ReconcileConfig{Interval: time.Millisecond}, logger)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("worker should be running")
	}
	time.Sleep(10 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker should be stopped")
	}
}
