package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
)

// dbPool is the part of pgxpool.Pool the repository uses
type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   dbPool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pgPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pgPool.Ping(context.Background()); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pgPool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(64) PRIMARY KEY,
			date VARCHAR(10) NOT NULL,
			total_rounds INT NOT NULL DEFAULT 7,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			current_round INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_players (
			id VARCHAR(64) PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			player_id VARCHAR(64) NOT NULL,
			seat INT NOT NULL,
			total_score INT NOT NULL DEFAULT 0,
			is_fateet BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(game_id, seat)
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id VARCHAR(64) PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			round_number INT NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(game_id, round_number)
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id VARCHAR(64) PRIMARY KEY,
			round_id VARCHAR(64) NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
			game_player_id VARCHAR(64) NOT NULL REFERENCES game_players(id) ON DELETE CASCADE,
			score INT NOT NULL CHECK (score IN (-30, -60, 100, 200)),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(round_id, game_player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_completed ON games(is_completed, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_players_player ON game_players(player_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreatePlayer inserts a roster player
func (r *Repository) CreatePlayer(ctx context.Context, player domain.Player) error {
	query := `INSERT INTO players (id, name, created_at) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, player.ID, player.Name, player.CreatedAt); err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

// GetPlayer retrieves a player by ID
func (r *Repository) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `SELECT id, name, created_at FROM players WHERE id = $1`
	var p domain.Player
	err := r.pool.QueryRow(ctx, query, playerID).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

// ListPlayers retrieves the roster, newest first
func (r *Repository) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	query := `SELECT id, name, created_at FROM players ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// DeletePlayer removes a player from the roster. Game rows keep the id.
func (r *Repository) DeletePlayer(ctx context.Context, playerID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, playerID)
	if err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

// CreateGame inserts a game, its four seats and its first round in one transaction
func (r *Repository) CreateGame(ctx context.Context, ng domain.NewGame) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO games (id, date, total_rounds, is_completed, current_round, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ng.Game.ID, ng.Game.Date, ng.Game.TotalRounds, ng.Game.IsCompleted, ng.Game.CurrentRound, ng.Game.CreatedAt)
	for _, gp := range ng.Players {
		batch.Queue(`
			INSERT INTO game_players (id, game_id, player_id, seat, total_score, is_fateet)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, gp.ID, gp.GameID, gp.PlayerID, gp.Seat, gp.TotalScore, gp.IsFateet)
	}
	batch.Queue(`
		INSERT INTO rounds (id, game_id, round_number, is_completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ng.FirstRound.ID, ng.FirstRound.GameID, ng.FirstRound.RoundNumber, ng.FirstRound.IsCompleted, ng.FirstRound.CreatedAt)

	if err := execBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing game: %w", err)
	}
	return nil
}

const gameColumns = `id, date, total_rounds, is_completed, current_round, created_at`

func scanGame(row pgx.Row) (domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.Date, &g.TotalRounds, &g.IsCompleted, &g.CurrentRound, &g.CreatedAt)
	return g, err
}

// GetGame retrieves a game by ID
func (r *Repository) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	g, err := scanGame(r.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &g, nil
}

// ListGames retrieves games newest first, optionally filtered by completion
func (r *Repository) ListGames(ctx context.Context, completed *bool) ([]domain.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games`
	var args []any
	if completed != nil {
		query += ` WHERE is_completed = $1`
		args = append(args, *completed)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

const gamePlayerColumns = `gp.id, gp.game_id, gp.player_id, gp.seat, gp.total_score, gp.is_fateet`

func (r *Repository) queryGamePlayers(ctx context.Context, query string, args ...any) ([]domain.GamePlayer, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []domain.GamePlayer
	for rows.Next() {
		var gp domain.GamePlayer
		if err := rows.Scan(&gp.ID, &gp.GameID, &gp.PlayerID, &gp.Seat, &gp.TotalScore, &gp.IsFateet); err != nil {
			return nil, fmt.Errorf("scanning game player: %w", err)
		}
		players = append(players, gp)
	}
	return players, rows.Err()
}

// GetGamePlayers retrieves the players of a game in seat order
func (r *Repository) GetGamePlayers(ctx context.Context, gameID string) ([]domain.GamePlayer, error) {
	players, err := r.queryGamePlayers(ctx,
		`SELECT `+gamePlayerColumns+` FROM game_players gp WHERE gp.game_id = $1 ORDER BY gp.seat`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting game players: %w", err)
	}
	return players, nil
}

// ListCompletedGamePlayers retrieves the players of every completed game
func (r *Repository) ListCompletedGamePlayers(ctx context.Context) ([]domain.GamePlayer, error) {
	players, err := r.queryGamePlayers(ctx, `
		SELECT `+gamePlayerColumns+`
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE g.is_completed
		ORDER BY g.created_at DESC, gp.seat
	`)
	if err != nil {
		return nil, fmt.Errorf("listing completed game players: %w", err)
	}
	return players, nil
}

// UpdateGamePlayers overwrites the totals and fateet flags of game players
func (r *Repository) UpdateGamePlayers(ctx context.Context, players []domain.GamePlayer) error {
	if len(players) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	queueGamePlayerUpdates(batch, players)
	if err := execBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("updating game players: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing game players: %w", err)
	}
	return nil
}

func queueGamePlayerUpdates(batch *pgx.Batch, players []domain.GamePlayer) {
	for _, gp := range players {
		batch.Queue(
			`UPDATE game_players SET total_score = $2, is_fateet = $3 WHERE id = $1`,
			gp.ID, gp.TotalScore, gp.IsFateet,
		)
	}
}

// GetRound retrieves a round of a game by number
func (r *Repository) GetRound(ctx context.Context, gameID string, roundNumber int) (*domain.Round, error) {
	query := `
		SELECT id, game_id, round_number, is_completed, created_at
		FROM rounds
		WHERE game_id = $1 AND round_number = $2
	`
	var rd domain.Round
	err := r.pool.QueryRow(ctx, query, gameID, roundNumber).Scan(
		&rd.ID,
		&rd.GameID,
		&rd.RoundNumber,
		&rd.IsCompleted,
		&rd.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("getting round: %w", err)
	}
	return &rd, nil
}

// ListRounds retrieves the rounds of a game in order
func (r *Repository) ListRounds(ctx context.Context, gameID string) ([]domain.Round, error) {
	query := `
		SELECT id, game_id, round_number, is_completed, created_at
		FROM rounds
		WHERE game_id = $1
		ORDER BY round_number
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var rd domain.Round
		if err := rows.Scan(&rd.ID, &rd.GameID, &rd.RoundNumber, &rd.IsCompleted, &rd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

// ListGameScores retrieves every score of a game, ordered by round
func (r *Repository) ListGameScores(ctx context.Context, gameID string) ([]domain.Score, error) {
	query := `
		SELECT s.id, s.round_id, s.game_player_id, s.score, s.created_at
		FROM scores s
		JOIN rounds r ON r.id = s.round_id
		WHERE r.game_id = $1
		ORDER BY r.round_number
	`
	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.Score
	for rows.Next() {
		var s domain.Score
		if err := rows.Scan(&s.ID, &s.RoundID, &s.GamePlayerID, &s.Value, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// CommitRound applies a round submission in one transaction. Closing the
// round is the guard: a round that is already closed commits nothing.
func (r *Repository) CommitRound(ctx context.Context, c domain.RoundCommit) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE rounds SET is_completed = TRUE WHERE id = $1 AND is_completed = FALSE`,
		c.Round.ID,
	)
	if err != nil {
		return fmt.Errorf("closing round: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRoundAlreadySubmitted
	}

	batch := &pgx.Batch{}
	for _, s := range c.Scores {
		batch.Queue(`
			INSERT INTO scores (id, round_id, game_player_id, score, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.RoundID, s.GamePlayerID, s.Value, s.CreatedAt)
	}
	queueGamePlayerUpdates(batch, c.Players)
	batch.Queue(
		`UPDATE games SET is_completed = $2, current_round = $3 WHERE id = $1`,
		c.Game.ID, c.Game.IsCompleted, c.Game.CurrentRound,
	)
	if next := c.NextRound; next != nil {
		batch.Queue(`
			INSERT INTO rounds (id, game_id, round_number, is_completed, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, next.ID, next.GameID, next.RoundNumber, next.IsCompleted, next.CreatedAt)
	}

	if err := execBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("writing round: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing round: %w", err)
	}
	return nil
}

// execBatch sends a batch within a transaction and checks every statement
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
