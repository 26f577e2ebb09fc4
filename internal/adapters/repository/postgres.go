package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/overcall/internal/domain/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		seq        BIGSERIAL UNIQUE,
		team_name  TEXT PRIMARY KEY,
		score      INTEGER NOT NULL DEFAULT 0 CHECK (score >= 0),
		version    BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		team_name  TEXT PRIMARY KEY REFERENCES teams (team_name) ON DELETE CASCADE,
		runs       INTEGER NOT NULL DEFAULT 0,
		wickets    INTEGER NOT NULL DEFAULT 0,
		submitted  BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		id        SMALLINT PRIMARY KEY CHECK (id = 1),
		round_id  TEXT NOT NULL DEFAULT '',
		number    INTEGER NOT NULL DEFAULT 0,
		is_open   BOOLEAN NOT NULL DEFAULT false,
		scored    BOOLEAN NOT NULL DEFAULT false,
		opened_at TIMESTAMPTZ,
		closed_at TIMESTAMPTZ
	)`,
	`INSERT INTO rounds (id) VALUES (1) ON CONFLICT DO NOTHING`,
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateTeam implements Store.CreateTeam.
func (s *PostgresStore) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	defer observe("create_team", time.Now())

	const q = `
		INSERT INTO teams (team_name)
		VALUES ($1)
		RETURNING team_name, score, version, created_at
	`
	var t model.Team
	if err := s.pool.QueryRow(ctx, q, name).Scan(&t.Name, &t.Score, &t.Version, &t.CreatedAt); err != nil {
		if pgCode(err) == "23505" {
			return model.Team{}, fmt.Errorf("team %s: %w", name, ErrAlreadyExists)
		}
		return model.Team{}, err
	}
	return t, nil
}

// GetTeam implements Store.GetTeam.
func (s *PostgresStore) GetTeam(ctx context.Context, name string) (model.Team, error) {
	defer observe("get_team", time.Now())

	const q = `
		SELECT team_name, score, version, created_at
		FROM teams
		WHERE team_name = $1
	`
	var t model.Team
	if err := s.pool.QueryRow(ctx, q, name).Scan(&t.Name, &t.Score, &t.Version, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Team{}, fmt.Errorf("team %s: %w", name, ErrNotFound)
		}
		return model.Team{}, err
	}
	return t, nil
}

// ListTeams implements Store.ListTeams.
func (s *PostgresStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	defer observe("list_teams", time.Now())

	const q = `
		SELECT team_name, score, version, created_at
		FROM teams
		ORDER BY score DESC, seq ASC
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.Name, &t.Score, &t.Version, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTeamScore implements Store.UpdateTeamScore.
func (s *PostgresStore) UpdateTeamScore(ctx context.Context, name string, score int) error {
	defer observe("update_team_score", time.Now())

	const q = `UPDATE teams SET score = $2, version = version + 1 WHERE team_name = $1`
	tag, err := s.pool.Exec(ctx, q, name, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team %s: %w", name, ErrNotFound)
	}
	return nil
}

// ApplyScores implements Store.ApplyScores inside one transaction.
func (s *PostgresStore) ApplyScores(ctx context.Context, updates []ScoreUpdate) error {
	defer observe("apply_scores", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE teams
		SET score = $2, version = version + 1
		WHERE team_name = $1 AND version = $3
	`
	for _, u := range updates {
		tag, err := tx.Exec(ctx, q, u.TeamName, u.Score, u.ExpectedVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("team %s expected version %d: %w", u.TeamName, u.ExpectedVersion, ErrVersionConflict)
		}
	}
	return tx.Commit(ctx)
}

// GetPrediction implements Store.GetPrediction.
func (s *PostgresStore) GetPrediction(ctx context.Context, teamName string) (model.Prediction, error) {
	defer observe("get_prediction", time.Now())

	const q = `
		SELECT team_name, runs, wickets, submitted, updated_at
		FROM predictions
		WHERE team_name = $1
	`
	var p model.Prediction
	if err := s.pool.QueryRow(ctx, q, teamName).Scan(&p.TeamName, &p.Runs, &p.Wickets, &p.Submitted, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Prediction{}, fmt.Errorf("prediction for %s: %w", teamName, ErrNotFound)
		}
		return model.Prediction{}, err
	}
	return p, nil
}

// ListPredictions implements Store.ListPredictions in team creation order.
func (s *PostgresStore) ListPredictions(ctx context.Context) ([]model.Prediction, error) {
	defer observe("list_predictions", time.Now())

	const q = `
		SELECT p.team_name, p.runs, p.wickets, p.submitted, p.updated_at
		FROM predictions p
		JOIN teams t ON t.team_name = p.team_name
		ORDER BY t.seq ASC
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(&p.TeamName, &p.Runs, &p.Wickets, &p.Submitted, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPrediction implements Store.UpsertPrediction. The write only lands
// while the round row is open.
func (s *PostgresStore) UpsertPrediction(ctx context.Context, p model.Prediction) error {
	defer observe("upsert_prediction", time.Now())

	const q = `
		INSERT INTO predictions (team_name, runs, wickets, submitted, updated_at)
		SELECT $1, $2, $3, $4, now()
		WHERE EXISTS (SELECT 1 FROM rounds WHERE id = 1 AND is_open AND NOT scored)
		ON CONFLICT (team_name) DO UPDATE
		SET runs = EXCLUDED.runs,
		    wickets = EXCLUDED.wickets,
		    submitted = EXCLUDED.submitted,
		    updated_at = EXCLUDED.updated_at
	`
	tag, err := s.pool.Exec(ctx, q, p.TeamName, p.Runs, p.Wickets, p.Submitted)
	if err != nil {
		if pgCode(err) == "23503" {
			return fmt.Errorf("team %s: %w", p.TeamName, ErrNotFound)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoundClosed
	}
	return nil
}

// ResetAllPredictions implements Store.ResetAllPredictions.
func (s *PostgresStore) ResetAllPredictions(ctx context.Context) error {
	defer observe("reset_predictions", time.Now())

	_, err := s.pool.Exec(ctx, `UPDATE predictions SET runs = 0, wickets = 0, submitted = false, updated_at = now()`)
	return err
}

// GetRound implements Store.GetRound.
func (s *PostgresStore) GetRound(ctx context.Context) (model.Round, error) {
	defer observe("get_round", time.Now())

	const q = `
		SELECT round_id, number, is_open, scored, opened_at, closed_at
		FROM rounds
		WHERE id = 1
	`
	var (
		r                  model.Round
		openedAt, closedAt *time.Time
	)
	if err := s.pool.QueryRow(ctx, q).Scan(&r.ID, &r.Number, &r.Open, &r.Scored, &openedAt, &closedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Round{}, nil
		}
		return model.Round{}, err
	}
	if openedAt != nil {
		r.OpenedAt = *openedAt
	}
	if closedAt != nil {
		r.ClosedAt = *closedAt
	}
	return r, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// SaveRound implements Store.SaveRound.
func (s *PostgresStore) SaveRound(ctx context.Context, r model.Round) error {
	defer observe("save_round", time.Now())

	const q = `
		INSERT INTO rounds (id, round_id, number, is_open, scored, opened_at, closed_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET round_id = EXCLUDED.round_id,
		    number = EXCLUDED.number,
		    is_open = EXCLUDED.is_open,
		    scored = EXCLUDED.scored,
		    opened_at = EXCLUDED.opened_at,
		    closed_at = EXCLUDED.closed_at
	`
	_, err := s.pool.Exec(ctx, q, r.ID, r.Number, r.Open, r.Scored, nullTime(r.OpenedAt), nullTime(r.ClosedAt))
	return err
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM teams`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
