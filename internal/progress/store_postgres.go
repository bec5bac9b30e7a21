package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps the record as a single jsonb row. Row-level locking
// (SELECT ... FOR UPDATE) gives each operation the same exclusive
// read-modify-write the file backend gets from its advisory lock, across
// however many processes share the database.
type PostgresStore struct {
	pool   *pgxpool.Pool
	counts LessonCounter
}

// NewPostgresStore creates a Postgres-backed store, creating its table if
// needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, counts LessonCounter) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	_, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS progress (
			id smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			data jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("creating progress table: %w", err)
	}

	return &PostgresStore{pool: pool, counts: counts}, nil
}

func (s *PostgresStore) GetProgress() (*Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM progress WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading progress: %w", err)
	}
	return decodeRecord(data), nil
}

func (s *PostgresStore) SetUserStart() error {
	_, err := s.update(func(rec *Record, now time.Time) bool {
		if rec.User.StartedAt != nil {
			return false
		}
		rec.User.StartedAt = &now
		return true
	})
	return err
}

func (s *PostgresStore) MarkLessonComplete(moduleID, lessonID string) (*Record, error) {
	return s.update(func(rec *Record, now time.Time) bool {
		applyLessonComplete(rec, moduleID, lessonID, s.counts, now)
		return true
	})
}

func (s *PostgresStore) RecordQuizResult(moduleID, quizID string, score int, passed bool, badgeID string) (*QuizOutcome, error) {
	outcome := &QuizOutcome{}
	rec, err := s.update(func(rec *Record, now time.Time) bool {
		outcome.BadgeAdded, outcome.ModuleCompleted = applyQuizResult(rec, moduleID, score, passed, badgeID, s.counts, now)
		return true
	})
	if err != nil {
		return nil, err
	}
	outcome.Record = rec
	return outcome, nil
}

func (s *PostgresStore) RecordScenarioResult(scenarioID string, score, maxScore int) (*Record, error) {
	return s.update(func(rec *Record, _ time.Time) bool {
		applyScenarioResult(rec, scenarioID, score, maxScore)
		return true
	})
}

func (s *PostgresStore) SaveCapstone(partial map[string]any) (*Record, error) {
	return s.update(func(rec *Record, _ time.Time) bool {
		applyCapstone(rec, partial)
		return true
	})
}

func (s *PostgresStore) ResetProgress() (*Record, error) {
	return s.update(func(rec *Record, _ time.Time) bool {
		*rec = *DefaultRecord()
		return true
	})
}

// update runs one read-modify-write transaction holding the row lock for
// its full duration. The mutation returns false to skip the write.
func (s *PostgresStore) update(fn func(rec *Record, now time.Time) bool) (*Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning progress transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := DefaultRecord()
	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM progress WHERE id = 1 FOR UPDATE`).Scan(&data)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading progress: %w", err)
	}
	if err == nil {
		rec = decodeRecord(data)
	}

	now := time.Now().UTC()
	if !fn(rec, now) {
		return rec, nil
	}
	rec.User.LastActiveAt = &now

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding progress: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO progress (id, data, updated_at)
		 VALUES (1, $1::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("saving progress: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing progress: %w", err)
	}
	return rec, nil
}

func decodeRecord(data []byte) *Record {
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		slog.Warn("stored progress row corrupt, starting from defaults", "error", err)
		return DefaultRecord()
	}
	rec.normalize()
	return rec
}
