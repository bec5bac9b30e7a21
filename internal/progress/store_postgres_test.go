package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/rmf-academy/course-server/internal/progress"
)

// startPostgres spins up a throwaway Postgres and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("course"),
		tcpostgres.WithUsername("course"),
		tcpostgres.WithPassword("course"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skipping: cannot start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := startPostgres(t)
	store, err := progress.NewPostgresStore(context.Background(), pool, testCounts)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	if _, err := store.MarkLessonComplete("module-1", "lesson-1"); err != nil {
		t.Fatalf("MarkLessonComplete() error = %v", err)
	}
	if _, err := store.MarkLessonComplete("module-1", "lesson-2"); err != nil {
		t.Fatalf("MarkLessonComplete() error = %v", err)
	}
	outcome, err := store.RecordQuizResult("module-1", "quiz-1", 85, true, "badge-1")
	if err != nil {
		t.Fatalf("RecordQuizResult() error = %v", err)
	}
	if !outcome.ModuleCompleted || !outcome.BadgeAdded {
		t.Errorf("outcome = %+v, want completed module and new badge", outcome)
	}

	rec, err := store.GetProgress()
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	mp := rec.Modules["module-1"]
	if mp == nil || mp.Status != progress.StatusCompleted {
		t.Errorf("module state = %+v, want completed", mp)
	}
	if len(rec.Badges) != 1 {
		t.Errorf("Badges = %v, want one entry", rec.Badges)
	}

	if _, err := store.ResetProgress(); err != nil {
		t.Fatalf("ResetProgress() error = %v", err)
	}
	fresh, _ := store.GetProgress()
	if len(fresh.Modules) != 0 || fresh.User.StartedAt != nil {
		t.Errorf("reset left state behind: %+v", fresh)
	}
}

func TestPostgresStore_ConcurrentWriters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := startPostgres(t)
	store, err := progress.NewPostgresStore(context.Background(), pool, testCounts)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := store.MarkLessonComplete("module-2", "lesson-1")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent MarkLessonComplete() error = %v", err)
		}
	}

	rec, _ := store.GetProgress()
	if got := rec.Modules["module-2"].LessonsCompleted; len(got) != 1 {
		t.Errorf("LessonsCompleted = %v, want the lesson exactly once", got)
	}
}
