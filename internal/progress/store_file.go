package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileStore keeps the record in a single JSON file guarded by a
// co-located advisory lock, so separate processes sharing the storage
// location serialize their read-modify-writes. The flock only excludes
// other processes; mu serializes goroutines within this one. Writes go to
// a temp file in the same directory followed by an atomic rename; a crash
// mid-write leaves the previous state intact.
type FileStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	counts LessonCounter
}

// NewFileStore creates a file-backed store at path, creating the parent
// directory if needed.
func NewFileStore(path string, counts LessonCounter) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating progress directory: %w", err)
	}
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		counts: counts,
	}, nil
}

func (s *FileStore) GetProgress() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring progress lock: %w", err)
	}
	defer s.lock.Unlock()

	return s.read(), nil
}

func (s *FileStore) SetUserStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquiring progress lock: %w", err)
	}
	defer s.lock.Unlock()

	rec := s.read()
	if rec.User.StartedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	rec.User.StartedAt = &now
	return s.write(rec, now)
}

func (s *FileStore) MarkLessonComplete(moduleID, lessonID string) (*Record, error) {
	return s.update(func(rec *Record, now time.Time) {
		applyLessonComplete(rec, moduleID, lessonID, s.counts, now)
	})
}

func (s *FileStore) RecordQuizResult(moduleID, quizID string, score int, passed bool, badgeID string) (*QuizOutcome, error) {
	outcome := &QuizOutcome{}
	rec, err := s.update(func(rec *Record, now time.Time) {
		outcome.BadgeAdded, outcome.ModuleCompleted = applyQuizResult(rec, moduleID, score, passed, badgeID, s.counts, now)
	})
	if err != nil {
		return nil, err
	}
	outcome.Record = rec
	return outcome, nil
}

func (s *FileStore) RecordScenarioResult(scenarioID string, score, maxScore int) (*Record, error) {
	return s.update(func(rec *Record, _ time.Time) {
		applyScenarioResult(rec, scenarioID, score, maxScore)
	})
}

func (s *FileStore) SaveCapstone(partial map[string]any) (*Record, error) {
	return s.update(func(rec *Record, _ time.Time) {
		applyCapstone(rec, partial)
	})
}

func (s *FileStore) ResetProgress() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring progress lock: %w", err)
	}
	defer s.lock.Unlock()

	rec := DefaultRecord()
	if err := s.write(rec, time.Now().UTC()); err != nil {
		return nil, err
	}
	return rec, nil
}

// update runs one read-modify-write cycle under the advisory lock.
func (s *FileStore) update(fn func(rec *Record, now time.Time)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring progress lock: %w", err)
	}
	defer s.lock.Unlock()

	rec := s.read()
	now := time.Now().UTC()
	fn(rec, now)
	if err := s.write(rec, now); err != nil {
		return nil, err
	}
	return rec, nil
}

// read loads the record, substituting the default state when the file is
// missing or unreadable. Corruption is logged rather than propagated so a
// damaged file never takes the whole installation down.
func (s *FileStore) read() *Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("progress file unreadable, starting from defaults", "path", s.path, "error", err)
		}
		return DefaultRecord()
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		slog.Warn("progress file corrupt, starting from defaults", "path", s.path, "error", err)
		return DefaultRecord()
	}
	rec.normalize()
	return rec
}

// write stamps last activity and commits via temp file + rename. Write
// failures propagate: unlike read corruption, a failed persist must be
// visible to the caller.
func (s *FileStore) write(rec *Record, now time.Time) error {
	rec.User.LastActiveAt = &now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp progress file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp progress file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing progress file: %w", err)
	}
	return nil
}
