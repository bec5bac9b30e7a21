package progress

import (
	"sync"
	"time"
)

// QuizOutcome is returned by RecordQuizResult: the updated record plus
// flags for what this particular call changed.
type QuizOutcome struct {
	Record          *Record
	BadgeAdded      bool
	ModuleCompleted bool
}

// Store persists learner state. Every operation is one serialized
// read-modify-write; implementations hold their lock for the full call and
// release it on every exit path. Callers block until the lock is free.
type Store interface {
	GetProgress() (*Record, error)
	SetUserStart() error
	MarkLessonComplete(moduleID, lessonID string) (*Record, error)
	RecordQuizResult(moduleID, quizID string, score int, passed bool, badgeID string) (*QuizOutcome, error)
	RecordScenarioResult(scenarioID string, score, maxScore int) (*Record, error)
	SaveCapstone(partial map[string]any) (*Record, error)
	ResetProgress() (*Record, error)
}

// MemoryStore is an in-process Store for tests and single-process
// embedding. It applies the same transition rules as the durable backends.
type MemoryStore struct {
	mu     sync.Mutex
	rec    *Record
	counts LessonCounter
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(counts LessonCounter) *MemoryStore {
	return &MemoryStore{rec: DefaultRecord(), counts: counts}
}

func (s *MemoryStore) GetProgress() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.clone(), nil
}

func (s *MemoryStore) SetUserStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.User.StartedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	s.rec.User.StartedAt = &now
	s.rec.User.LastActiveAt = &now
	return nil
}

func (s *MemoryStore) MarkLessonComplete(moduleID, lessonID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.touch()
	applyLessonComplete(s.rec, moduleID, lessonID, s.counts, now)
	return s.rec.clone(), nil
}

func (s *MemoryStore) RecordQuizResult(moduleID, quizID string, score int, passed bool, badgeID string) (*QuizOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.touch()
	badgeAdded, completed := applyQuizResult(s.rec, moduleID, score, passed, badgeID, s.counts, now)
	return &QuizOutcome{Record: s.rec.clone(), BadgeAdded: badgeAdded, ModuleCompleted: completed}, nil
}

func (s *MemoryStore) RecordScenarioResult(scenarioID string, score, maxScore int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	applyScenarioResult(s.rec, scenarioID, score, maxScore)
	return s.rec.clone(), nil
}

func (s *MemoryStore) SaveCapstone(partial map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	applyCapstone(s.rec, partial)
	return s.rec.clone(), nil
}

func (s *MemoryStore) ResetProgress() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = DefaultRecord()
	s.touch()
	return s.rec.clone(), nil
}

func (s *MemoryStore) touch() time.Time {
	now := time.Now().UTC()
	s.rec.User.LastActiveAt = &now
	return now
}
