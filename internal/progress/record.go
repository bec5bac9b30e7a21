// Package progress is the durable keeper of learner state. A single
// Record per installation tracks modules, scenarios, badges and the
// capstone exercise; every mutation runs as one serialized
// read-modify-write against the chosen backend.
package progress

import "time"

// Module status values. Status is derived from lesson and quiz state,
// never set directly by callers.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// DefaultDifficulty is the difficulty a fresh record starts with.
const DefaultDifficulty = "beginner"

// UserState holds installation-level learner fields. StartedAt is set
// exactly once, on the first mutating action.
type UserState struct {
	StartedAt    *time.Time `json:"startedAt"`
	LastActiveAt *time.Time `json:"lastActiveAt"`
	Difficulty   string     `json:"difficulty"`
}

// ModuleProgress tracks one module's lessons and quiz outcomes.
type ModuleProgress struct {
	Status           string     `json:"status"`
	LessonsCompleted []string   `json:"lessonsCompleted"`
	QuizScore        *int       `json:"quizScore"`
	QuizPassed       bool       `json:"quizPassed"`
	QuizAttempts     int        `json:"quizAttempts"`
	BadgeEarned      bool       `json:"badgeEarned"`
	CompletedAt      *time.Time `json:"completedAt"`
}

// ScenarioResult is the stored outcome of a completed scenario
// playthrough, overwritten on each run.
type ScenarioResult struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
}

// Capstone holds the free-form capstone exercise state; saves are
// shallow-merged into it.
type Capstone map[string]any

// Record is the root of all persisted learner state.
type Record struct {
	User             UserState                 `json:"user"`
	Modules          map[string]*ModuleProgress `json:"modules"`
	Scenarios        map[string]ScenarioResult  `json:"scenarios"`
	Capstone         Capstone                   `json:"capstone"`
	Badges           []string                   `json:"badges"`
	TotalTimeMinutes int                        `json:"totalTimeMinutes"`
}

// DefaultRecord returns the empty state a fresh installation starts with.
func DefaultRecord() *Record {
	return &Record{
		User:      UserState{Difficulty: DefaultDifficulty},
		Modules:   map[string]*ModuleProgress{},
		Scenarios: map[string]ScenarioResult{},
		Capstone: Capstone{
			"started":        false,
			"currentStep":    nil,
			"selectedSystem": nil,
			"responses":      map[string]any{},
		},
		Badges: []string{},
	}
}

func defaultModuleProgress() *ModuleProgress {
	return &ModuleProgress{
		Status:           StatusNotStarted,
		LessonsCompleted: []string{},
	}
}

// normalize repairs nil collections after decoding so mutations never hit
// a nil map.
func (r *Record) normalize() {
	if r.User.Difficulty == "" {
		r.User.Difficulty = DefaultDifficulty
	}
	if r.Modules == nil {
		r.Modules = map[string]*ModuleProgress{}
	}
	for _, mp := range r.Modules {
		if mp.LessonsCompleted == nil {
			mp.LessonsCompleted = []string{}
		}
		if mp.Status == "" {
			mp.Status = StatusNotStarted
		}
	}
	if r.Scenarios == nil {
		r.Scenarios = map[string]ScenarioResult{}
	}
	if r.Capstone == nil {
		r.Capstone = DefaultRecord().Capstone
	}
	if r.Badges == nil {
		r.Badges = []string{}
	}
}

func (r *Record) ensureModule(moduleID string) *ModuleProgress {
	mp, ok := r.Modules[moduleID]
	if !ok {
		mp = defaultModuleProgress()
		r.Modules[moduleID] = mp
	}
	return mp
}

// clone deep-copies the record so stores can hand out snapshots without
// exposing shared mutable state.
func (r *Record) clone() *Record {
	out := &Record{
		User:             r.User,
		Modules:          make(map[string]*ModuleProgress, len(r.Modules)),
		Scenarios:        make(map[string]ScenarioResult, len(r.Scenarios)),
		Capstone:         cloneMap(r.Capstone),
		Badges:           append([]string{}, r.Badges...),
		TotalTimeMinutes: r.TotalTimeMinutes,
	}
	for id, mp := range r.Modules {
		copied := *mp
		copied.LessonsCompleted = append([]string{}, mp.LessonsCompleted...)
		if mp.QuizScore != nil {
			score := *mp.QuizScore
			copied.QuizScore = &score
		}
		if mp.CompletedAt != nil {
			at := *mp.CompletedAt
			copied.CompletedAt = &at
		}
		out.Modules[id] = &copied
	}
	for id, sr := range r.Scenarios {
		out.Scenarios[id] = sr
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			out[k] = append([]any{}, t...)
		default:
			out[k] = v
		}
	}
	return out
}
