package progress

import (
	"slices"
	"time"
)

// LessonCounter reports the total number of lessons authored for a
// module. The content repository satisfies this; stores use it to derive
// module completion.
type LessonCounter interface {
	LessonCount(moduleID string) (int, bool)
}

// applyModuleStatus recomputes a module's derived status. A module is
// completed only when its total lesson count is known and positive, every
// distinct lesson is done, and the quiz has been passed. CompletedAt is
// stamped once on the transition and cleared whenever the module is not
// completed.
func applyModuleStatus(mp *ModuleProgress, lessonCount int, countKnown bool, now time.Time) {
	distinct := map[string]struct{}{}
	for _, id := range mp.LessonsCompleted {
		distinct[id] = struct{}{}
	}

	complete := countKnown && lessonCount > 0 && len(distinct) >= lessonCount && mp.QuizPassed
	if complete {
		mp.Status = StatusCompleted
		if mp.CompletedAt == nil {
			at := now
			mp.CompletedAt = &at
		}
		return
	}

	mp.CompletedAt = nil
	if len(distinct) > 0 || mp.QuizScore != nil || mp.QuizAttempts > 0 {
		mp.Status = StatusInProgress
	} else {
		mp.Status = StatusNotStarted
	}
}

// The apply functions below hold the state-transition rules shared by
// every store backend. Each backend loads the record, applies one of
// these under its lock, and persists the result.

func applyLessonComplete(r *Record, moduleID, lessonID string, counts LessonCounter, now time.Time) {
	mp := r.ensureModule(moduleID)
	if !slices.Contains(mp.LessonsCompleted, lessonID) {
		mp.LessonsCompleted = append(mp.LessonsCompleted, lessonID)
	}
	count, known := counts.LessonCount(moduleID)
	applyModuleStatus(mp, count, known, now)
}

func applyQuizResult(r *Record, moduleID string, score int, passed bool, badgeID string, counts LessonCounter, now time.Time) (badgeAdded, moduleCompleted bool) {
	mp := r.ensureModule(moduleID)

	if mp.QuizScore == nil || score > *mp.QuizScore {
		best := score
		mp.QuizScore = &best
	}
	mp.QuizAttempts++
	mp.QuizPassed = mp.QuizPassed || passed

	if passed && badgeID != "" {
		mp.BadgeEarned = true
		if !slices.Contains(r.Badges, badgeID) {
			r.Badges = append(r.Badges, badgeID)
			badgeAdded = true
		}
	}

	count, known := counts.LessonCount(moduleID)
	applyModuleStatus(mp, count, known, now)
	return badgeAdded, mp.Status == StatusCompleted
}

func applyScenarioResult(r *Record, scenarioID string, score, maxScore int) {
	r.Scenarios[scenarioID] = ScenarioResult{Score: score, MaxScore: maxScore}
}

func applyCapstone(r *Record, partial map[string]any) {
	for k, v := range partial {
		r.Capstone[k] = v
	}
}
