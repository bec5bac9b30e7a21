package assess

import (
	"fmt"

	"github.com/rmf-academy/course-server/internal/content"
)

// Grade tiers for a completed scenario path, ordered best to worst.
const (
	GradeExcellent        = "excellent"
	GradeGood             = "good"
	GradeSatisfactory     = "satisfactory"
	GradeNeedsImprovement = "needs_improvement"
)

const thresholdUnavailableMessage = "Unable to determine grading thresholds for this scenario."

var gradeMessages = map[string]string{
	GradeExcellent:        "Outstanding! You demonstrated excellent scenario judgment.",
	GradeGood:             "Great choices. You effectively balanced risk and requirements.",
	GradeSatisfactory:     "You made solid progress. Review the scenario carefully to improve further.",
	GradeNeedsImprovement: "Review key AI RMF concepts and try this scenario again.",
}

// StepNotFoundError reports a step id that matches no step in the scenario.
type StepNotFoundError struct {
	StepID string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step not found: %s", e.StepID)
}

// ChoiceOutOfRangeError reports a choice index outside the step's list.
type ChoiceOutOfRangeError struct {
	Index   int
	Choices int
}

func (e *ChoiceOutOfRangeError) Error() string {
	return fmt.Sprintf("choice index %d out of range (%d choices)", e.Index, e.Choices)
}

// MalformedChoiceError reports a content-authoring defect in the chosen
// choice: a non-integer point value or a reference to a nonexistent step.
type MalformedChoiceError struct {
	Reason string
}

func (e *MalformedChoiceError) Error() string {
	return e.Reason
}

// FinalResult is the grade for a completed scenario path.
type FinalResult struct {
	TotalPoints int    `json:"totalPoints"`
	MaxPoints   int    `json:"maxPoints"`
	Grade       string `json:"grade"`
	Message     string `json:"message"`
}

// ChoiceResult is the outcome of one branching-decision step.
type ChoiceResult struct {
	Feedback    string       `json:"feedback"`
	Points      int          `json:"points"`
	NextStepID  string       `json:"nextStepId,omitempty"`
	IsComplete  bool         `json:"isComplete"`
	FinalResult *FinalResult `json:"finalResult,omitempty"`
}

// SubmitChoice evaluates one decision in a scenario. A choice with no next
// step completes the path and produces the final grade; the caller is
// responsible for persisting that result.
func SubmitChoice(sc *content.Scenario, stepID string, choiceIndex, accumulatedPoints int) (*ChoiceResult, error) {
	step, ok := sc.FindStep(stepID)
	if !ok {
		return nil, &StepNotFoundError{StepID: stepID}
	}
	if choiceIndex < 0 || choiceIndex >= len(step.Choices) {
		return nil, &ChoiceOutOfRangeError{Index: choiceIndex, Choices: len(step.Choices)}
	}

	choice := step.Choices[choiceIndex]
	points, ok := intValue(choice.Points)
	if !ok {
		return nil, &MalformedChoiceError{Reason: "choice points must be an integer"}
	}
	if choice.NextStep != "" {
		if _, ok := sc.FindStep(choice.NextStep); !ok {
			return nil, &MalformedChoiceError{
				Reason: fmt.Sprintf("next step %q does not exist", choice.NextStep),
			}
		}
	}

	result := &ChoiceResult{
		Feedback:   choice.Feedback,
		Points:     points,
		NextStepID: choice.NextStep,
		IsComplete: choice.NextStep == "",
	}
	if result.IsComplete {
		final := GradeScenario(accumulatedPoints+points, MaxPoints(sc))
		result.FinalResult = &final
	}
	return result, nil
}

// MaxPoints returns the scenario's authored maximum, or the sum over every
// step of its single highest valid choice value.
func MaxPoints(sc *content.Scenario) int {
	if configured, ok := intValue(sc.MaxPoints); ok {
		return configured
	}

	total := 0
	for _, step := range sc.Steps {
		best, found := 0, false
		for _, choice := range step.Choices {
			points, ok := intValue(choice.Points)
			if !ok {
				continue
			}
			if !found || points > best {
				best, found = points, true
			}
		}
		if found {
			total += best
		}
	}
	return total
}

// GradeScenario maps a completed path's point total onto a grade tier.
func GradeScenario(totalPoints, maxPoints int) FinalResult {
	result := FinalResult{TotalPoints: totalPoints, MaxPoints: maxPoints}

	if maxPoints <= 0 {
		result.Grade = GradeNeedsImprovement
		result.Message = thresholdUnavailableMessage
		return result
	}

	ratio := float64(totalPoints) / float64(maxPoints)
	switch {
	case ratio >= 0.90:
		result.Grade = GradeExcellent
	case ratio >= 0.75:
		result.Grade = GradeGood
	case ratio >= 0.60:
		result.Grade = GradeSatisfactory
	default:
		result.Grade = GradeNeedsImprovement
	}
	result.Message = gradeMessages[result.Grade]
	return result
}
