package content

// Module is the typed view of one entry in the modules document.
type Module struct {
	ID    string
	Title string
	Badge Badge
}

// Badge identifies the award granted for passing a module's quiz.
type Badge struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Emoji string `json:"emoji,omitempty"`
}

// Quiz is the typed view of one quiz, used for grading. The raw authored
// document (with prompts, options and so on) is kept separately for serving.
type Quiz struct {
	ID           string
	PassingScore int
	Questions    []Question
}

// Question carries a quiz question's grading key. Answer-key fields keep the
// decoded document value so the grader can reject mistyped keys the same way
// it rejects mistyped submissions.
type Question struct {
	ID             string
	Type           string
	CorrectIndex   any
	CorrectAnswer  any
	CorrectIndices any
	Explanation    string
}

// Scenario is a branching decision exercise: a directed graph of steps.
type Scenario struct {
	ID        string
	MaxPoints any
	Steps     []Step
}

// Step offers an ordered list of choices.
type Step struct {
	ID      string
	Choices []Choice
}

// Choice carries a point value, feedback text and an optional successor.
// An empty NextStep marks the path complete.
type Choice struct {
	Points   any
	Feedback string
	NextStep string
}

// FindStep returns the step with the given id, if any.
func (s *Scenario) FindStep(stepID string) (*Step, bool) {
	for i := range s.Steps {
		if s.Steps[i].ID == stepID {
			return &s.Steps[i], true
		}
	}
	return nil, false
}
