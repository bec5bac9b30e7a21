// Package content loads and caches the course-content documents: modules,
// quizzes, scenarios, per-module lessons, glossary and capstone. Documents
// are read once, schema-validated, and served from memory; Reload re-reads
// the directory for tests and content updates.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Content error taxonomy. ErrNotFound covers absent documents and unknown
// ids; ErrMalformed covers unparseable or schema-invalid documents.
var (
	ErrNotFound  = errors.New("content not found")
	ErrMalformed = errors.New("content malformed")
)

var moduleIDPattern = regexp.MustCompile(`^module-(\d+)$`)

// Answer-key fields stripped from quizzes before client delivery.
var answerKeyFields = []string{"correctIndex", "correctAnswer", "correctIndices", "explanation"}

// Repository serves course content loaded from a directory. Documents may
// be authored as .json or .yaml; both decode to the same shapes.
type Repository struct {
	dir string

	mu           sync.RWMutex
	modulesDoc   map[string]any
	modules      map[string]Module
	quizzes      map[string]*Quiz
	rawQuizzes   map[string]map[string]any
	scenarios    map[string]*Scenario
	scenarioDocs map[string]map[string]any
	lessonDocs   map[int]map[string]any
	glossary     map[string]any
	capstone     map[string]any
}

// New creates a repository and loads all content from dir.
func New(dir string) (*Repository, error) {
	r := &Repository{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("loading course content: %w", err)
	}
	return r, nil
}

// Reload re-reads every document from the content directory. The previous
// snapshot stays in place if loading fails.
func (r *Repository) Reload() error {
	snap, err := loadAll(r.dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.modulesDoc = snap.modulesDoc
	r.modules = snap.modules
	r.quizzes = snap.quizzes
	r.rawQuizzes = snap.rawQuizzes
	r.scenarios = snap.scenarios
	r.scenarioDocs = snap.scenarioDocs
	r.lessonDocs = snap.lessonDocs
	r.glossary = snap.glossary
	r.capstone = snap.capstone
	r.mu.Unlock()

	slog.Info("course content loaded",
		"modules", len(snap.modules),
		"quizzes", len(snap.quizzes),
		"scenarios", len(snap.scenarios),
		"lesson_docs", len(snap.lessonDocs),
	)
	return nil
}

// ModulesDocument returns the raw modules document for client delivery.
func (r *Repository) ModulesDocument() (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.modulesDoc == nil {
		return nil, fmt.Errorf("%w: modules document", ErrNotFound)
	}
	return r.modulesDoc, nil
}

// ModuleBadge returns the badge for a module, if the module declares one.
func (r *Repository) ModuleBadge(moduleID string) (Badge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[moduleID]
	if !ok || m.Badge.ID == "" {
		return Badge{}, false
	}
	return m.Badge, true
}

// Quiz returns the typed grading view of a quiz.
func (r *Repository) Quiz(quizID string) (*Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quizzes[quizID]
	if !ok {
		return nil, fmt.Errorf("%w: quiz %q", ErrNotFound, quizID)
	}
	return q, nil
}

// SanitizedQuiz returns a copy of the raw quiz document with every
// answer-key field removed from its questions.
func (r *Repository) SanitizedQuiz(quizID string) (map[string]any, error) {
	r.mu.RLock()
	raw, ok := r.rawQuizzes[quizID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: quiz %q", ErrNotFound, quizID)
	}

	sanitized := copyValue(raw).(map[string]any)
	questions, _ := sanitized["questions"].([]any)
	for _, q := range questions {
		qm, ok := q.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range answerKeyFields {
			delete(qm, field)
		}
	}
	return sanitized, nil
}

// Scenario returns the typed view of a scenario graph.
func (r *Repository) Scenario(scenarioID string) (*Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenarios[scenarioID]
	if !ok {
		return nil, fmt.Errorf("%w: scenario %q", ErrNotFound, scenarioID)
	}
	return s, nil
}

// ScenarioDocument returns the raw scenario object for client delivery.
func (r *Repository) ScenarioDocument(scenarioID string) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.scenarioDocs[scenarioID]
	if !ok {
		return nil, fmt.Errorf("%w: scenario %q", ErrNotFound, scenarioID)
	}
	return doc, nil
}

// LessonCount reports the total number of lessons authored for a module.
// The second return is false when the module id does not follow the
// module-N convention or no lessons document exists for it.
func (r *Repository) LessonCount(moduleID string) (int, bool) {
	n, ok := moduleNumber(moduleID)
	if !ok {
		return 0, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.lessonDocs[n]
	if !ok {
		return 0, false
	}
	lessons, _ := doc["lessons"].([]any)
	return len(lessons), true
}

// ModuleLessons returns the raw lessons document for a module.
func (r *Repository) ModuleLessons(moduleID string) (map[string]any, error) {
	n, ok := moduleNumber(moduleID)
	if !ok {
		return nil, fmt.Errorf("%w: invalid module id %q", ErrNotFound, moduleID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.lessonDocs[n]
	if !ok {
		return nil, fmt.Errorf("%w: lessons for module %q", ErrNotFound, moduleID)
	}
	return doc, nil
}

// Glossary returns the raw glossary document.
func (r *Repository) Glossary() (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.glossary == nil {
		return nil, fmt.Errorf("%w: glossary document", ErrNotFound)
	}
	return r.glossary, nil
}

// Capstone returns the raw capstone exercise document.
func (r *Repository) Capstone() (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.capstone == nil {
		return nil, fmt.Errorf("%w: capstone document", ErrNotFound)
	}
	return r.capstone, nil
}

func moduleNumber(moduleID string) (int, bool) {
	m := moduleIDPattern.FindStringSubmatch(moduleID)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// snapshot holds one fully-loaded content set, swapped in atomically.
type snapshot struct {
	modulesDoc   map[string]any
	modules      map[string]Module
	quizzes      map[string]*Quiz
	rawQuizzes   map[string]map[string]any
	scenarios    map[string]*Scenario
	scenarioDocs map[string]map[string]any
	lessonDocs   map[int]map[string]any
	glossary     map[string]any
	capstone     map[string]any
}

func loadAll(dir string) (*snapshot, error) {
	snap := &snapshot{
		modules:      map[string]Module{},
		quizzes:      map[string]*Quiz{},
		rawQuizzes:   map[string]map[string]any{},
		scenarios:    map[string]*Scenario{},
		scenarioDocs: map[string]map[string]any{},
		lessonDocs:   map[int]map[string]any{},
	}

	if err := snap.loadModules(dir); err != nil {
		return nil, err
	}
	if err := snap.loadQuizzes(dir); err != nil {
		return nil, err
	}
	if err := snap.loadScenarios(dir); err != nil {
		return nil, err
	}
	if err := snap.loadLessons(dir); err != nil {
		return nil, err
	}

	var err error
	if snap.glossary, err = loadOptionalObject(dir, "glossary", glossarySchema); err != nil {
		return nil, err
	}
	if snap.capstone, err = loadOptionalObject(dir, "capstone", capstoneSchema); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *snapshot) loadModules(dir string) error {
	doc, err := loadOptionalObject(dir, "modules", modulesSchema)
	if err != nil || doc == nil {
		return err
	}
	s.modulesDoc = doc

	list, _ := doc["modules"].([]any)
	for _, entry := range list {
		em, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id, _ := em["id"].(string)
		m := Module{ID: id}
		m.Title, _ = em["title"].(string)
		if bm, ok := em["badge"].(map[string]any); ok {
			m.Badge.ID, _ = bm["id"].(string)
			m.Badge.Name, _ = bm["name"].(string)
			m.Badge.Emoji, _ = bm["emoji"].(string)
		}
		s.modules[id] = m
	}
	return nil
}

func (s *snapshot) loadQuizzes(dir string) error {
	doc, err := loadOptionalObject(dir, "quizzes", quizzesSchema)
	if err != nil || doc == nil {
		return err
	}

	quizzes, _ := doc["quizzes"].(map[string]any)
	for id, raw := range quizzes {
		qm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s.rawQuizzes[id] = qm
		s.quizzes[id] = buildQuiz(id, qm)
	}
	return nil
}

func buildQuiz(id string, raw map[string]any) *Quiz {
	q := &Quiz{ID: id, PassingScore: normalizePassingScore(raw["passingScore"])}

	questions, _ := raw["questions"].([]any)
	for _, entry := range questions {
		qm, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		question := Question{
			CorrectIndex:   qm["correctIndex"],
			CorrectAnswer:  qm["correctAnswer"],
			CorrectIndices: qm["correctIndices"],
		}
		question.ID, _ = qm["id"].(string)
		question.Type, _ = qm["type"].(string)
		question.Explanation, _ = qm["explanation"].(string)
		q.Questions = append(q.Questions, question)
	}
	return q
}

// DefaultPassingScore is the percentage threshold used when a quiz does
// not declare its own.
const DefaultPassingScore = 70

func normalizePassingScore(v any) int {
	switch n := v.(type) {
	case bool:
		return DefaultPassingScore
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return DefaultPassingScore
	}
}

// loadScenarios accepts every authored form: a list of scenarios, a map
// keyed by id, a wrapper object with a "scenarios" list or map, or a single
// scenario object.
func (s *snapshot) loadScenarios(dir string) error {
	doc, found, err := loadDocument(dir, "scenarios")
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	entries, err := normalizeScenarioEntries(doc)
	if err != nil {
		return err
	}

	schema, err := compileSchema(scenarioSchema)
	if err != nil {
		return fmt.Errorf("compiling scenario schema: %w", err)
	}

	for _, entry := range entries {
		if err := validateDocument(schema, entry, "scenario"); err != nil {
			return err
		}
		id, _ := entry["id"].(string)
		s.scenarioDocs[id] = entry
		s.scenarios[id] = buildScenario(id, entry)
	}
	return nil
}

func normalizeScenarioEntries(doc any) ([]map[string]any, error) {
	collect := func(list []any) []map[string]any {
		var out []map[string]any
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}

	switch v := doc.(type) {
	case []any:
		return collect(v), nil
	case map[string]any:
		if inner, ok := v["scenarios"]; ok {
			switch iv := inner.(type) {
			case []any:
				return collect(iv), nil
			case map[string]any:
				var out []map[string]any
				for _, item := range iv {
					if m, ok := item.(map[string]any); ok {
						out = append(out, m)
					}
				}
				return out, nil
			}
		}
		// Single scenario object.
		if _, ok := v["id"].(string); ok {
			return []map[string]any{v}, nil
		}
		// Map keyed by scenario id.
		var out []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: scenarios document must be a list or object", ErrMalformed)
	}
}

func buildScenario(id string, raw map[string]any) *Scenario {
	sc := &Scenario{ID: id, MaxPoints: raw["maxPoints"]}

	steps, _ := raw["steps"].([]any)
	for _, entry := range steps {
		sm, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		step := Step{}
		step.ID, _ = sm["id"].(string)

		choices, _ := sm["choices"].([]any)
		for _, c := range choices {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			choice := Choice{Points: cm["points"]}
			choice.Feedback, _ = cm["feedback"].(string)
			if next, ok := cm["nextStep"].(string); ok {
				choice.NextStep = next
			} else if next, ok := cm["nextStepId"].(string); ok {
				choice.NextStep = next
			}
			step.Choices = append(step.Choices, choice)
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc
}

func (s *snapshot) loadLessons(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: content directory %s", ErrNotFound, dir)
		}
		return fmt.Errorf("reading content directory: %w", err)
	}

	lessonName := regexp.MustCompile(`^module(\d+)_lessons\.(json|ya?ml)$`)
	for _, entry := range entries {
		m := lessonName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		doc, err := decodeFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		obj, ok := doc.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is not an object", ErrMalformed, entry.Name())
		}

		schema, err := compileSchema(lessonsSchema)
		if err != nil {
			return fmt.Errorf("compiling lessons schema: %w", err)
		}
		if err := validateDocument(schema, obj, entry.Name()); err != nil {
			return err
		}
		s.lessonDocs[n] = obj
	}
	return nil
}

// loadOptionalObject loads and validates a named document, returning nil
// without error when no file exists for it.
func loadOptionalObject(dir, name, schemaRaw string) (map[string]any, error) {
	doc, found, err := loadDocument(dir, name)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Warn("content document missing", "document", name, "dir", dir)
		return nil, nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s document is not an object", ErrMalformed, name)
	}

	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", name, err)
	}
	if err := validateDocument(schema, obj, name); err != nil {
		return nil, err
	}
	return obj, nil
}

// loadDocument tries name.json, name.yaml and name.yml in order.
func loadDocument(dir, name string) (any, bool, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := decodeFile(path)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}
	return nil, false, nil
}

func decodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc any
	if filepath.Ext(path) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON in %s: %v", ErrMalformed, filepath.Base(path), err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML in %s: %v", ErrMalformed, filepath.Base(path), err)
	}
	return normalizeYAML(doc), nil
}

// normalizeYAML rewrites yaml.v3 map[any]any trees into the map[string]any
// shape the rest of the package works with.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// copyValue deep-copies decoded document data so callers can mutate their
// copy without touching the cache.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
