package content

import (
	"strings"

	"golang.org/x/text/cases"
)

// SearchGlossary returns glossary terms whose term or definition contains
// the query, compared under Unicode case folding.
func (r *Repository) SearchGlossary(query string) ([]map[string]any, error) {
	doc, err := r.Glossary()
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	if q == "" {
		return []map[string]any{}, nil
	}

	terms, _ := doc["terms"].([]any)
	matches := []map[string]any{}
	for _, entry := range terms {
		tm, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		term, _ := tm["term"].(string)
		definition, _ := tm["definition"].(string)
		if strings.Contains(fold.String(term), q) || strings.Contains(fold.String(definition), q) {
			matches = append(matches, tm)
		}
	}
	return matches, nil
}
