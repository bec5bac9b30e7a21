package content

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Document schemas enforced at load time. Validation happens once here so
// the grading code downstream works on known shapes instead of re-checking
// types on every request.
const (
	modulesSchema = `{
		"type": "object",
		"required": ["modules"],
		"properties": {
			"modules": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"badge": {
							"type": "object",
							"required": ["id"],
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"name": {"type": "string"},
								"emoji": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}`

	quizzesSchema = `{
		"type": "object",
		"required": ["quizzes"],
		"properties": {
			"quizzes": {
				"type": "object",
				"additionalProperties": {
					"type": "object",
					"required": ["questions"],
					"properties": {
						"passingScore": {},
						"questions": {
							"type": "array",
							"items": {
								"type": "object",
								"required": ["id", "type"],
								"properties": {
									"id": {"type": "string", "minLength": 1},
									"type": {"type": "string", "minLength": 1},
									"explanation": {"type": "string"}
								}
							}
						}
					}
				}
			}
		}
	}`

	// A single scenario object. The surrounding document may be a list, a
	// keyed map, or a wrapper object; the loader normalizes before
	// validating each entry against this.
	scenarioSchema = `{
		"type": "object",
		"required": ["id", "steps"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"maxPoints": {},
			"steps": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "choices"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"choices": {
							"type": "array",
							"items": {
								"type": "object",
								"required": ["points"],
								"properties": {
									"feedback": {"type": "string"},
									"nextStep": {"type": "string", "minLength": 1},
									"nextStepId": {"type": "string", "minLength": 1}
								}
							}
						}
					}
				}
			}
		}
	}`

	lessonsSchema = `{
		"type": "object",
		"required": ["lessons"],
		"properties": {
			"lessons": {"type": "array"}
		}
	}`

	glossarySchema = `{
		"type": "object",
		"required": ["terms"],
		"properties": {
			"terms": {"type": "array", "items": {"type": "object"}}
		}
	}`

	capstoneSchema = `{"type": "object"}`
)

func compileSchema(raw string) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
}

// validateDocument checks decoded document data against a compiled schema
// and reports every violation in one error.
func validateDocument(schema *gojsonschema.Schema, data any, label string) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: validating %s: %v", ErrMalformed, label, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformed, label, strings.Join(details, "; "))
}
