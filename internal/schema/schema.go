// Package schema validates raw AI tool-call payloads before any typed use.
// Model output is untrusted external computation; nothing from it reaches
// scoring arithmetic or the database until it has passed these checks.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gradelab/gradelab-api/internal/models"
)

// ErrInvalidPayload indicates the AI response failed schema or bound validation.
var ErrInvalidPayload = errors.New("ai response failed validation")

const criteriaSchemaText = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "criteria": {
      "type": "array",
      "minItems": 1,
      "maxItems": 50,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1, "maxLength": 64},
          "name": {"type": "string", "minLength": 1, "maxLength": 200},
          "description": {"type": "string", "maxLength": 2000},
          "weight": {"type": "number", "minimum": 0, "maximum": 100},
          "category": {"type": "string", "maxLength": 100}
        },
        "required": ["id", "name", "description", "weight", "category"]
      }
    }
  },
  "required": ["criteria"]
}`

const gradingSchemaText = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "criteria_scores": {
      "type": "array",
      "minItems": 1,
      "maxItems": 50,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "criterion_id": {"type": "string", "minLength": 1, "maxLength": 64},
          "score": {"type": "number", "minimum": 0, "maximum": 100},
          "rationale": {"type": "string", "maxLength": 3000},
          "evidence": {
            "type": "array",
            "maxItems": 3,
            "items": {"type": "string", "maxLength": 1000}
          }
        },
        "required": ["criterion_id", "score", "rationale", "evidence"]
      }
    },
    "strengths": {
      "type": "array",
      "maxItems": 3,
      "items": {"type": "string", "maxLength": 1000}
    },
    "improvements": {
      "type": "array",
      "maxItems": 3,
      "items": {"type": "string", "maxLength": 1000}
    },
    "confidence": {"type": "string", "enum": ["low", "medium", "high"]},
    "flags": {
      "type": "array",
      "maxItems": 10,
      "items": {"type": "string", "maxLength": 500}
    }
  },
  "required": ["criteria_scores", "strengths", "improvements", "confidence"]
}`

var (
	criteriaSchema = jsonschema.MustCompileString("criteria.json", criteriaSchemaText)
	gradingSchema  = jsonschema.MustCompileString("grading.json", gradingSchemaText)
)

type criteriaPayload struct {
	Criteria []models.Criterion `json:"criteria"`
}

// GradingPayload is the validated, typed form of a grading tool-call response.
type GradingPayload struct {
	CriteriaScores []models.CriterionScore `json:"criteria_scores"`
	Strengths      []string                `json:"strengths"`
	Improvements   []string                `json:"improvements"`
	Confidence     string                  `json:"confidence"`
	Flags          []string                `json:"flags"`
}

func validateRaw(schema *jsonschema.Schema, raw json.RawMessage) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("%w: malformed json: %v", ErrInvalidPayload, err)
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return nil
}

// ValidateCriteria checks a criteria-extraction payload and returns the typed
// criteria list. Duplicate criterion ids are rejected.
func ValidateCriteria(raw json.RawMessage) ([]models.Criterion, error) {
	if err := validateRaw(criteriaSchema, raw); err != nil {
		return nil, err
	}

	var payload criteriaPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	seen := make(map[string]struct{}, len(payload.Criteria))
	for _, criterion := range payload.Criteria {
		if _, dup := seen[criterion.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate criterion id %q", ErrInvalidPayload, criterion.ID)
		}
		seen[criterion.ID] = struct{}{}
	}

	return payload.Criteria, nil
}

// ValidateGrading checks a grading payload against the schema and against the
// selected criteria: every scored criterion must be one of the selected ids,
// appear at most once, and carry a score within [0, weight].
func ValidateGrading(raw json.RawMessage, selected []models.Criterion) (GradingPayload, error) {
	if err := validateRaw(gradingSchema, raw); err != nil {
		return GradingPayload{}, err
	}

	var payload GradingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return GradingPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	weights := make(map[string]float64, len(selected))
	for _, criterion := range selected {
		weights[criterion.ID] = criterion.Weight
	}

	seen := make(map[string]struct{}, len(payload.CriteriaScores))
	for _, score := range payload.CriteriaScores {
		weight, known := weights[score.CriterionID]
		if !known {
			return GradingPayload{}, fmt.Errorf("%w: score for unknown criterion %q", ErrInvalidPayload, score.CriterionID)
		}
		if _, dup := seen[score.CriterionID]; dup {
			return GradingPayload{}, fmt.Errorf("%w: duplicate score for criterion %q", ErrInvalidPayload, score.CriterionID)
		}
		seen[score.CriterionID] = struct{}{}

		if score.Score < 0 || score.Score > weight {
			return GradingPayload{}, fmt.Errorf("%w: score %g outside [0, %g] for criterion %q",
				ErrInvalidPayload, score.Score, weight, score.CriterionID)
		}
	}

	return payload, nil
}
