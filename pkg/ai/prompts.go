package ai

import (
	"fmt"
	"strings"
)

const (
	criteriaToolName = "record_rubric_criteria"
	gradingToolName  = "record_grading_result"
)

// Tool parameter schemas sent with the forced function calls. Bounds here keep
// the model from returning unbounded structures; the service re-validates the
// returned arguments against its own stricter schema before persistence.
const criteriaToolSchema = `{
  "type": "object",
  "properties": {
    "criteria": {
      "type": "array",
      "maxItems": 50,
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string", "maxLength": 64},
          "name": {"type": "string", "maxLength": 200},
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

const gradingToolSchema = `{
  "type": "object",
  "properties": {
    "criteria_scores": {
      "type": "array",
      "maxItems": 50,
      "items": {
        "type": "object",
        "properties": {
          "criterion_id": {"type": "string", "maxLength": 64},
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
      "minItems": 2,
      "maxItems": 3,
      "items": {"type": "string", "maxLength": 1000}
    },
    "improvements": {
      "type": "array",
      "minItems": 2,
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

func extractionSystemPrompt() string {
	return "You are an expert at reading academic grading rubrics. Extract every grading criterion from the document: a short" +
		" stable id, the criterion name, a description of what is being assessed, the point weight, and a category. Use the r" +
		"ubric's own point values for weights."
}

func buildExtractionPrompt(input ExtractionInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Rubric: ")
	builder.WriteString(input.RubricName)
	builder.WriteString("\n\nExtract the grading criteria from the following rubric document.\n\n")
	builder.WriteString(input.RubricText)
	return builder.String()
}

func gradingSystemPrompt() string {
	return "You are an experienced academic grader. Score the submission against each listed criterion. For every criterion:" +
		" assign a numeric score between 0 and the criterion's maximum points, write a rationale that references specific con" +
		"tent from the submission, and quote 2-3 verbatim passages as evidence. Also give 2-3 overall strengths, 2-3 overall " +
		"improvements, and your confidence in this assessment."
}

func buildGradingPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Rubric\n")
	builder.WriteString(input.RubricName)
	builder.WriteString("\n\n## Criteria\n")
	for i, criterion := range input.Criteria {
		builder.WriteString(fmt.Sprintf("%d. %s (max %g points, id: %s)\n   %s\n",
			i+1, criterion.Name, criterion.Weight, criterion.ID, criterion.Description))
	}
	builder.WriteString("\n## Submission\n")
	builder.WriteString(input.SubmissionText)
	return builder.String()
}
