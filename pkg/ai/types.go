package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrRateLimited indicates the AI vendor throttled the request; retry later.
var ErrRateLimited = errors.New("ai provider rate limited the request")

// ErrQuotaExceeded indicates the AI vendor account is out of quota; a billing
// issue rather than a transient condition.
var ErrQuotaExceeded = errors.New("ai provider quota exhausted")

// ErrEmptyResponse indicates the model returned no usable output.
var ErrEmptyResponse = errors.New("ai provider returned an empty response")

// ExtractionInput carries the rubric text for criteria extraction.
type ExtractionInput struct {
	RubricName string
	RubricText string
}

// GradeCriterion describes one criterion the grading prompt enumerates.
type GradeCriterion struct {
	ID          string
	Name        string
	Description string
	Weight      float64
}

// GradingInput carries everything the grading call embeds in its prompt.
type GradingInput struct {
	RubricName     string
	Criteria       []GradeCriterion
	SubmissionText string
}

// Client is the AI surface the pipelines depend on. Structured calls return
// the model's raw tool-call arguments; callers validate that JSON against a
// strict schema before any typed use, so untrusted model output never reaches
// scoring arithmetic unchecked.
type Client interface {
	ExtractCriteria(ctx context.Context, input ExtractionInput) (json.RawMessage, error)
	Grade(ctx context.Context, input GradingInput) (json.RawMessage, error)
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}
