package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradelab",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI requests",
	}, []string{"operation", "model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradelab",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI requests",
	}, []string{"operation", "model"})
)

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey          string
	ExtractionModel string
	GradingModel    string
	VisionModel     string
	MaxTokens       int
	Temperature     float32
	Logger          zerolog.Logger
}

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = "gpt-4o-mini"
	}

	if cfg.GradingModel == "" {
		cfg.GradingModel = "gpt-4o"
	}

	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	tracer := otel.Tracer("github.com/gradelab/gradelab-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// ExtractCriteria asks the model to read a rubric document and emit its
// grading criteria through a forced tool call, returning the raw arguments.
func (c *OpenAIClient) ExtractCriteria(ctx context.Context, input ExtractionInput) (json.RawMessage, error) {
	request := openai.ChatCompletionRequest{
		Model:     c.cfg.ExtractionModel,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildExtractionPrompt(input)},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        criteriaToolName,
				Description: "Record the grading criteria found in the rubric document.",
				Parameters:  json.RawMessage(criteriaToolSchema),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: criteriaToolName},
		},
	}

	return c.structuredCall(ctx, "extract_criteria", c.cfg.ExtractionModel, request, criteriaToolName)
}

// Grade asks the model to score a submission against the selected criteria
// through a forced tool call, returning the raw arguments.
func (c *OpenAIClient) Grade(ctx context.Context, input GradingInput) (json.RawMessage, error) {
	request := openai.ChatCompletionRequest{
		Model:     c.cfg.GradingModel,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gradingSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildGradingPrompt(input)},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        gradingToolName,
				Description: "Record the structured grading outcome for the submission.",
				Parameters:  json.RawMessage(gradingToolSchema),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: gradingToolName},
		},
	}

	return c.structuredCall(ctx, "grade", c.cfg.GradingModel, request, gradingToolName)
}

// Transcribe sends the document bytes to the vision model and returns its
// verbatim transcription.
func (c *OpenAIClient) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "openai.transcribe", trace.WithAttributes(
		attribute.String("model", c.cfg.VisionModel),
		attribute.Int("document_bytes", len(data)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:     c.cfg.VisionModel,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Transcribe all text in this document verbatim. Do not summarize, interpret, or omit anything; output the text content only.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: encodeDataURL(data, mimeType)},
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues("transcribe", c.cfg.VisionModel).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues("transcribe", c.cfg.VisionModel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", mapAPIError(err, "openai transcribe")
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues("transcribe", c.cfg.VisionModel).Inc()
		span.SetStatus(codes.Error, "no choices")
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) structuredCall(ctx context.Context, operation, model string, request openai.ChatCompletionRequest, toolName string) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "openai."+operation, trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(operation, model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(operation, model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapAPIError(err, "openai "+operation)
	}

	arguments, err := toolCallArguments(resp, toolName)
	if err != nil {
		aiFailures.WithLabelValues(operation, model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return arguments, nil
}

func toolCallArguments(resp openai.ChatCompletionResponse, toolName string) (json.RawMessage, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == toolName {
			if strings.TrimSpace(call.Function.Arguments) == "" {
				return nil, ErrEmptyResponse
			}
			return json.RawMessage(call.Function.Arguments), nil
		}
	}

	return nil, fmt.Errorf("%w: expected tool call %s", ErrEmptyResponse, toolName)
}

// mapAPIError translates vendor errors into the sentinels callers dispatch on,
// keeping retry-soon (429) distinguishable from billing failures (402).
func mapAPIError(err error, operation string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		switch {
		case apiErr.HTTPStatusCode == 402 || code == "insufficient_quota":
			return fmt.Errorf("%s: %w", operation, ErrQuotaExceeded)
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%s: %w", operation, ErrRateLimited)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

const dataURLChunkSize = 48 * 1024 // multiple of 3 so chunk boundaries never split a base64 group

// encodeDataURL base64-encodes the document in bounded chunks before wrapping
// it as a data URL. Encoding the whole buffer through a single conversion can
// blow argument-length limits on very large files.
func encodeDataURL(data []byte, mimeType string) string {
	var builder strings.Builder
	builder.Grow(len(data)*4/3 + len(mimeType) + 32)
	builder.WriteString("data:")
	builder.WriteString(mimeType)
	builder.WriteString(";base64,")

	for start := 0; start < len(data); start += dataURLChunkSize {
		end := start + dataURLChunkSize
		if end > len(data) {
			end = len(data)
		}
		builder.WriteString(base64.StdEncoding.EncodeToString(data[start:end]))
	}

	return builder.String()
}
