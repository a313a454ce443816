package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ErrUnsupportedFileType indicates no extraction strategy exists for the file.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ErrInsufficientContent indicates extraction produced too little text to grade.
// This catches extraction paths that silently yield near-empty output instead
// of failing outright.
var ErrInsufficientContent = errors.New("insufficient text extracted from document")

// Minimum extracted text lengths per document kind.
const (
	MinRubricChars     = 20
	MinSubmissionChars = 50
)

// Character budgets applied by Truncate per document kind.
const (
	MaxRubricChars     = 100_000
	MaxSubmissionChars = 200_000
)

// Kind selects the extraction profile for a document.
type Kind int

const (
	// KindRubric extracts rubric documents: strict extension allow-list.
	KindRubric Kind = iota
	// KindSubmission extracts student papers: unknown binary formats fall
	// back to vision transcription.
	KindSubmission
)

// MinChars returns the minimum acceptable extracted length for the kind.
func (k Kind) MinChars() int {
	if k == KindRubric {
		return MinRubricChars
	}
	return MinSubmissionChars
}

// MaxChars returns the truncation budget for the kind.
func (k Kind) MaxChars() int {
	if k == KindRubric {
		return MaxRubricChars
	}
	return MaxSubmissionChars
}

// Transcriber produces text from a document image using a vision-capable model.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Extractor converts uploaded document bytes into normalized text, dispatching
// on file extension.
type Extractor struct {
	transcriber Transcriber
	logger      zerolog.Logger
}

// New builds an extractor. The transcriber handles PDF and scanned formats.
func New(transcriber Transcriber, logger zerolog.Logger) *Extractor {
	return &Extractor{
		transcriber: transcriber,
		logger:      logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the text content of the document stored under path.
func (e *Extractor) Extract(ctx context.Context, path string, data []byte, kind Kind) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		text string
		err  error
	)

	switch ext {
	case ".txt", ".md":
		text, err = extractPlainText(data)
	case ".docx":
		text, err = extractDocx(data)
	case ".pdf":
		text, err = e.transcribe(ctx, data)
	default:
		if kind != KindSubmission {
			return "", ErrUnsupportedFileType
		}
		// Grading accepts whatever the student uploaded; anything binary
		// goes through the vision model.
		text, err = e.transcribe(ctx, data)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if len(text) < kind.MinChars() {
		e.logger.Warn().Str("path", path).Int("length", len(text)).Msg("extraction produced too little text")
		return "", ErrInsufficientContent
	}

	return text, nil
}

func (e *Extractor) transcribe(ctx context.Context, data []byte) (string, error) {
	if e.transcriber == nil {
		return "", ErrUnsupportedFileType
	}

	mime := mimetype.Detect(data)
	text, err := e.transcriber.Transcribe(ctx, data, mime.String())
	if err != nil {
		return "", fmt.Errorf("vision transcription: %w", err)
	}

	return text, nil
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file is not valid utf-8 text", ErrUnsupportedFileType)
	}

	return string(data), nil
}
