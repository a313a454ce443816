package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

const docxBodyEntry = "word/document.xml"

// extractDocx pulls the body XML out of the docx zip archive and strips it
// down to plain text. Paragraph-closing tags become newlines before tags are
// stripped so paragraph breaks survive.
func extractDocx(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var body []byte
	for _, file := range reader.File {
		if file.Name != docxBodyEntry {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}
		break
	}

	if body == nil {
		return "", fmt.Errorf("docx archive has no %s entry", docxBodyEntry)
	}

	text := strings.ReplaceAll(string(body), "</w:p>", "\n")
	text = stripTags(text)

	return collapseSpaces(text), nil
}

// stripTags removes every XML tag, keeping only character data.
func stripTags(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))

	inTag := false
	for _, r := range input {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// collapseSpaces reduces runs of spaces and tabs to a single space while
// preserving the newlines introduced for paragraph breaks.
func collapseSpaces(input string) string {
	lines := strings.Split(input, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed != "" {
			out = append(out, collapsed)
		}
	}

	return strings.Join(out, "\n")
}
