package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/examgen/backend/internal/examerr"
)

// ExtractText reads all of r and returns the plain text of the PDF.
// Returns examerr.ErrNoExtractableText for scanned/image-only files.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	return ExtractTextBytes(b)
}

func ExtractTextBytes(b []byte) (string, error) {
	if len(b) == 0 {
		return "", examerr.ErrNoExtractableText
	}

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", examerr.ErrNoExtractableText
	}
	return text, nil
}
