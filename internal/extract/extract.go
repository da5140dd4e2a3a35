// Package extract turns uploaded reference files into plain text for chat
// context. OCR, PDF and Word extraction are external concerns; this package
// defines the contract and ships the plain-text implementation.
package extract

import (
	"fmt"
	"os"
	"strings"

	"grudai/internal/logging"
)

// Extraction methods recorded alongside the text.
const (
	MethodText        = "text"
	MethodUnsupported = "unsupported"
	MethodError       = "error"
)

// Result is the extracted text plus the method tag that produced it.
type Result struct {
	Text   string
	Method string
}

// Extractor produces plain text from a stored file.
type Extractor interface {
	Extract(path, mimeType string) Result
}

// PlainText handles text/* and application/json files. Everything else is
// reported as unsupported rather than failed.
type PlainText struct{}

// NewPlainText returns the shipped extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Extract reads the file when its MIME type is textual.
func (e *PlainText) Extract(path, mimeType string) Result {
	if !strings.HasPrefix(mimeType, "text/") && mimeType != "application/json" {
		logging.ExtractDebug("Unsupported mime type for extraction: %s", mimeType)
		return Result{Method: MethodUnsupported}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.Get(logging.CategoryExtract).Error("Text file read failed: %s: %v", path, err)
		return Result{Method: MethodError}
	}

	text := strings.TrimSpace(string(data))
	logging.Extract("Extracted %d chars from %s (%s)", len(text), path, mimeType)
	return Result{Text: text, Method: MethodText}
}

// TruncateForContext bounds text to maxLen characters for chat context.
// The budget is character-based, not tokenizer-aware.
func TruncateForContext(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	return fmt.Sprintf("%s\n\n[... text truncated ...]", text[:maxLen])
}
