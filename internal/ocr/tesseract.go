/**
 * Tesseract OCR engine.
 *
 * Local, offline implementation of the Engine contract using gosseract.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine is the external OCR contract: given an image crop, return zero
// or more recognized text lines. An empty result is not an error.
type Engine interface {
	Recognize(ctx context.Context, crop image.Image) ([]string, error)
}

// TesseractEngine runs OCR through a local Tesseract installation
type TesseractEngine struct {
	languages []string
}

// NewTesseractEngine creates an engine; languages are Tesseract language
// codes ("eng", "fra", ...), defaulting to English when empty
func NewTesseractEngine(languages []string) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{languages: languages}
}

// Recognize crops are handed to Tesseract as PNG bytes. A fresh client
// per call keeps the engine safe for concurrent use across documents.
func (t *TesseractEngine) Recognize(ctx context.Context, crop image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return splitLines(text), nil
}

// splitLines splits recognized text into trimmed, non-empty lines
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
