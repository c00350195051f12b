/**
 * Translation gating and application.
 *
 * The translation API itself is an external collaborator behind the
 * Translator interface; this package decides which documents need
 * translating, into which languages, and applies a translator to every
 * text block of an output.
 */

package translate

import (
	"context"
	"fmt"

	"github.com/docfold/blockparse-worker/internal/document"
)

// Translator is the external translation API contract. Texts translate
// independently; targetLanguage is a 2-letter ISO code.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// ShouldBeTranslated reports whether a parser output is a candidate for
// translation: not already translated and backed by a real source URL
func ShouldBeTranslated(out *document.ParserOutput) bool {
	return !out.Translated && out.DocumentURL != ""
}

// IdentifyTranslationLanguages returns the target languages the document
// is not already in
func IdentifyTranslationLanguages(out *document.ParserOutput, targets []string) []string {
	have := make(map[string]bool, len(out.Languages))
	for _, lang := range out.Languages {
		have[lang] = true
	}

	var missing []string
	for _, target := range targets {
		if !have[target] {
			missing = append(missing, target)
		}
	}
	return missing
}

// TranslateOutput returns a translated copy of the output: document name,
// description and every text block, with languages set to the target and
// the translated flag raised. The original output is not modified.
func TranslateOutput(ctx context.Context, out *document.ParserOutput, target string, tr Translator) (*document.ParserOutput, error) {
	translated := copyOutput(out)

	header, err := tr.Translate(ctx, []string{out.DocumentName, out.DocumentDescription}, target)
	if err != nil {
		return nil, fmt.Errorf("failed to translate document metadata: %w", err)
	}
	if len(header) == 2 {
		translated.DocumentName = header[0]
		translated.DocumentDescription = header[1]
	}

	translateBlocks := func(blocks []document.TextBlock) error {
		for i := range blocks {
			lines, err := tr.Translate(ctx, blocks[i].Text, target)
			if err != nil {
				return fmt.Errorf("failed to translate block %s: %w", blocks[i].TextBlockID, err)
			}
			blocks[i].Text = lines
			blocks[i].Language = target
		}
		return nil
	}

	if translated.HTMLData != nil {
		if err := translateBlocks(translated.HTMLData.TextBlocks); err != nil {
			return nil, err
		}
	}
	if translated.PDFData != nil {
		if err := translateBlocks(translated.PDFData.TextBlocks); err != nil {
			return nil, err
		}
	}

	translated.Languages = []string{target}
	translated.Translated = true

	return translated, nil
}

// copyOutput deep-copies the parts TranslateOutput mutates
func copyOutput(out *document.ParserOutput) *document.ParserOutput {
	cp := *out
	if out.HTMLData != nil {
		data := *out.HTMLData
		data.TextBlocks = copyBlocks(out.HTMLData.TextBlocks)
		cp.HTMLData = &data
	}
	if out.PDFData != nil {
		data := *out.PDFData
		data.TextBlocks = copyBlocks(out.PDFData.TextBlocks)
		cp.PDFData = &data
	}
	return &cp
}

func copyBlocks(blocks []document.TextBlock) []document.TextBlock {
	out := make([]document.TextBlock, len(blocks))
	copy(out, blocks)
	for i := range out {
		text := make([]string, len(out[i].Text))
		copy(text, out[i].Text)
		out[i].Text = text
	}
	return out
}
