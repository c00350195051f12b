/**
 * Document data model.
 *
 * Wire-compatible with the downstream search/NLP pipeline: field names
 * (text_block_id, md5sum, page_metadata, ...) are part of the JSON
 * contract and must not change.
 */

package document

import (
	"time"

	"github.com/docfold/blockparse-worker/internal/layout"
)

// ContentType identifies the kinds of source documents the parser handles
type ContentType string

const (
	ContentTypeHTML ContentType = "text/html"
	ContentTypePDF  ContentType = "application/pdf"
)

// TextBlock is the final structured unit: recognized text plus position,
// type and language, ready for document assembly. Immutable after
// creation except for language tagging and translation.
type TextBlock struct {
	// Text holds the lines of the block in order
	Text []string `json:"text"`
	// TextBlockID is unique within the document, e.g. "p3_b0" encodes
	// page 3, block 0
	TextBlockID string `json:"text_block_id"`
	// Language is a 2-letter ISO code, empty when unknown
	Language string `json:"language,omitempty"`
	// Type is the resolved block type
	Type layout.BlockType `json:"type"`
	// TypeConfidence is in [0,1]
	TypeConfidence float64 `json:"type_confidence"`
	// Coords is the 4-corner polygon of the block in page pixels,
	// clockwise from the top-left; nil for HTML blocks
	Coords [][2]float64 `json:"coords,omitempty"`
	// PageNumber is zero-based; always 0 for HTML blocks
	PageNumber int `json:"page_number"`
}

// ToString joins the block's lines with spaces
func (b TextBlock) ToString() string {
	out := ""
	for i, line := range b.Text {
		if i > 0 {
			out += " "
		}
		out += trimSpace(line)
	}
	return out
}

// PageMetadata records the dimensions of one parsed page
type PageMetadata struct {
	PageNumber int        `json:"page_number"`
	Dimensions [2]float64 `json:"dimensions"`
}

// PDFData is the PDF-specific portion of a parser output
type PDFData struct {
	PageMetadata []PageMetadata `json:"page_metadata"`
	MD5Sum       string         `json:"md5sum"`
	TextBlocks   []TextBlock    `json:"text_blocks"`
}

// HTMLData is the HTML-specific portion of a parser output
type HTMLData struct {
	DetectedTitle string      `json:"detected_title"`
	DetectedDate  *time.Time  `json:"detected_date"`
	HasValidText  bool        `json:"has_valid_text"`
	TextBlocks    []TextBlock `json:"text_blocks"`
}

// ParserInput describes one document to parse
type ParserInput struct {
	DocumentID          string                 `json:"document_id"`
	DocumentName        string                 `json:"document_name"`
	DocumentDescription string                 `json:"document_description"`
	DocumentURL         string                 `json:"document_url,omitempty"`
	ContentType         ContentType            `json:"document_content_type,omitempty"`
	DocumentSlug        string                 `json:"document_slug"`
	Metadata            map[string]interface{} `json:"document_metadata,omitempty"`
}

// ParserOutput is the per-document result. A document with zero text
// blocks is a valid, not erroneous, output.
type ParserOutput struct {
	DocumentID          string                 `json:"document_id"`
	DocumentName        string                 `json:"document_name"`
	DocumentDescription string                 `json:"document_description"`
	DocumentURL         string                 `json:"document_url,omitempty"`
	ContentType         ContentType            `json:"document_content_type,omitempty"`
	DocumentSlug        string                 `json:"document_slug"`
	Metadata            map[string]interface{} `json:"document_metadata,omitempty"`
	Languages           []string               `json:"languages,omitempty"`
	Translated          bool                   `json:"translated"`
	HTMLData            *HTMLData              `json:"html_data,omitempty"`
	PDFData             *PDFData               `json:"pdf_data,omitempty"`
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
