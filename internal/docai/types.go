/**
 * Document-AI backend wire types.
 *
 * Modeled on the layout analysis responses of hosted document
 * intelligence services: full content plus per-page lines and typed
 * paragraphs with bounding polygons.
 */

package docai

import "context"

// AnalyzeResult is the backend's parsed response for one document
type AnalyzeResult struct {
	APIVersion string      `json:"apiVersion,omitempty"`
	ModelID    string      `json:"modelId,omitempty"`
	Content    string      `json:"content"`
	Pages      []Page      `json:"pages"`
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`
}

// Page is a single analyzed page
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Angle      float64 `json:"angle,omitempty"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit,omitempty"`
	Lines      []Line  `json:"lines"`
}

// Line is one recognized line of text with its bounding polygon, given
// as flattened x,y pairs
type Line struct {
	Content string    `json:"content"`
	Polygon []float64 `json:"polygon"`
}

// Paragraph groups lines into a typed unit. Role is empty for body text;
// hosted services use values like "title" and "sectionHeading".
type Paragraph struct {
	Role            string           `json:"role,omitempty"`
	Content         string           `json:"content"`
	BoundingRegions []BoundingRegion `json:"boundingRegions"`
}

// BoundingRegion positions a paragraph on a page
type BoundingRegion struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon"`
}

// Analyzer is the two-endpoint backend contract. The default endpoint is
// fast but size-limited; the large endpoint is slower with higher limits.
// Both analyze the whole document in one call.
type Analyzer interface {
	AnalyzeDefault(ctx context.Context, doc []byte) (*AnalyzeResult, error)
	AnalyzeLarge(ctx context.Context, doc []byte) (*AnalyzeResult, error)
}
