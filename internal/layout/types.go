package layout

import (
	"context"
	"image"
)

// BlockType is the closed set of region types. The first five come from
// the detection model's label map; the last two are assigned during
// disambiguation. Downstream confidence handling and debug rendering
// switch on this set exhaustively, so it must stay closed.
type BlockType string

const (
	BlockText      BlockType = "Text"
	BlockTitle     BlockType = "Title"
	BlockList      BlockType = "List"
	BlockTable     BlockType = "Table"
	BlockFigure    BlockType = "Figure"
	BlockInferred  BlockType = "Inferred from gaps"
	BlockAmbiguous BlockType = "Ambiguous"
)

// Detection is a raw labeled rectangle from the layout-detection model.
// Immutable once produced; Confidence is in [0,1].
type Detection struct {
	Box        Box
	Label      BlockType
	Confidence float64
}

// Region is a post-disambiguation unit of page layout. Confidence is nil
// for regions inferred from uncovered gaps, which carry no model score.
type Region struct {
	Box        Box
	Type       BlockType
	Confidence *float64
}

// PageLayout is the ordered, mutually non-overlapping set of regions for
// one page, in top-to-bottom then left-to-right reading order.
type PageLayout struct {
	PageNumber int
	Width      float64
	Height     float64
	Regions    []Region
}

// Detector is the external layout-detection model contract. It may return
// an empty list, which callers treat as "no layout found", not an error.
type Detector interface {
	Detect(ctx context.Context, pageImage image.Image) ([]Detection, error)
}

func confidence(v float64) *float64 {
	return &v
}
