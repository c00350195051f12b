/**
 * Layout post-processing.
 *
 * Turns a disambiguated layout into final OCR-ready regions: merges
 * fragments of the same block type, drops degenerate noise regions, and
 * restores reading order.
 */

package layout

import (
	"github.com/docfold/blockparse-worker/internal/logging"
)

// PostProcessorConfig holds the post-processing tunables
type PostProcessorConfig struct {
	// GapTolerance is the maximum vertical gap between two same-type
	// regions for them to be merged into one block
	GapTolerance float64
	// MinAlignment is the minimum horizontal overlap ratio (relative to
	// the narrower region) required for a vertical merge
	MinAlignment float64
	// MinWidth, MinHeight and MinArea drop degenerate regions as noise
	MinWidth  float64
	MinHeight float64
	MinArea   float64
	// RowTolerance is the vertical slack when restoring reading order
	RowTolerance float64
}

// DefaultPostProcessorConfig returns the floors tuned for 300 DPI pages
func DefaultPostProcessorConfig() PostProcessorConfig {
	return PostProcessorConfig{
		GapTolerance: 20,
		MinAlignment: 0.5,
		MinWidth:     15,
		MinHeight:    10,
		MinArea:      300,
		RowTolerance: 10,
	}
}

// PostProcessor merges, filters and reorders disambiguated regions
type PostProcessor struct {
	cfg    PostProcessorConfig
	logger *logging.Logger
}

// NewPostProcessor creates a post-processor with the given config
func NewPostProcessor(cfg PostProcessorConfig) *PostProcessor {
	return &PostProcessor{
		cfg:    cfg,
		logger: logging.NewLogger("PostProcessor"),
	}
}

// Process returns the final OCR-ready layout. A result with zero regions
// means the page has no extractable content, which is valid.
func (p *PostProcessor) Process(pl PageLayout) PageLayout {
	regions := sortReadingOrder(pl.Regions, p.cfg.RowTolerance)
	regions = p.mergeAdjacent(regions)
	regions = p.dropDegenerate(regions)
	regions = sortReadingOrder(regions, p.cfg.RowTolerance)

	out := pl
	out.Regions = regions

	if len(regions) == 0 {
		p.logger.Info("No extractable content after post-processing",
			"page", pl.PageNumber, "input_regions", len(pl.Regions))
	}

	return out
}

// mergeAdjacent folds vertically stacked same-type regions into one, so a
// paragraph the model split does not fragment into multiple blocks
func (p *PostProcessor) mergeAdjacent(regions []Region) []Region {
	merged := make([]Region, 0, len(regions))

	for _, r := range regions {
		folded := false
		for i := range merged {
			if p.canMerge(merged[i], r) {
				merged[i] = mergeRegions(merged[i], r)
				folded = true
				break
			}
		}
		if !folded {
			merged = append(merged, r)
		}
	}

	return merged
}

func (p *PostProcessor) canMerge(a, b Region) bool {
	if a.Type != b.Type {
		return false
	}

	// vertical gap between the two boxes; negative means they overlap
	gap := maxf(a.Box.Y1, b.Box.Y1) - minf(a.Box.Y2, b.Box.Y2)
	if gap > p.cfg.GapTolerance {
		return false
	}

	// horizontal alignment: the x-ranges must overlap by a fraction of
	// the narrower region's width
	overlap := minf(a.Box.X2, b.Box.X2) - maxf(a.Box.X1, b.Box.X1)
	if overlap <= 0 {
		return false
	}
	narrower := minf(a.Box.Width(), b.Box.Width())
	if narrower <= 0 {
		return false
	}
	return overlap/narrower >= p.cfg.MinAlignment
}

// mergeRegions unions the boxes and keeps the lower confidence of the two,
// so merging never inflates trust in the block's type
func mergeRegions(a, b Region) Region {
	out := Region{
		Box:  a.Box.Union(b.Box),
		Type: a.Type,
	}
	switch {
	case a.Confidence == nil || b.Confidence == nil:
		out.Confidence = nil
	case *a.Confidence <= *b.Confidence:
		out.Confidence = a.Confidence
	default:
		out.Confidence = b.Confidence
	}
	return out
}

func (p *PostProcessor) dropDegenerate(regions []Region) []Region {
	kept := regions[:0:0]
	for _, r := range regions {
		if r.Box.Width() < p.cfg.MinWidth ||
			r.Box.Height() < p.cfg.MinHeight ||
			r.Box.Area() < p.cfg.MinArea {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
