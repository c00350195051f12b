/**
 * Layout disambiguation.
 *
 * Takes the raw, frequently-overlapping detections for one page and
 * produces a clean, non-overlapping, typed layout:
 *   1. drop detections below the confidence threshold
 *   2. greedy overlap resolution, highest confidence first
 *   3. relabel low-margin survivors as Ambiguous
 *   4. synthesize regions for uncovered page bands the model missed
 */

package layout

import (
	"errors"
	"sort"

	"github.com/docfold/blockparse-worker/internal/logging"
)

// ErrNoLayout signals that no detection survived the confidence filter.
// Non-fatal: the caller skips the page.
var ErrNoLayout = errors.New("no layout found")

// DisambiguatorConfig holds the layout disambiguation tunables
type DisambiguatorConfig struct {
	// DetectionThreshold is the minimum model confidence for a detection
	// to be considered at all
	DetectionThreshold float64
	// OverlapThreshold is the IoU at or above which a lower-priority
	// detection is dropped in favor of an already-accepted one
	OverlapThreshold float64
	// AmbiguityMargin relabels accepted detections with confidence below
	// DetectionThreshold+AmbiguityMargin as Ambiguous: low-margin
	// classifications are unreliable and flagged instead of trusted
	AmbiguityMargin float64
	// MinGapHeight and MinGapArea gate gap inference: uncovered page
	// bands smaller than these floors are ignored as noise
	MinGapHeight float64
	MinGapArea   float64
	// RowTolerance is the vertical slack when grouping regions into rows
	// for reading order
	RowTolerance float64
}

// DefaultDisambiguatorConfig mirrors the thresholds the detection model
// was tuned with
func DefaultDisambiguatorConfig() DisambiguatorConfig {
	return DisambiguatorConfig{
		DetectionThreshold: 0.4,
		OverlapThreshold:   0.7,
		AmbiguityMargin:    0.15,
		MinGapHeight:       40,
		MinGapArea:         5000,
		RowTolerance:       10,
	}
}

// Disambiguator resolves noisy detections into a clean page layout
type Disambiguator struct {
	cfg    DisambiguatorConfig
	logger *logging.Logger
}

// NewDisambiguator creates a disambiguator with the given config
func NewDisambiguator(cfg DisambiguatorConfig) *Disambiguator {
	return &Disambiguator{
		cfg:    cfg,
		logger: logging.NewLogger("LayoutDisambiguator"),
	}
}

// Disambiguate produces the page layout for one page's detections.
// Returns ErrNoLayout when no detection clears the confidence threshold;
// identical input always yields identical output.
func (d *Disambiguator) Disambiguate(detections []Detection, pageNumber int, pageWidth, pageHeight float64) (PageLayout, error) {
	layout := PageLayout{
		PageNumber: pageNumber,
		Width:      pageWidth,
		Height:     pageHeight,
	}

	// Step 1: confidence filter. Keep the original index for the final
	// tie-break so the sort is fully deterministic.
	type candidate struct {
		det   Detection
		index int
	}
	candidates := make([]candidate, 0, len(detections))
	for i, det := range detections {
		if det.Confidence < d.cfg.DetectionThreshold {
			continue
		}
		candidates = append(candidates, candidate{det: det, index: i})
	}

	if len(candidates) == 0 {
		d.logger.Info("No detections above threshold",
			"page", pageNumber,
			"raw", len(detections),
			"threshold", d.cfg.DetectionThreshold)
		return layout, ErrNoLayout
	}

	// Step 2: priority order is confidence desc, then area desc, then
	// original index asc
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.det.Confidence != b.det.Confidence {
			return a.det.Confidence > b.det.Confidence
		}
		if a.det.Box.Area() != b.det.Box.Area() {
			return a.det.Box.Area() > b.det.Box.Area()
		}
		return a.index < b.index
	})

	// Step 3: greedy acceptance; the already-accepted box wins any
	// conflict at or above the overlap threshold. Page-scale inputs are
	// dozens of boxes, so the pairwise scan is fine.
	accepted := make([]Detection, 0, len(candidates))
	for _, c := range candidates {
		conflict := false
		for _, a := range accepted {
			if c.det.Box.IoU(a.Box) >= d.cfg.OverlapThreshold {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c.det)
		}
	}

	// Step 4: survivors that only barely cleared the threshold are
	// relabeled Ambiguous rather than trusted
	regions := make([]Region, 0, len(accepted))
	for _, det := range accepted {
		resolved := det.Label
		if det.Confidence < d.cfg.DetectionThreshold+d.cfg.AmbiguityMargin {
			resolved = BlockAmbiguous
		}
		regions = append(regions, Region{
			Box:        det.Box,
			Type:       resolved,
			Confidence: confidence(det.Confidence),
		})
	}

	// Step 5: recover page bands no accepted box covers. Text in those
	// bands is confirmed later by speculative OCR; textless inferred
	// regions are dropped there.
	gaps := d.inferGapRegions(regions, pageWidth, pageHeight)
	if len(gaps) > 0 {
		d.logger.Debug("Inferred regions from uncovered gaps",
			"page", pageNumber, "count", len(gaps))
		regions = append(regions, gaps...)
	}

	layout.Regions = sortReadingOrder(regions, d.cfg.RowTolerance)

	d.logger.Info("Layout disambiguated",
		"page", pageNumber,
		"raw", len(detections),
		"accepted", len(accepted),
		"inferred", len(gaps))

	return layout, nil
}

// inferGapRegions synthesizes full-width regions for vertical page bands
// not covered by any accepted region. Vertical banding is a deliberate
// approximation of maximal uncovered rectangles: pages read top to bottom,
// and a missed block almost always spans its own band.
func (d *Disambiguator) inferGapRegions(regions []Region, pageWidth, pageHeight float64) []Region {
	if pageWidth <= 0 || pageHeight <= 0 {
		return nil
	}

	type span struct{ y1, y2 float64 }
	covered := make([]span, 0, len(regions))
	for _, r := range regions {
		covered = append(covered, span{maxf(r.Box.Y1, 0), minf(r.Box.Y2, pageHeight)})
	}
	sort.Slice(covered, func(i, j int) bool {
		if covered[i].y1 != covered[j].y1 {
			return covered[i].y1 < covered[j].y1
		}
		return covered[i].y2 < covered[j].y2
	})

	var gaps []Region
	cursor := 0.0
	emit := func(y1, y2 float64) {
		box := Box{X1: 0, Y1: y1, X2: pageWidth, Y2: y2}
		if box.Height() < d.cfg.MinGapHeight || box.Area() < d.cfg.MinGapArea {
			return
		}
		gaps = append(gaps, Region{Box: box, Type: BlockInferred, Confidence: nil})
	}
	for _, s := range covered {
		if s.y1 > cursor {
			emit(cursor, s.y1)
		}
		if s.y2 > cursor {
			cursor = s.y2
		}
	}
	if cursor < pageHeight {
		emit(cursor, pageHeight)
	}

	return gaps
}

// sortReadingOrder orders regions top-to-bottom then left-to-right,
// grouping regions whose tops are within rowTolerance into one row
func sortReadingOrder(regions []Region, rowTolerance float64) []Region {
	out := make([]Region, len(regions))
	copy(out, regions)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Box.Y1 != out[j].Box.Y1 {
			return out[i].Box.Y1 < out[j].Box.Y1
		}
		return out[i].Box.X1 < out[j].Box.X1
	})

	// Walk rows: within a band of rowTolerance from the row's first
	// region, order by X1 instead of Y1.
	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].Box.Y1-out[start].Box.Y1 <= rowTolerance {
			end++
		}
		row := out[start:end]
		sort.SliceStable(row, func(i, j int) bool {
			if row[i].Box.X1 != row[j].Box.X1 {
				return row[i].Box.X1 < row[j].Box.X1
			}
			return row[i].Box.Y1 < row[j].Box.Y1
		})
		start = end
	}

	return out
}
