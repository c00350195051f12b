/**
 * Layout disambiguation tests.
 *
 * Exercises the confidence filter, greedy overlap resolution, ambiguity
 * relabeling, gap inference and the determinism guarantee.
 */

package layout

import (
	"errors"
	"reflect"
	"testing"
)

// testConfig disables gap inference so overlap tests see only the
// accepted detections
func testConfig() DisambiguatorConfig {
	return DisambiguatorConfig{
		DetectionThreshold: 0.5,
		OverlapThreshold:   0.5,
		AmbiguityMargin:    0.15,
		MinGapHeight:       1e6,
		MinGapArea:         1e12,
		RowTolerance:       10,
	}
}

func TestDisambiguateOverlapResolution(t *testing.T) {
	// two heavily overlapping boxes: one confident, one below the
	// detection threshold
	d := NewDisambiguator(testConfig())
	detections := []Detection{
		{Box: Box{0, 0, 100, 100}, Label: BlockText, Confidence: 0.95},
		{Box: Box{5, 5, 105, 105}, Label: BlockTitle, Confidence: 0.4},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	if len(pl.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(pl.Regions))
	}

	r := pl.Regions[0]
	if r.Type != BlockText {
		t.Errorf("expected type %s, got %s", BlockText, r.Type)
	}
	if r.Confidence == nil || *r.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", r.Confidence)
	}
}

func TestDisambiguateHighConfidenceWinsConflict(t *testing.T) {
	// both clear the threshold, but they conflict: the higher confidence
	// box survives regardless of input order
	d := NewDisambiguator(testConfig())
	detections := []Detection{
		{Box: Box{5, 5, 105, 105}, Label: BlockTitle, Confidence: 0.6},
		{Box: Box{0, 0, 100, 100}, Label: BlockText, Confidence: 0.95},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	if len(pl.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(pl.Regions))
	}
	if pl.Regions[0].Type != BlockText {
		t.Errorf("expected the 0.95 Text box to win, got %s", pl.Regions[0].Type)
	}
}

func TestDisambiguateNoLayout(t *testing.T) {
	d := NewDisambiguator(testConfig())

	testCases := []struct {
		name       string
		detections []Detection
	}{
		{name: "no detections", detections: nil},
		{
			name: "all below threshold",
			detections: []Detection{
				{Box: Box{0, 0, 100, 100}, Label: BlockText, Confidence: 0.3},
				{Box: Box{0, 200, 100, 300}, Label: BlockTitle, Confidence: 0.49},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pl, err := d.Disambiguate(tc.detections, 0, 1000, 1000)
			if !errors.Is(err, ErrNoLayout) {
				t.Fatalf("expected ErrNoLayout, got %v", err)
			}
			// no layout means no regions, inferred ones included
			if len(pl.Regions) != 0 {
				t.Errorf("expected no regions, got %d", len(pl.Regions))
			}
		})
	}
}

func TestDisambiguateAmbiguityRelabel(t *testing.T) {
	// confidence 0.55 clears the 0.5 threshold but sits inside the 0.15
	// ambiguity margin
	d := NewDisambiguator(testConfig())
	detections := []Detection{
		{Box: Box{0, 0, 100, 100}, Label: BlockTitle, Confidence: 0.55},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	if len(pl.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(pl.Regions))
	}

	r := pl.Regions[0]
	if r.Type != BlockAmbiguous {
		t.Errorf("expected %s, got %s", BlockAmbiguous, r.Type)
	}
	// relabeling keeps the model's confidence
	if r.Confidence == nil || *r.Confidence != 0.55 {
		t.Errorf("expected confidence 0.55 preserved, got %v", r.Confidence)
	}
}

func TestDisambiguateOutputNonOverlapping(t *testing.T) {
	cfg := testConfig()
	d := NewDisambiguator(cfg)

	detections := []Detection{
		{Box: Box{0, 0, 200, 100}, Label: BlockText, Confidence: 0.9},
		{Box: Box{10, 10, 210, 110}, Label: BlockText, Confidence: 0.8},
		{Box: Box{0, 150, 200, 250}, Label: BlockText, Confidence: 0.7},
		{Box: Box{5, 155, 205, 255}, Label: BlockList, Confidence: 0.85},
		{Box: Box{300, 0, 500, 100}, Label: BlockTable, Confidence: 0.6},
		{Box: Box{310, 5, 505, 95}, Label: BlockFigure, Confidence: 0.65},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}

	for i := 0; i < len(pl.Regions); i++ {
		for j := i + 1; j < len(pl.Regions); j++ {
			iou := pl.Regions[i].Box.IoU(pl.Regions[j].Box)
			if iou >= cfg.OverlapThreshold {
				t.Errorf("regions %d and %d overlap with IoU %f >= %f",
					i, j, iou, cfg.OverlapThreshold)
			}
		}
	}
}

func TestDisambiguateDeterministic(t *testing.T) {
	d := NewDisambiguator(testConfig())

	// equal confidences and areas force the index tie-break
	detections := []Detection{
		{Box: Box{0, 0, 100, 100}, Label: BlockText, Confidence: 0.7},
		{Box: Box{10, 10, 110, 110}, Label: BlockTitle, Confidence: 0.7},
		{Box: Box{0, 300, 100, 400}, Label: BlockList, Confidence: 0.7},
	}

	first, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := d.Disambiguate(detections, 0, 1000, 1000)
		if err != nil {
			t.Fatalf("Disambiguate returned error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}

	// index tie-break: the earlier of the two conflicting equal boxes wins
	found := false
	for _, r := range first.Regions {
		if r.Box.X1 == 0 && r.Box.Y1 == 0 {
			found = true
		}
		if r.Box.X1 == 10 {
			t.Errorf("later equal-priority box should have been dropped")
		}
	}
	if !found {
		t.Errorf("earlier equal-priority box missing from output")
	}
}

func TestDisambiguateGapInference(t *testing.T) {
	cfg := testConfig()
	cfg.MinGapHeight = 40
	cfg.MinGapArea = 5000
	d := NewDisambiguator(cfg)

	// one confident box at the top of the page; the rest of the page is
	// an uncovered band
	detections := []Detection{
		{Box: Box{0, 0, 1000, 200}, Label: BlockText, Confidence: 0.9},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	if len(pl.Regions) != 2 {
		t.Fatalf("expected detected + inferred region, got %d", len(pl.Regions))
	}

	inferred := pl.Regions[1]
	if inferred.Type != BlockInferred {
		t.Errorf("expected %s, got %s", BlockInferred, inferred.Type)
	}
	if inferred.Confidence != nil {
		t.Errorf("inferred region must carry no model confidence, got %v", *inferred.Confidence)
	}
	want := Box{0, 200, 1000, 1000}
	if inferred.Box != want {
		t.Errorf("inferred box = %v, want %v", inferred.Box, want)
	}
}

func TestDisambiguateGapBelowFloorsIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.MinGapHeight = 40
	cfg.MinGapArea = 5000
	d := NewDisambiguator(cfg)

	// the uncovered band is only 30px tall, below the height floor
	detections := []Detection{
		{Box: Box{0, 0, 1000, 970}, Label: BlockText, Confidence: 0.9},
	}

	pl, err := d.Disambiguate(detections, 0, 1000, 1000)
	if err != nil {
		t.Fatalf("Disambiguate returned error: %v", err)
	}
	if len(pl.Regions) != 1 {
		t.Fatalf("expected only the detected region, got %d", len(pl.Regions))
	}
}

func TestSortReadingOrder(t *testing.T) {
	regions := []Region{
		{Box: Box{500, 12, 600, 100}, Type: BlockText},
		{Box: Box{0, 300, 100, 400}, Type: BlockText},
		{Box: Box{0, 10, 100, 100}, Type: BlockTitle},
	}

	sorted := sortReadingOrder(regions, 10)

	// row one holds the two top regions ordered left to right, row two
	// the lower region
	if sorted[0].Box.X1 != 0 || sorted[0].Box.Y1 != 10 {
		t.Errorf("first region should be top-left, got %v", sorted[0].Box)
	}
	if sorted[1].Box.X1 != 500 {
		t.Errorf("second region should be top-right, got %v", sorted[1].Box)
	}
	if sorted[2].Box.Y1 != 300 {
		t.Errorf("third region should be the lower row, got %v", sorted[2].Box)
	}
}
