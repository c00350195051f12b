package layout

import (
	"testing"
)

func TestPostProcessMergesStackedFragments(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())

	// two Text fragments stacked with a 10px gap, well aligned
	pl := PageLayout{
		PageNumber: 0,
		Width:      1000,
		Height:     1000,
		Regions: []Region{
			{Box: Box{100, 100, 500, 200}, Type: BlockText, Confidence: confidence(0.9)},
			{Box: Box{105, 210, 495, 300}, Type: BlockText, Confidence: confidence(0.7)},
		},
	}

	out := p.Process(pl)
	if len(out.Regions) != 1 {
		t.Fatalf("expected 1 merged region, got %d", len(out.Regions))
	}

	r := out.Regions[0]
	want := Box{100, 100, 500, 300}
	if r.Box != want {
		t.Errorf("merged box = %v, want %v", r.Box, want)
	}
	// merging keeps the lower confidence
	if r.Confidence == nil || *r.Confidence != 0.7 {
		t.Errorf("merged confidence = %v, want 0.7", r.Confidence)
	}
}

func TestPostProcessDoesNotMergeDifferentTypes(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())

	pl := PageLayout{
		Width:  1000,
		Height: 1000,
		Regions: []Region{
			{Box: Box{100, 100, 500, 200}, Type: BlockTitle, Confidence: confidence(0.9)},
			{Box: Box{100, 210, 500, 300}, Type: BlockText, Confidence: confidence(0.8)},
		},
	}

	out := p.Process(pl)
	if len(out.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(out.Regions))
	}
}

func TestPostProcessDoesNotMergeAcrossWideGaps(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())

	pl := PageLayout{
		Width:  1000,
		Height: 1000,
		Regions: []Region{
			{Box: Box{100, 100, 500, 200}, Type: BlockText, Confidence: confidence(0.9)},
			{Box: Box{100, 400, 500, 500}, Type: BlockText, Confidence: confidence(0.8)},
		},
	}

	out := p.Process(pl)
	if len(out.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(out.Regions))
	}
}

func TestPostProcessMergePropagatesNilConfidence(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())

	pl := PageLayout{
		Width:  1000,
		Height: 1000,
		Regions: []Region{
			{Box: Box{100, 100, 500, 200}, Type: BlockInferred, Confidence: nil},
			{Box: Box{100, 210, 500, 300}, Type: BlockInferred, Confidence: confidence(0.8)},
		},
	}

	out := p.Process(pl)
	if len(out.Regions) != 1 {
		t.Fatalf("expected 1 merged region, got %d", len(out.Regions))
	}
	if out.Regions[0].Confidence != nil {
		t.Errorf("merging with an inferred region must not invent confidence")
	}
}

func TestPostProcessDropsDegenerateRegions(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())

	pl := PageLayout{
		Width:  1000,
		Height: 1000,
		Regions: []Region{
			// a sliver and a dot, both noise
			{Box: Box{100, 100, 110, 500}, Type: BlockText, Confidence: confidence(0.9)},
			{Box: Box{600, 600, 612, 608}, Type: BlockText, Confidence: confidence(0.9)},
			// a real block
			{Box: Box{100, 600, 500, 700}, Type: BlockText, Confidence: confidence(0.9)},
		},
	}

	out := p.Process(pl)
	if len(out.Regions) != 1 {
		t.Fatalf("expected 1 surviving region, got %d", len(out.Regions))
	}
	if out.Regions[0].Box.Y1 != 600 {
		t.Errorf("wrong region survived: %v", out.Regions[0].Box)
	}
}

func TestPostProcessEmptyLayoutIsValid(t *testing.T) {
	p := NewPostProcessor(DefaultPostProcessorConfig())
	out := p.Process(PageLayout{Width: 1000, Height: 1000})
	if len(out.Regions) != 0 {
		t.Fatalf("expected no regions, got %d", len(out.Regions))
	}
}
