/**
 * OCR block assembly.
 *
 * Binds recognized text to each surviving layout region: crop the page
 * image, run the OCR engine, and emit a positioned TextBlock. Regions
 * that yield no text are dropped silently, so speculative OCR of
 * gap-inferred regions discards the textless ones here.
 */

package ocr

import (
	"context"
	"fmt"
	"image"
	stddraw "image/draw"

	"golang.org/x/image/draw"

	"github.com/docfold/blockparse-worker/internal/document"
	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/logging"
)

// neutralConfidence is assigned to blocks from gap-inferred regions,
// which carry no model score
const neutralConfidence = 0.5

// ProcessorConfig holds OCR assembly tunables
type ProcessorConfig struct {
	// UpscaleBelowHeight upscales crops shorter than this (in pixels)
	// before OCR; small print recognizes poorly at native resolution
	UpscaleBelowHeight int
	// UpscaleFactor is the linear scale applied to small crops
	UpscaleFactor int
}

// DefaultProcessorConfig returns the crop handling defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		UpscaleBelowHeight: 40,
		UpscaleFactor:      2,
	}
}

// Processor converts a page's final regions into text blocks
type Processor struct {
	engine Engine
	cfg    ProcessorConfig
	logger *logging.Logger
}

// NewProcessor creates a processor around an OCR engine
func NewProcessor(engine Engine, cfg ProcessorConfig) *Processor {
	return &Processor{
		engine: engine,
		cfg:    cfg,
		logger: logging.NewLogger("OCRProcessor"),
	}
}

// ProcessLayout runs OCR over the regions in order and returns the page's
// text blocks plus the regions that actually produced text (used for
// debug rendering). Block count is at most the region count.
func (p *Processor) ProcessLayout(ctx context.Context, pageImage image.Image, pl layout.PageLayout) ([]document.TextBlock, []layout.Region, error) {
	blocks := make([]document.TextBlock, 0, len(pl.Regions))
	used := make([]layout.Region, 0, len(pl.Regions))

	for i, region := range pl.Regions {
		crop := cropRegion(pageImage, region.Box)
		if crop == nil {
			continue
		}
		if crop.Bounds().Dy() < p.cfg.UpscaleBelowHeight && p.cfg.UpscaleFactor > 1 {
			crop = upscale(crop, p.cfg.UpscaleFactor)
		}

		lines, err := p.engine.Recognize(ctx, crop)
		if err != nil {
			return nil, nil, fmt.Errorf("OCR failed on page %d region %d: %w", pl.PageNumber, i, err)
		}
		if len(lines) == 0 {
			p.logger.Debug("Region yielded no text, dropping",
				"page", pl.PageNumber, "region", i, "type", region.Type)
			continue
		}

		conf := neutralConfidence
		if region.Confidence != nil {
			conf = *region.Confidence
		}

		blocks = append(blocks, document.TextBlock{
			Text:           lines,
			TextBlockID:    fmt.Sprintf("p%d_b%d", pl.PageNumber, i),
			Type:           region.Type,
			TypeConfidence: conf,
			Coords:         region.Box.Corners(),
			PageNumber:     pl.PageNumber,
		})
		used = append(used, region)
	}

	p.logger.Info("Page OCR complete",
		"page", pl.PageNumber,
		"regions", len(pl.Regions),
		"blocks", len(blocks))

	return blocks, used, nil
}

// cropRegion copies the region's pixels into a fresh RGBA image, clamped
// to the page bounds. Returns nil for regions fully outside the page.
func cropRegion(pageImage image.Image, box layout.Box) image.Image {
	rect := box.Rect().Intersect(pageImage.Bounds())
	if rect.Empty() {
		return nil
	}
	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	stddraw.Draw(crop, crop.Bounds(), pageImage, rect.Min, stddraw.Src)
	return crop
}

// upscale enlarges a crop with Catmull-Rom resampling
func upscale(img image.Image, factor int) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
