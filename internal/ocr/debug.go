package ocr

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/docfold/blockparse-worker/internal/layout"
)

// typeColors mirrors the debug palette used when the layout model was
// tuned, so saved overlays stay comparable across runs
var typeColors = map[layout.BlockType]color.RGBA{
	layout.BlockText:      {R: 255, G: 165, B: 0, A: 255},   // orange
	layout.BlockTitle:     {R: 0, G: 0, B: 255, A: 255},     // blue
	layout.BlockList:      {R: 139, G: 69, B: 19, A: 255},   // brown
	layout.BlockTable:     {R: 128, G: 0, B: 128, A: 255},   // purple
	layout.BlockFigure:    {R: 105, G: 105, B: 105, A: 255}, // gray
	layout.BlockInferred:  {R: 255, G: 0, B: 0, A: 255},     // red
	layout.BlockAmbiguous: {R: 0, G: 128, B: 0, A: 255},     // green
}

// RenderOverlay draws type-colored outlines of the final regions over a
// copy of the page image. Peripheral to the parse contract; only invoked
// when debug output is enabled.
func RenderOverlay(pageImage image.Image, regions []layout.Region) *image.RGBA {
	bounds := pageImage.Bounds()
	out := image.NewRGBA(bounds)
	stddraw.Draw(out, bounds, pageImage, bounds.Min, stddraw.Src)

	for _, region := range regions {
		c, ok := typeColors[region.Type]
		if !ok {
			c = typeColors[layout.BlockText]
		}
		drawOutline(out, region.Box.Rect().Intersect(bounds), c, 3)
	}

	return out
}

// SaveOverlay writes an overlay PNG named after the document and page
func SaveOverlay(dir, documentName string, pageNumber int, overlay image.Image) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create debug dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.png", documentName, pageNumber+1))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay file: %w", err)
	}
	defer f.Close()
	return png.Encode(f, overlay)
}

func drawOutline(img *image.RGBA, rect image.Rectangle, c color.RGBA, thickness int) {
	for t := 0; t < thickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if rect.Min.Y+t < rect.Max.Y {
				img.SetRGBA(x, rect.Min.Y+t, c)
			}
			if rect.Max.Y-1-t >= rect.Min.Y {
				img.SetRGBA(x, rect.Max.Y-1-t, c)
			}
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			if rect.Min.X+t < rect.Max.X {
				img.SetRGBA(rect.Min.X+t, y, c)
			}
			if rect.Max.X-1-t >= rect.Min.X {
				img.SetRGBA(rect.Max.X-1-t, y, c)
			}
		}
	}
}
