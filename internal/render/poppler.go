/**
 * PDF page rasterization via poppler.
 *
 * Shells out to pdftoppm to render each page to PNG. The worker image
 * ships poppler-utils; rendering in-process would mean binding the
 * poppler C API for no practical gain.
 */

package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/docfold/blockparse-worker/internal/logging"
)

// PopplerRenderer rasterizes PDF pages with the pdftoppm binary
type PopplerRenderer struct {
	// DPI is the render resolution; the detection model was trained on
	// 150 dpi pages
	DPI    int
	logger *logging.Logger
}

// NewPopplerRenderer creates a renderer at the default resolution
func NewPopplerRenderer() *PopplerRenderer {
	return &PopplerRenderer{
		DPI:    150,
		logger: logging.NewLogger("PopplerRenderer"),
	}
}

// Render rasterizes every page of the PDF, in page order
func (r *PopplerRenderer) Render(ctx context.Context, pdf []byte) ([]image.Image, error) {
	workDir, err := os.MkdirTemp("", "blockparse-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create render dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pdfPath := filepath.Join(workDir, "doc.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", fmt.Sprintf("%d", r.DPI),
		pdfPath,
		filepath.Join(workDir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v: %s", err, string(out))
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order
	sort.Strings(matches)

	images := make([]image.Image, 0, len(matches))
	for _, path := range matches {
		img, err := readPNG(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page %s: %w", filepath.Base(path), err)
		}
		images = append(images, img)
	}

	r.logger.Debug("Rendered PDF pages", "pages", len(images), "dpi", r.DPI)
	return images, nil
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
