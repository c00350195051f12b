package docai

import (
	"fmt"
	"strings"

	"github.com/docfold/blockparse-worker/internal/document"
	"github.com/docfold/blockparse-worker/internal/layout"
)

// backendConfidence is assigned to backend-produced blocks: the service
// reports no per-paragraph type score
const backendConfidence = 1.0

// PageBlocks is one page of converted backend output
type PageBlocks struct {
	PageNumber int // zero-based
	Width      float64
	Height     float64
	Blocks     []document.TextBlock
}

// ToPageBlocks converts an analyze result into per-page text blocks.
// Paragraphs are preferred when present since they carry role
// information; pages with no paragraphs fall back to their raw lines.
func ToPageBlocks(result *AnalyzeResult) []PageBlocks {
	if result == nil {
		return nil
	}

	pages := make([]PageBlocks, 0, len(result.Pages))
	byPage := paragraphsByPage(result)

	for _, page := range result.Pages {
		pageIdx := page.PageNumber - 1
		if pageIdx < 0 {
			pageIdx = 0
		}
		pb := PageBlocks{
			PageNumber: pageIdx,
			Width:      page.Width,
			Height:     page.Height,
		}

		if paras := byPage[page.PageNumber]; len(paras) > 0 {
			for i, para := range paras {
				text := strings.TrimSpace(para.Content)
				if text == "" {
					continue
				}
				pb.Blocks = append(pb.Blocks, document.TextBlock{
					Text:           []string{text},
					TextBlockID:    fmt.Sprintf("p%d_b%d", pageIdx, i),
					Type:           roleToBlockType(para.Role),
					TypeConfidence: backendConfidence,
					Coords:         polygonToCoords(paragraphPolygon(para, page.PageNumber)),
					PageNumber:     pageIdx,
				})
			}
		} else {
			for i, line := range page.Lines {
				text := strings.TrimSpace(line.Content)
				if text == "" {
					continue
				}
				pb.Blocks = append(pb.Blocks, document.TextBlock{
					Text:           []string{text},
					TextBlockID:    fmt.Sprintf("p%d_b%d", pageIdx, i),
					Type:           layout.BlockText,
					TypeConfidence: backendConfidence,
					Coords:         polygonToCoords(line.Polygon),
					PageNumber:     pageIdx,
				})
			}
		}

		pages = append(pages, pb)
	}

	return pages
}

func paragraphsByPage(result *AnalyzeResult) map[int][]Paragraph {
	byPage := make(map[int][]Paragraph)
	for _, para := range result.Paragraphs {
		if len(para.BoundingRegions) == 0 {
			continue
		}
		page := para.BoundingRegions[0].PageNumber
		byPage[page] = append(byPage[page], para)
	}
	return byPage
}

func paragraphPolygon(para Paragraph, pageNumber int) []float64 {
	for _, region := range para.BoundingRegions {
		if region.PageNumber == pageNumber {
			return region.Polygon
		}
	}
	return nil
}

func roleToBlockType(role string) layout.BlockType {
	switch role {
	case "title", "sectionHeading":
		return layout.BlockTitle
	default:
		return layout.BlockText
	}
}

// polygonToCoords converts a flattened x,y polygon into coordinate
// pairs; degenerate polygons yield nil
func polygonToCoords(polygon []float64) [][2]float64 {
	if len(polygon) < 8 || len(polygon)%2 != 0 {
		return nil
	}
	coords := make([][2]float64, 0, len(polygon)/2)
	for i := 0; i+1 < len(polygon); i += 2 {
		coords = append(coords, [2]float64{polygon[i], polygon[i+1]})
	}
	return coords
}
