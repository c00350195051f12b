/**
 * HTML text extraction.
 *
 * Parses an HTML document into one text block per non-empty paragraph
 * line. HTML blocks always carry type Text with confidence 1.0: there is
 * no layout model involved, so there is nothing to predict.
 */

package htmlparse

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/docfold/blockparse-worker/internal/document"
	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/logging"
)

// Parser extracts text blocks from HTML sources
type Parser struct {
	// minValidLines is the minimum number of text blocks for the
	// document to count as having valid text
	minValidLines int
	logger        *logging.Logger
}

// NewParser creates an HTML parser; minValidLines below 1 defaults to 6
func NewParser(minValidLines int) *Parser {
	if minValidLines < 1 {
		minValidLines = 6
	}
	return &Parser{
		minValidLines: minValidLines,
		logger:        logging.NewLogger("HTMLParser"),
	}
}

// Parse extracts text blocks from an HTML string. Unparseable input
// yields an empty output, not an error: the document boundary contains
// the failure.
func (p *Parser) Parse(htmlSrc string, input document.ParserInput) *document.ParserOutput {
	root, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		p.logger.Error("Failed to parse HTML", "document", input.DocumentID, "error", err)
		return document.EmptyHTMLOutput(input)
	}

	title := findTitle(root)
	lines := extractLines(root)

	blocks := make([]document.TextBlock, 0, len(lines))
	for i, line := range lines {
		blocks = append(blocks, document.TextBlock{
			Text:           []string{line},
			TextBlockID:    fmt.Sprintf("b%d", i),
			Type:           layout.BlockText,
			TypeConfidence: 1.0,
		})
	}

	out := document.NewOutput(input)
	out.HTMLData = &document.HTMLData{
		DetectedTitle: title,
		HasValidText:  len(blocks) >= p.minValidLines,
		TextBlocks:    blocks,
	}

	p.logger.Info("HTML parsed",
		"document", input.DocumentID,
		"blocks", len(blocks),
		"valid_text", out.HTMLData.HasValidText)

	return out
}

// blockTags are elements whose text content forms standalone lines
var blockTags = map[string]bool{
	"p": true, "li": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "blockquote": true,
	"td": true, "th": true, "figcaption": true, "pre": true,
}

// skipTags never contribute visible text
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "iframe": true, "svg": true,
}

func extractLines(root *html.Node) []string {
	var lines []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				for _, line := range strings.Split(nodeText(n), "\n") {
					line = strings.Join(strings.Fields(line), " ")
					if line != "" {
						lines = append(lines, line)
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return lines
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func findTitle(root *html.Node) string {
	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(nodeText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return title
}
