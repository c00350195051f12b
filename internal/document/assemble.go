package document

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// ContentHash returns the md5 hex digest of the source bytes. md5 is the
// downstream contract for the md5sum field, not an integrity mechanism.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// NewOutput builds a ParserOutput shell carrying the input's identity
func NewOutput(input ParserInput) *ParserOutput {
	return &ParserOutput{
		DocumentID:          input.DocumentID,
		DocumentName:        input.DocumentName,
		DocumentDescription: input.DocumentDescription,
		DocumentURL:         input.DocumentURL,
		ContentType:         input.ContentType,
		DocumentSlug:        input.DocumentSlug,
		Metadata:            input.Metadata,
	}
}

// EmptyPDFOutput returns a valid output for a PDF document that produced
// no content, e.g. after a backend failure
func EmptyPDFOutput(input ParserInput) *ParserOutput {
	out := NewOutput(input)
	out.PDFData = &PDFData{
		PageMetadata: []PageMetadata{},
		MD5Sum:       "",
		TextBlocks:   []TextBlock{},
	}
	return out
}

// EmptyHTMLOutput returns a valid output for an HTML document that
// produced no content
func EmptyHTMLOutput(input ParserInput) *ParserOutput {
	out := NewOutput(input)
	out.HTMLData = &HTMLData{
		DetectedTitle: "",
		DetectedDate:  nil,
		HasValidText:  false,
		TextBlocks:    []TextBlock{},
	}
	return out
}

// TextBlocks returns the document's blocks regardless of content type
func (o *ParserOutput) TextBlocks() []TextBlock {
	switch {
	case o.HTMLData != nil:
		return o.HTMLData.TextBlocks
	case o.PDFData != nil:
		return o.PDFData.TextBlocks
	default:
		return nil
	}
}

// ToString joins every block's text into one string
func (o *ParserOutput) ToString() string {
	parts := make([]string, 0, len(o.TextBlocks()))
	for _, b := range o.TextBlocks() {
		s := strings.TrimSpace(b.ToString())
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// SetDocumentLanguagesFromTextBlocks sets the document languages by
// majority vote over block languages: a language qualifies when its share
// of all blocks exceeds minProportion. Languages stays nil when no block
// carries a language tag.
func (o *ParserOutput) SetDocumentLanguagesFromTextBlocks(minProportion float64) *ParserOutput {
	blocks := o.TextBlocks()
	if len(blocks) == 0 {
		return o
	}

	counts := make(map[string]int)
	tagged := 0
	for _, b := range blocks {
		if b.Language != "" {
			counts[b.Language]++
			tagged++
		}
	}
	if tagged == 0 {
		o.Languages = nil
		return o
	}

	var langs []string
	for lang, count := range counts {
		if float64(count)/float64(len(blocks)) > minProportion {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	o.Languages = langs
	return o
}
