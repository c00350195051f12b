/**
 * Pipeline tests.
 *
 * Every collaborator is faked, so these tests pin down the routing and
 * the error-containment contract: ParseDocument always returns a valid
 * output, and failures surface as structured errors beside it.
 */

package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"testing"

	"github.com/docfold/blockparse-worker/internal/docai"
	"github.com/docfold/blockparse-worker/internal/document"
	"github.com/docfold/blockparse-worker/internal/errors"
	"github.com/docfold/blockparse-worker/internal/htmlparse"
	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/ocr"
	"github.com/docfold/blockparse-worker/internal/storage"
)

// --- fakes ---------------------------------------------------------------

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.data, f.err
}

type fakeRenderer struct {
	pages []image.Image
	err   error
}

func (r *fakeRenderer) Render(ctx context.Context, pdf []byte) ([]image.Image, error) {
	return r.pages, r.err
}

// fakeDetector returns scripted detections per page, in call order
type fakeDetector struct {
	perPage [][]layout.Detection
	calls   int
}

func (d *fakeDetector) Detect(ctx context.Context, pageImage image.Image) ([]layout.Detection, error) {
	if d.calls >= len(d.perPage) {
		return nil, nil
	}
	out := d.perPage[d.calls]
	d.calls++
	return out, nil
}

type fakeEngine struct {
	lines []string
}

func (e *fakeEngine) Recognize(ctx context.Context, crop image.Image) ([]string, error) {
	return e.lines, nil
}

// fakeBackend scripts the two analyze endpoints
type fakeBackend struct {
	defaultResult *docai.AnalyzeResult
	defaultErr    error
	largeResult   *docai.AnalyzeResult
	largeErr      error
	defaultCalls  int
	largeCalls    int
}

func (b *fakeBackend) AnalyzeDefault(ctx context.Context, doc []byte) (*docai.AnalyzeResult, error) {
	b.defaultCalls++
	return b.defaultResult, b.defaultErr
}

func (b *fakeBackend) AnalyzeLarge(ctx context.Context, doc []byte) (*docai.AnalyzeResult, error) {
	b.largeCalls++
	return b.largeResult, b.largeErr
}

// --- helpers -------------------------------------------------------------

func backendPipeline(t *testing.T, fetcher Fetcher, backend docai.Analyzer, cache *storage.ResponseCache) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{MinLanguageProportion: 0.4}, fetcher, htmlparse.NewParser(6),
		backend, cache, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func localPipeline(t *testing.T, fetcher Fetcher, renderer PageRenderer, detector layout.Detector) *Pipeline {
	t.Helper()
	p, err := NewPipeline(
		Config{MinLanguageProportion: 0.4},
		fetcher,
		htmlparse.NewParser(6),
		nil,
		nil,
		renderer,
		detector,
		layout.NewDisambiguator(layout.DefaultDisambiguatorConfig()),
		layout.NewPostProcessor(layout.DefaultPostProcessorConfig()),
		ocr.NewProcessor(&fakeEngine{lines: []string{"recognized text"}}, ocr.DefaultProcessorConfig()),
	)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func analyzeFixture() *docai.AnalyzeResult {
	return &docai.AnalyzeResult{
		Pages: []docai.Page{
			{PageNumber: 1, Width: 8.5, Height: 11},
		},
		Paragraphs: []docai.Paragraph{
			{
				Content: "Backend paragraph.",
				BoundingRegions: []docai.BoundingRegion{
					{PageNumber: 1, Polygon: []float64{1, 1, 7, 1, 7, 2, 1, 2}},
				},
			},
		},
	}
}

func pdfInput() document.ParserInput {
	return document.ParserInput{
		DocumentID:   "doc-pdf-1",
		DocumentName: "Report",
		DocumentURL:  "https://example.org/report.pdf",
		ContentType:  document.ContentTypePDF,
		DocumentSlug: "report",
	}
}

func parseCode(t *testing.T, err error) errors.ErrorCode {
	t.Helper()
	var pe *errors.ParseError
	if !stderrors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	return pe.Code
}

// --- tests ---------------------------------------------------------------

func TestParseDocumentNoContentType(t *testing.T) {
	p := backendPipeline(t, &fakeFetcher{}, &fakeBackend{}, nil)

	out, err := p.ParseDocument(context.Background(), document.ParserInput{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || out.DocumentID != "doc-1" {
		t.Fatalf("expected shell output, got %+v", out)
	}
	if out.PDFData != nil || out.HTMLData != nil {
		t.Error("shell output must carry no content data")
	}
}

func TestParseDocumentUnsupportedContentType(t *testing.T) {
	p := backendPipeline(t, &fakeFetcher{}, &fakeBackend{}, nil)

	input := document.ParserInput{DocumentID: "doc-1", ContentType: "image/tiff"}
	out, err := p.ParseDocument(context.Background(), input)
	if out == nil {
		t.Fatal("output must always be present")
	}
	if code := parseCode(t, err); code != errors.ErrorUnsupportedContent {
		t.Errorf("code = %s, want %s", code, errors.ErrorUnsupportedContent)
	}
}

func TestParseDocumentHTML(t *testing.T) {
	html := `<html><head><title>T</title></head><body><p>hello world</p></body></html>`
	p := backendPipeline(t, &fakeFetcher{data: []byte(html)}, &fakeBackend{}, nil)

	input := document.ParserInput{
		DocumentID:  "doc-html",
		DocumentURL: "https://example.org/page",
		ContentType: document.ContentTypeHTML,
	}
	out, err := p.ParseDocument(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.HTMLData == nil || len(out.HTMLData.TextBlocks) != 1 {
		t.Fatalf("expected 1 html block, got %+v", out.HTMLData)
	}
	if out.HTMLData.TextBlocks[0].Text[0] != "hello world" {
		t.Errorf("unexpected text %v", out.HTMLData.TextBlocks[0].Text)
	}
}

func TestParseDocumentHTMLFetchFailure(t *testing.T) {
	p := backendPipeline(t, &fakeFetcher{err: fmt.Errorf("boom")}, &fakeBackend{}, nil)

	input := document.ParserInput{
		DocumentID:  "doc-html",
		DocumentURL: "https://example.org/page",
		ContentType: document.ContentTypeHTML,
	}
	out, err := p.ParseDocument(context.Background(), input)
	if out == nil || out.HTMLData == nil {
		t.Fatal("expected empty html output")
	}
	if len(out.HTMLData.TextBlocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(out.HTMLData.TextBlocks))
	}
	if code := parseCode(t, err); code != errors.ErrorInputFetch {
		t.Errorf("code = %s, want %s", code, errors.ErrorInputFetch)
	}
}

func TestParsePDFBackendSuccess(t *testing.T) {
	raw := []byte("%PDF-1.7 fixture")
	backend := &fakeBackend{defaultResult: analyzeFixture()}
	p := backendPipeline(t, &fakeFetcher{data: raw}, backend, nil)

	out, err := p.ParseDocument(context.Background(), pdfInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.PDFData == nil {
		t.Fatal("expected pdf_data")
	}
	if out.PDFData.MD5Sum != document.ContentHash(raw) {
		t.Errorf("md5sum = %s, want hash of source bytes", out.PDFData.MD5Sum)
	}
	if len(out.PDFData.PageMetadata) != 1 {
		t.Fatalf("expected 1 page, got %d", len(out.PDFData.PageMetadata))
	}
	if dims := out.PDFData.PageMetadata[0].Dimensions; dims != [2]float64{8.5, 11} {
		t.Errorf("dimensions = %v", dims)
	}
	if len(out.PDFData.TextBlocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(out.PDFData.TextBlocks))
	}
	if out.PDFData.TextBlocks[0].Text[0] != "Backend paragraph." {
		t.Errorf("unexpected text %v", out.PDFData.TextBlocks[0].Text)
	}
}

func TestParsePDFBackendEscalatesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{
		defaultErr:  &docai.ResponseError{StatusCode: 500, Message: "too big"},
		largeResult: analyzeFixture(),
	}
	p := backendPipeline(t, &fakeFetcher{data: []byte("%PDF")}, backend, nil)

	out, err := p.ParseDocument(context.Background(), pdfInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.PDFData.TextBlocks) != 1 {
		t.Fatalf("expected the large endpoint's block, got %d", len(out.PDFData.TextBlocks))
	}
	if backend.defaultCalls != 1 || backend.largeCalls != 1 {
		t.Errorf("calls = %d default, %d large; want 1, 1", backend.defaultCalls, backend.largeCalls)
	}
}

func TestParsePDFBackendCredentialFailure(t *testing.T) {
	backend := &fakeBackend{
		defaultErr: &docai.ServiceRequestError{Err: fmt.Errorf("dial tcp: refused")},
	}
	p := backendPipeline(t, &fakeFetcher{data: []byte("%PDF")}, backend, nil)

	out, err := p.ParseDocument(context.Background(), pdfInput())
	if out == nil || out.PDFData == nil {
		t.Fatal("expected empty pdf output, not a propagated failure")
	}
	if len(out.PDFData.TextBlocks) != 0 || out.PDFData.MD5Sum != "" {
		t.Errorf("expected empty pdf_data, got %+v", out.PDFData)
	}
	if code := parseCode(t, err); code != errors.ErrorBackendCredential {
		t.Errorf("code = %s, want %s", code, errors.ErrorBackendCredential)
	}
	if backend.largeCalls != 0 {
		t.Errorf("credential failures must not reach the large endpoint")
	}
}

func TestParsePDFBackendCacheHit(t *testing.T) {
	raw := []byte("%PDF cached doc")
	backend := &fakeBackend{defaultResult: analyzeFixture()}

	cache, err := storage.NewResponseCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewResponseCache failed: %v", err)
	}
	p := backendPipeline(t, &fakeFetcher{data: raw}, backend, cache)

	if _, err := p.ParseDocument(context.Background(), pdfInput()); err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	out, err := p.ParseDocument(context.Background(), pdfInput())
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}

	if backend.defaultCalls != 1 {
		t.Errorf("backend called %d times, want 1 (second run from cache)", backend.defaultCalls)
	}
	if len(out.PDFData.TextBlocks) != 1 {
		t.Errorf("cached run produced %d blocks, want 1", len(out.PDFData.TextBlocks))
	}
}

func TestParsePDFLocalPath(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	detector := &fakeDetector{perPage: [][]layout.Detection{
		{
			{Box: layout.Box{X1: 50, Y1: 50, X2: 900, Y2: 300}, Label: layout.BlockText, Confidence: 0.95},
		},
		// second page: nothing above threshold, the page is skipped
		{
			{Box: layout.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}, Label: layout.BlockText, Confidence: 0.1},
		},
	}}

	p := localPipeline(t, &fakeFetcher{data: []byte("%PDF")},
		&fakeRenderer{pages: []image.Image{page, page}}, detector)

	out, err := p.ParseDocument(context.Background(), pdfInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.PDFData == nil {
		t.Fatal("expected pdf_data")
	}
	// both pages are recorded even though only one produced blocks
	if len(out.PDFData.PageMetadata) != 2 {
		t.Errorf("expected metadata for 2 pages, got %d", len(out.PDFData.PageMetadata))
	}
	if len(out.PDFData.TextBlocks) == 0 {
		t.Fatal("expected blocks from the first page")
	}
	for _, b := range out.PDFData.TextBlocks {
		if b.PageNumber != 0 {
			t.Errorf("skipped page leaked a block: %+v", b)
		}
	}
}

func TestParsePDFLocalRenderFailure(t *testing.T) {
	p := localPipeline(t, &fakeFetcher{data: []byte("%PDF")},
		&fakeRenderer{err: fmt.Errorf("broken pdf")}, &fakeDetector{})

	out, err := p.ParseDocument(context.Background(), pdfInput())
	if out == nil || out.PDFData == nil {
		t.Fatal("expected empty pdf output")
	}
	if code := parseCode(t, err); code != errors.ErrorRenderFailed {
		t.Errorf("code = %s, want %s", code, errors.ErrorRenderFailed)
	}
}
