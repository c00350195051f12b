/**
 * Document parsing pipeline.
 *
 * Routes each document by content type: HTML goes through text
 * extraction, PDFs go either to the document-AI backend (when an
 * endpoint is configured) or through the local render → detect →
 * disambiguate → OCR path. Failures never propagate past the document:
 * every ParseDocument call returns a valid output, and the error return
 * carries what went wrong for status reporting.
 */

package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/docfold/blockparse-worker/internal/docai"
	"github.com/docfold/blockparse-worker/internal/document"
	"github.com/docfold/blockparse-worker/internal/errors"
	"github.com/docfold/blockparse-worker/internal/htmlparse"
	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/logging"
	"github.com/docfold/blockparse-worker/internal/ocr"
	"github.com/docfold/blockparse-worker/internal/storage"
)

// Fetcher downloads a document's raw bytes from its source URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageRenderer rasterizes a PDF's pages for the local layout path
type PageRenderer interface {
	Render(ctx context.Context, pdf []byte) ([]image.Image, error)
}

// Config holds the pipeline's document-level settings; the per-stage
// tunables live with their stages
type Config struct {
	MinLanguageProportion float64
	// DebugDir enables layout overlay images when non-empty
	DebugDir string
}

// Pipeline parses one document at a time. Safe for concurrent use as
// long as the injected collaborators are.
type Pipeline struct {
	cfg      Config
	fetcher  Fetcher
	html     *htmlparse.Parser
	backend  docai.Analyzer
	cache    *storage.ResponseCache
	renderer PageRenderer
	detector layout.Detector
	disamb   *layout.Disambiguator
	post     *layout.PostProcessor
	ocr      *ocr.Processor
	logger   *logging.Logger
}

// NewPipeline wires the pipeline. backend and cache may be nil; when
// backend is nil the local path (renderer, detector, disamb, post, ocr)
// must be fully provided.
func NewPipeline(
	cfg Config,
	fetcher Fetcher,
	html *htmlparse.Parser,
	backend docai.Analyzer,
	cache *storage.ResponseCache,
	renderer PageRenderer,
	detector layout.Detector,
	disamb *layout.Disambiguator,
	post *layout.PostProcessor,
	ocrProc *ocr.Processor,
) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if html == nil {
		return nil, fmt.Errorf("html parser is required")
	}
	if backend == nil {
		if renderer == nil || detector == nil || disamb == nil || post == nil || ocrProc == nil {
			return nil, fmt.Errorf("local layout path requires renderer, detector, disambiguator, post-processor and OCR")
		}
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		html:     html,
		backend:  backend,
		cache:    cache,
		renderer: renderer,
		detector: detector,
		disamb:   disamb,
		post:     post,
		ocr:      ocrProc,
		logger:   logging.NewLogger("Pipeline"),
	}, nil
}

// ParseDocument parses one document. The returned output is always
// valid and non-nil; a non-nil error reports a contained failure that
// produced an empty output.
func (p *Pipeline) ParseDocument(ctx context.Context, input document.ParserInput) (*document.ParserOutput, error) {
	switch input.ContentType {
	case document.ContentTypeHTML:
		return p.parseHTML(ctx, input)
	case document.ContentTypePDF:
		return p.parsePDF(ctx, input)
	case "":
		// no content type means there is nothing to fetch; the shell
		// output keeps the document visible downstream
		p.logger.Info("Document has no content type, emitting shell output", "document", input.DocumentID)
		return document.NewOutput(input), nil
	default:
		p.logger.Warn("Unsupported content type",
			"document", input.DocumentID, "content_type", input.ContentType)
		return document.NewOutput(input), errors.NewUnsupportedContentError(input.DocumentID, string(input.ContentType))
	}
}

func (p *Pipeline) parseHTML(ctx context.Context, input document.ParserInput) (*document.ParserOutput, error) {
	raw, err := p.fetcher.Fetch(ctx, input.DocumentURL)
	if err != nil {
		p.logger.Error("Failed to fetch HTML source", "document", input.DocumentID, "error", err)
		return document.EmptyHTMLOutput(input), errors.NewInputFetchError(input.DocumentID, err)
	}

	out := p.html.Parse(string(raw), input)
	out.SetDocumentLanguagesFromTextBlocks(p.cfg.MinLanguageProportion)
	return out, nil
}

func (p *Pipeline) parsePDF(ctx context.Context, input document.ParserInput) (*document.ParserOutput, error) {
	raw, err := p.fetcher.Fetch(ctx, input.DocumentURL)
	if err != nil {
		p.logger.Error("Failed to fetch PDF source", "document", input.DocumentID, "error", err)
		return document.EmptyPDFOutput(input), errors.NewInputFetchError(input.DocumentID, err)
	}

	if p.backend != nil {
		return p.parsePDFBackend(ctx, input, raw)
	}
	return p.parsePDFLocal(ctx, input, raw)
}

// parsePDFBackend sends the document to the document-AI service through
// the retry controller and assembles its analysis into an output
func (p *Pipeline) parsePDFBackend(ctx context.Context, input document.ParserInput, raw []byte) (*document.ParserOutput, error) {
	var result *docai.AnalyzeResult
	if p.cache != nil {
		if cached, ok := p.cache.Get(input.DocumentID, raw); ok {
			result = cached
		}
	}

	if result == nil {
		ctrl := docai.NewController(p.backend)
		analyzed, err := ctrl.Analyze(ctx, input.DocumentID, raw)
		if err != nil {
			return document.EmptyPDFOutput(input), errors.NewBackendError(backendErrorCode(err), input.DocumentID, err)
		}
		result = analyzed

		if p.cache != nil {
			if err := p.cache.Put(input.DocumentID, raw, result); err != nil {
				p.logger.Warn("Failed to cache analyze result", "document", input.DocumentID, "error", err)
			}
		}
	}

	pdf := &document.PDFData{
		PageMetadata: []document.PageMetadata{},
		MD5Sum:       document.ContentHash(raw),
		TextBlocks:   []document.TextBlock{},
	}
	for _, page := range docai.ToPageBlocks(result) {
		pdf.PageMetadata = append(pdf.PageMetadata, document.PageMetadata{
			PageNumber: page.PageNumber,
			Dimensions: [2]float64{page.Width, page.Height},
		})
		pdf.TextBlocks = append(pdf.TextBlocks, page.Blocks...)
	}

	out := document.NewOutput(input)
	out.PDFData = pdf
	out.SetDocumentLanguagesFromTextBlocks(p.cfg.MinLanguageProportion)

	p.logger.Info("PDF parsed via backend",
		"document", input.DocumentID,
		"pages", len(pdf.PageMetadata),
		"blocks", len(pdf.TextBlocks))

	return out, nil
}

// backendErrorCode maps the controller's failure classification onto a
// status error code
func backendErrorCode(err error) errors.ErrorCode {
	switch docai.Classify(err) {
	case docai.FailureRetryable:
		return errors.ErrorBackendTransient
	case docai.FailureFatal:
		return errors.ErrorBackendCredential
	default:
		return errors.ErrorBackendUnclassified
	}
}

// parsePDFLocal renders each page, disambiguates the detection model's
// boxes and OCRs the surviving regions
func (p *Pipeline) parsePDFLocal(ctx context.Context, input document.ParserInput, raw []byte) (*document.ParserOutput, error) {
	images, err := p.renderer.Render(ctx, raw)
	if err != nil {
		p.logger.Error("Failed to render PDF pages", "document", input.DocumentID, "error", err)
		return document.EmptyPDFOutput(input), errors.NewRenderFailedError(input.DocumentID, err)
	}

	pdf := &document.PDFData{
		PageMetadata: []document.PageMetadata{},
		MD5Sum:       document.ContentHash(raw),
		TextBlocks:   []document.TextBlock{},
	}

	for pageNum, pageImage := range images {
		bounds := pageImage.Bounds()
		width, height := float64(bounds.Dx()), float64(bounds.Dy())
		pdf.PageMetadata = append(pdf.PageMetadata, document.PageMetadata{
			PageNumber: pageNum,
			Dimensions: [2]float64{width, height},
		})

		detections, err := p.detector.Detect(ctx, pageImage)
		if err != nil {
			p.logger.Error("Layout detection failed",
				"document", input.DocumentID, "page", pageNum, "error", err)
			return document.EmptyPDFOutput(input), errors.NewLayoutFailedError(input.DocumentID, pageNum, err)
		}

		pl, err := p.disamb.Disambiguate(detections, pageNum, width, height)
		if err != nil {
			// no usable layout on this page; not a document failure
			p.logger.Info("Skipping page with no layout", "document", input.DocumentID, "page", pageNum)
			continue
		}

		pl = p.post.Process(pl)
		if len(pl.Regions) == 0 {
			p.logger.Info("Skipping page with no surviving regions", "document", input.DocumentID, "page", pageNum)
			continue
		}

		blocks, used, err := p.ocr.ProcessLayout(ctx, pageImage, pl)
		if err != nil {
			p.logger.Error("OCR failed",
				"document", input.DocumentID, "page", pageNum, "error", err)
			return document.EmptyPDFOutput(input), errors.NewOCRFailedError(input.DocumentID, pageNum, err)
		}
		pdf.TextBlocks = append(pdf.TextBlocks, blocks...)

		if p.cfg.DebugDir != "" {
			overlay := ocr.RenderOverlay(pageImage, used)
			if err := ocr.SaveOverlay(p.cfg.DebugDir, input.DocumentSlug, pageNum, overlay); err != nil {
				p.logger.Warn("Failed to save debug overlay",
					"document", input.DocumentID, "page", pageNum, "error", err)
			}
		}
	}

	out := document.NewOutput(input)
	out.PDFData = pdf
	out.SetDocumentLanguagesFromTextBlocks(p.cfg.MinLanguageProportion)

	p.logger.Info("PDF parsed locally",
		"document", input.DocumentID,
		"pages", len(images),
		"blocks", len(pdf.TextBlocks))

	return out, nil
}
