/**
 * Blockparse Worker - Main Entry Point
 *
 * Go worker for batch document parsing.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed parse job queue
 * - HTML path: text extraction into positioned blocks
 * - PDF path: document-AI backend with large-endpoint fallback, or the
 *   local render → layout detection → disambiguation → OCR path when no
 *   backend endpoint is configured
 * - PostgreSQL persistence for per-document status and outputs
 * - Redis list of per-document completion events for downstream services
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docfold/blockparse-worker/internal/clients"
	"github.com/docfold/blockparse-worker/internal/config"
	"github.com/docfold/blockparse-worker/internal/docai"
	"github.com/docfold/blockparse-worker/internal/htmlparse"
	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/ocr"
	"github.com/docfold/blockparse-worker/internal/pipeline"
	"github.com/docfold/blockparse-worker/internal/queue"
	"github.com/docfold/blockparse-worker/internal/render"
	"github.com/docfold/blockparse-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Blockparse worker starting...")
	log.Printf("Configuration loaded: queue=%s, workers=%d, backend=%v",
		cfg.QueueName, cfg.WorkerConcurrency, cfg.DocAIEndpoint != "")

	log.Printf("Connecting to PostgreSQL...")
	store, err := storage.NewJobStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize job store: %v", err)
	}
	defer store.Close()

	p, err := buildPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	log.Printf("Connecting to Redis result list...")
	publisher, err := queue.NewResultPublisher(cfg.RedisURL, cfg.ResultList)
	if err != nil {
		log.Fatalf("Failed to initialize result publisher: %v", err)
	}
	defer publisher.Close()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:        cfg.RedisURL,
		QueueName:       cfg.QueueName,
		Concurrency:     cfg.WorkerConcurrency,
		SkipParsed:      cfg.SkipParsed,
		TargetLanguages: cfg.TargetLanguages,
	}, p, store, publisher)
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Blockparse worker is READY")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	if cfg.DocAIEndpoint != "" {
		log.Printf("PDF path: document-AI backend with fallback endpoint")
	} else {
		log.Printf("PDF path: local layout detection + OCR")
	}
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	log.Printf("Shutdown complete")
}

// buildPipeline wires the parse pipeline from configuration. The
// backend path and the local path are mutually exclusive per deployment.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	fetcher := clients.NewHTTPFetcher()
	htmlParser := htmlparse.NewParser(cfg.HTMLMinValidLines)

	pipelineCfg := pipeline.Config{
		MinLanguageProportion: cfg.MinLanguageProportion,
		DebugDir:              cfg.DebugDir,
	}

	if cfg.DocAIEndpoint != "" {
		backend, err := docai.NewClient(docai.ClientConfig{
			Endpoint:      cfg.DocAIEndpoint,
			LargeEndpoint: cfg.DocAILargeEndpoint,
			APIKey:        cfg.DocAIAPIKey,
		})
		if err != nil {
			return nil, err
		}

		var cache *storage.ResponseCache
		if cfg.CacheDir != "" {
			cache, err = storage.NewResponseCache(cfg.CacheDir)
			if err != nil {
				return nil, err
			}
		}

		return pipeline.NewPipeline(pipelineCfg, fetcher, htmlParser, backend, cache, nil, nil, nil, nil, nil)
	}

	disamb := layout.NewDisambiguator(layout.DisambiguatorConfig{
		DetectionThreshold: cfg.DetectionThreshold,
		OverlapThreshold:   cfg.OverlapThreshold,
		AmbiguityMargin:    cfg.AmbiguityMargin,
		MinGapHeight:       cfg.MinGapHeight,
		MinGapArea:         cfg.MinGapArea,
		RowTolerance:       layout.DefaultDisambiguatorConfig().RowTolerance,
	})

	postCfg := layout.DefaultPostProcessorConfig()
	postCfg.MinWidth = cfg.MinRegionWidth
	postCfg.MinHeight = cfg.MinRegionHeight
	postCfg.MinArea = cfg.MinRegionArea
	post := layout.NewPostProcessor(postCfg)

	engine := ocr.NewTesseractEngine(cfg.TesseractLanguages)
	ocrProc := ocr.NewProcessor(engine, ocr.DefaultProcessorConfig())

	return pipeline.NewPipeline(
		pipelineCfg,
		fetcher,
		htmlParser,
		nil,
		nil,
		render.NewPopplerRenderer(),
		clients.NewLayoutModelClient(cfg.LayoutModelURL),
		disamb,
		post,
		ocrProc,
	)
}
