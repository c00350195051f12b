/**
 * Queue consumer for the blockparse worker.
 *
 * Consumes parse jobs from the Redis queue via Asynq, drives the parse
 * pipeline, and records per-document status. A parse failure is
 * contained: the handler stores an empty output, reports the failure
 * and acknowledges the task, so the queue never redelivers a document
 * the backend already classified as hopeless.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docfold/blockparse-worker/internal/document"
	apperrors "github.com/docfold/blockparse-worker/internal/errors"
	"github.com/docfold/blockparse-worker/internal/logging"
	"github.com/docfold/blockparse-worker/internal/pipeline"
	"github.com/docfold/blockparse-worker/internal/storage"
	"github.com/docfold/blockparse-worker/internal/translate"
)

// TaskTypeParseDocument is the Asynq task type for parse jobs
const TaskTypeParseDocument = "parse-document"

// JobData is the payload of one parse job
type JobData struct {
	JobID string               `json:"jobId"`
	Input document.ParserInput `json:"input"`
}

// NewParseTask builds an Asynq task for a parse job
func NewParseTask(jobID string, input document.ParserInput) (*asynq.Task, error) {
	payload, err := json.Marshal(JobData{JobID: jobID, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job data: %w", err)
	}
	return asynq.NewTask(TaskTypeParseDocument, payload), nil
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	// SkipParsed skips documents that already have a stored output
	SkipParsed bool
	// Translator is optional; when nil, translation is skipped
	Translator      translate.Translator
	TargetLanguages []string
	// ProcessingTimeout bounds one document's parse; defaults to 10 minutes
	ProcessingTimeout time.Duration
}

// Consumer consumes parse jobs from the Redis queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	pipeline  *pipeline.Pipeline
	store     *storage.JobStore
	publisher *ResultPublisher
	cfg       *ConsumerConfig
	logger    *logging.Logger
}

// NewConsumer creates a queue consumer around a pipeline, job store and
// result publisher
func NewConsumer(cfg *ConsumerConfig, p *pipeline.Pipeline, store *storage.JobStore, publisher *ResultPublisher) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("Consumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error",
					"type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		pipeline:  p,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}

	mux.HandleFunc(TaskTypeParseDocument, consumer.handleParseDocument)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer",
		"concurrency", c.cfg.Concurrency, "queue", c.cfg.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("Queue consumer error", "error", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleParseDocument parses one document end to end
func (c *Consumer) handleParseDocument(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var job JobData
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		// a payload we cannot read will never become readable
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}
	if job.Input.DocumentID == "" {
		return fmt.Errorf("job %s has no document id: %w", job.JobID, asynq.SkipRetry)
	}

	docID := job.Input.DocumentID
	c.logger.Info("Parsing document",
		"job", job.JobID, "document", docID, "content_type", job.Input.ContentType)

	if c.cfg.SkipParsed {
		parsed, err := c.store.IsParsed(ctx, docID)
		if err != nil {
			c.logger.Warn("Failed to check parse state, parsing anyway",
				"document", docID, "error", err)
		} else if parsed {
			c.logger.Info("Document already parsed, skipping", "document", docID)
			c.updateStatus(ctx, &storage.StatusUpdate{
				DocumentID: docID,
				JobID:      job.JobID,
				Status:     "skipped",
			})
			return nil
		}
	}

	c.updateStatus(ctx, &storage.StatusUpdate{
		DocumentID: docID,
		JobID:      job.JobID,
		Status:     "processing",
	})

	timeout := c.cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	parseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, parseErr := c.pipeline.ParseDocument(parseCtx, job.Input)

	if err := c.store.SaveOutput(ctx, out); err != nil {
		c.logger.Error("Failed to store parser output", "document", docID, "error", err)
		if parseErr == nil {
			parseErr = apperrors.NewStorageFailedError(docID, err)
		}
	}

	if parseErr == nil {
		c.runTranslation(ctx, out)
	}

	elapsed := time.Since(startTime)
	event := ResultEvent{
		JobID:       job.JobID,
		DocumentID:  docID,
		ContentType: string(out.ContentType),
		TextBlocks:  len(out.TextBlocks()),
		ElapsedMs:   elapsed.Milliseconds(),
		CompletedAt: time.Now(),
	}

	if parseErr != nil {
		update := &storage.StatusUpdate{
			DocumentID:   docID,
			JobID:        job.JobID,
			Status:       "failed",
			ErrorMessage: parseErr.Error(),
			ElapsedMs:    elapsed.Milliseconds(),
		}
		var pe *apperrors.ParseError
		if stderrors.As(parseErr, &pe) {
			update.Stage = pe.Stage
			update.ErrorCode = string(pe.Code)
			update.Details = pe.ToMap()
			event.ErrorCode = string(pe.Code)
		}
		event.Status = "failed"
		event.ErrorMessage = parseErr.Error()
		c.updateStatus(ctx, update)
		c.logger.Error("Document failed, empty output stored",
			"document", docID, "elapsed", elapsed, "error", parseErr)
	} else {
		event.Status = "completed"
		c.updateStatus(ctx, &storage.StatusUpdate{
			DocumentID: docID,
			JobID:      job.JobID,
			Status:     "completed",
			ElapsedMs:  elapsed.Milliseconds(),
			Details: map[string]interface{}{
				"text_blocks": len(out.TextBlocks()),
				"languages":   out.Languages,
			},
		})
		c.logger.Info("Document parsed",
			"document", docID, "blocks", len(out.TextBlocks()), "elapsed", elapsed)
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.logger.Warn("Failed to publish result event", "document", docID, "error", err)
		}
	}

	// the failure is recorded; redelivering the task would not change
	// the outcome
	return nil
}

// runTranslation stores translated copies of the output for every
// missing target language. Translation failures are logged, never fail
// the document.
func (c *Consumer) runTranslation(ctx context.Context, out *document.ParserOutput) {
	if c.cfg.Translator == nil || !translate.ShouldBeTranslated(out) {
		return
	}

	for _, target := range translate.IdentifyTranslationLanguages(out, c.cfg.TargetLanguages) {
		translated, err := translate.TranslateOutput(ctx, out, target, c.cfg.Translator)
		if err != nil {
			c.logger.Warn("Translation failed",
				"document", out.DocumentID, "target", target, "error", err)
			continue
		}
		translated.DocumentID = fmt.Sprintf("%s_translated_%s", out.DocumentID, target)
		if err := c.store.SaveOutput(ctx, translated); err != nil {
			c.logger.Warn("Failed to store translated output",
				"document", translated.DocumentID, "error", err)
		}
	}
}

func (c *Consumer) updateStatus(ctx context.Context, u *storage.StatusUpdate) {
	if err := c.store.UpdateStatus(ctx, u); err != nil {
		c.logger.Warn("Failed to update job status",
			"document", u.DocumentID, "status", u.Status, "error", err)
	}
}
