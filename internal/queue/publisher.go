/**
 * Result publisher.
 *
 * Pushes per-document completion events onto a Redis list so downstream
 * services (indexing, notifications) can react without polling the
 * database.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docfold/blockparse-worker/internal/logging"
)

// ResultEvent is the per-document completion record pushed to Redis
type ResultEvent struct {
	JobID        string    `json:"job_id"`
	DocumentID   string    `json:"document_id"`
	Status       string    `json:"status"`
	ContentType  string    `json:"content_type,omitempty"`
	TextBlocks   int       `json:"text_blocks"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

// ResultPublisher publishes result events to a Redis list
type ResultPublisher struct {
	client *redis.Client
	list   string
	logger *logging.Logger
}

// NewResultPublisher connects to Redis and verifies connectivity
func NewResultPublisher(redisURL, list string) (*ResultPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ResultPublisher{
		client: client,
		list:   list,
		logger: logging.NewLogger("ResultPublisher"),
	}, nil
}

// Publish appends one result event to the list
func (p *ResultPublisher) Publish(ctx context.Context, event ResultEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal result event: %w", err)
	}

	if err := p.client.RPush(ctx, p.list, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish result event: %w", err)
	}

	p.logger.Debug("Published result event",
		"document", event.DocumentID, "status", event.Status)
	return nil
}

// Close releases the Redis connection
func (p *ResultPublisher) Close() error {
	return p.client.Close()
}
