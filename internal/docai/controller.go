/**
 * Backend retry controller.
 *
 * Per-document state machine over the two backend endpoints:
 *
 *   NotStarted → TryingDefault → (Succeeded | TryingLarge | Failed)
 *   TryingLarge → (Succeeded | Failed)
 *
 * Each endpoint is attempted exactly once. Escalation to the large
 * endpoint happens only on a classified retryable failure, at most once;
 * credential and unclassified failures fail the document immediately.
 */

package docai

import (
	"context"
	"fmt"
	"time"

	"github.com/docfold/blockparse-worker/internal/logging"
)

// State is the controller's position in the per-document state machine
type State int

const (
	StateNotStarted State = iota
	StateTryingDefault
	StateTryingLarge
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateTryingDefault:
		return "trying_default"
	case StateTryingLarge:
		return "trying_large"
	case StateSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Endpoint names which backend path an attempt used
type Endpoint string

const (
	EndpointDefault Endpoint = "default"
	EndpointLarge   Endpoint = "large"
)

// Attempt records one endpoint call; ephemeral, drives logging only
type Attempt struct {
	Endpoint Endpoint
	Outcome  string
	Elapsed  time.Duration
	Err      error
}

// Controller governs backend calls for a single document. Not safe for
// concurrent use; create one per document.
type Controller struct {
	backend  Analyzer
	logger   *logging.Logger
	state    State
	attempts []Attempt
}

// NewController creates a controller in the NotStarted state
func NewController(backend Analyzer) *Controller {
	return &Controller{
		backend: backend,
		logger:  logging.NewLogger("BackendRetryController"),
		state:   StateNotStarted,
	}
}

// State returns the controller's current state
func (c *Controller) State() State {
	return c.state
}

// Attempts returns the attempts made so far, in order
func (c *Controller) Attempts() []Attempt {
	return c.attempts
}

// Analyze obtains the document's analysis, escalating to the large
// endpoint at most once. On failure the returned error's classification
// has already been logged; the caller emits the document with empty
// content rather than propagating.
func (c *Controller) Analyze(ctx context.Context, documentID string, doc []byte) (*AnalyzeResult, error) {
	if c.state != StateNotStarted {
		return nil, fmt.Errorf("controller already used (state %s)", c.state)
	}

	c.state = StateTryingDefault
	result, err := c.attempt(ctx, EndpointDefault, doc)
	if err == nil {
		c.state = StateSucceeded
		return result, nil
	}

	switch kind := Classify(err); kind {
	case FailureRetryable:
		c.logger.Warn("Default endpoint failed with a transient/size error, retrying with large document endpoint",
			"document", documentID, "error", err)
	case FailureFatal:
		c.state = StateFailed
		c.logger.Error("Backend call failed; this is most likely due to incorrect api credentials or an unreachable service, not retrying",
			"document", documentID, "error", err)
		return nil, fmt.Errorf("backend %s failure: %w", kind, err)
	default:
		c.state = StateFailed
		c.logger.Error("Backend call failed with an unclassified error, failing document safely",
			"document", documentID, "error", err)
		return nil, fmt.Errorf("backend %s failure: %w", kind, err)
	}

	c.state = StateTryingLarge
	result, err = c.attempt(ctx, EndpointLarge, doc)
	if err == nil {
		c.state = StateSucceeded
		return result, nil
	}

	c.state = StateFailed
	c.logger.Error("Large document endpoint also failed, failing document safely",
		"document", documentID, "classification", Classify(err).String(), "error", err)
	return nil, fmt.Errorf("backend %s failure after escalation: %w", Classify(err), err)
}

func (c *Controller) attempt(ctx context.Context, endpoint Endpoint, doc []byte) (*AnalyzeResult, error) {
	start := time.Now()

	var result *AnalyzeResult
	var err error
	if endpoint == EndpointDefault {
		result, err = c.backend.AnalyzeDefault(ctx, doc)
	} else {
		result, err = c.backend.AnalyzeLarge(ctx, doc)
	}

	attempt := Attempt{Endpoint: endpoint, Elapsed: time.Since(start), Err: err}
	if err == nil {
		attempt.Outcome = "success"
	} else {
		attempt.Outcome = Classify(err).String()
	}
	c.attempts = append(c.attempts, attempt)

	return result, err
}
