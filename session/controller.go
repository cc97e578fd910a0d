// Package session owns the state of one deal analysis: the form inputs, the
// in-flight submission and its outcome.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"deal-analyzer/engine"
	"deal-analyzer/models"
	"deal-analyzer/services"
	"deal-analyzer/utils"
)

// User-facing messages for failures that must not expose engine internals.
const (
	MsgEngineFailure = "The analysis engine encountered an error. Please try again."
	MsgUnreachable   = "Unable to connect to the analysis server. Please check if the backend is running."
	MsgUnexpected    = "An unexpected error occurred. Please try again."
)

// Analyzer submits a normalized deal to the scoring engine.
type Analyzer interface {
	Analyze(ctx context.Context, req models.DealRequest) (*models.DealAnalysis, error)
}

// Validator checks a normalized deal before it is submitted.
type Validator interface {
	Validate(req models.DealRequest) models.ValidationResult
}

// flight is one submission; callers arriving while it runs wait on done.
// gen ties its state writes to the session it started in.
type flight struct {
	done chan struct{}
	ok   bool
	gen  uint64
}

// Controller is the only writer of a session's state. All methods are safe
// for concurrent use.
type Controller struct {
	analyzer  Analyzer
	validator Validator
	logger    *utils.Logger

	mu      sync.Mutex
	state   models.SessionState
	current *flight
	// stale is a flight orphaned by Reset that has not returned yet. No new
	// flight starts until it does.
	stale *flight
	gen   uint64
}

// New creates a Controller with default inputs in the Idle phase.
func New(analyzer Analyzer, validator Validator, logger *utils.Logger) *Controller {
	if validator == nil {
		validator = services.NewValidator()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	c := &Controller{analyzer: analyzer, validator: validator, logger: logger}
	c.state = initialState()
	return c
}

func initialState() models.SessionState {
	return models.SessionState{
		Property:  models.DefaultPropertyInput(),
		Financial: models.DefaultFinancialInput(),
		Phase:     models.PhaseIdle,
	}
}

// State returns a snapshot for readers.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UpdateProperty merges patch into the property input. It is legal in every
// phase and never triggers validation.
func (c *Controller) UpdateProperty(patch models.PropertyPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Property = c.state.Property.Apply(patch)
}

// UpdateFinancial merges patch into the financial input.
func (c *Controller) UpdateFinancial(patch models.FinancialPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Financial = c.state.Financial.Apply(patch)
}

// RunAnalysis validates the current inputs and, if they pass, submits them.
// It reports whether the attempt ended in PhaseSucceeded. A call made while
// another attempt is in flight joins that attempt instead of starting a new
// one, so the engine sees one request and the outcome is written once. A
// call made after Reset while the discarded attempt is still open waits for
// it to return before submitting.
func (c *Controller) RunAnalysis(ctx context.Context) bool {
	c.mu.Lock()
	for c.current == nil && c.stale != nil {
		s := c.stale
		c.mu.Unlock()
		c.logger.Debug("[session] Waiting for a discarded attempt to return")
		select {
		case <-s.done:
		case <-ctx.Done():
			return false
		}
		c.mu.Lock()
		if c.stale == s {
			c.stale = nil
		}
	}
	if f := c.current; f != nil {
		c.mu.Unlock()
		c.logger.Debug("[session] Analysis already in flight, joining it")
		select {
		case <-f.done:
			return f.ok
		case <-ctx.Done():
			return false
		}
	}

	f := &flight{done: make(chan struct{}), gen: c.gen}
	c.current = f
	c.state.Phase = models.PhaseValidating
	c.state.Outcome = models.Outcome{}
	req := services.Normalize(c.state.Property, c.state.Financial)
	c.mu.Unlock()

	f.ok = c.attempt(ctx, f, req)

	c.mu.Lock()
	if c.current == f {
		c.current = nil
	}
	if c.stale == f {
		c.stale = nil
	}
	c.mu.Unlock()
	close(f.done)
	return f.ok
}

func (c *Controller) attempt(ctx context.Context, f *flight, req models.DealRequest) bool {
	if res := c.validator.Validate(req); !res.Valid {
		c.logger.Warn("[session] Validation failed with %d violation(s)", len(res.Violations))
		c.fail(f, &models.AnalysisError{
			Kind:       models.ErrorValidation,
			Message:    strings.Join(res.Violations, "\n"),
			StatusCode: 400,
		})
		return false
	}

	c.mu.Lock()
	if f.gen == c.gen {
		c.state.Phase = models.PhaseSubmitting
		c.state.InFlight = true
	}
	c.mu.Unlock()

	c.logger.Info("[session] Submitting %s deal: price %s, rent %s/month",
		req.City, utils.FormatINR(req.PropertyPrice), utils.FormatINR(req.ExpectedRent))

	result, err := c.analyzer.Analyze(ctx, req)
	if err != nil {
		c.fail(f, Classify(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if f.gen != c.gen {
		c.logger.Debug("[session] Dropping result of an attempt from before reset")
		return false
	}
	c.state.Phase = models.PhaseSucceeded
	c.state.InFlight = false
	c.state.Outcome = models.Outcome{Result: result}
	return true
}

func (c *Controller) fail(f *flight, aerr *models.AnalysisError) {
	c.logger.Debug("[session] Attempt failed: %v", aerr)

	c.mu.Lock()
	defer c.mu.Unlock()
	if f.gen != c.gen {
		return
	}
	c.state.Phase = models.PhaseFailed
	c.state.InFlight = false
	c.state.Outcome = models.Outcome{Err: aerr}
}

// ClearError drops a stored failure so the user can retry with the same
// inputs.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == models.PhaseFailed {
		c.state.Phase = models.PhaseIdle
	}
	c.state.Outcome.Err = nil
}

// Reset restores default inputs and clears the outcome. An attempt still in
// flight keeps running, but its outcome is discarded and the next
// RunAnalysis waits for it to return.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.gen++
	if c.current != nil {
		c.stale = c.current
		c.current = nil
	}
	c.state = initialState()
}

// TakeResult hands the successful result to the report view and resets the
// session. It returns nil when there is nothing to hand off.
func (c *Controller) TakeResult() *models.DealAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := c.state.Outcome.Result
	if result == nil {
		return nil
	}
	c.resetLocked()
	return result
}

// Classify maps an Analyze error onto the user-facing error taxonomy.
func Classify(err error) *models.AnalysisError {
	var apiErr *engine.APIError
	var tErr *engine.TransportError
	switch {
	case errors.As(err, &apiErr) && apiErr.ClientError():
		msg := apiErr.Detail
		if msg == "" {
			msg = apiErr.Message
		}
		return &models.AnalysisError{
			Kind:       models.ErrorRejected,
			Message:    msg,
			StatusCode: apiErr.StatusCode,
			Detail:     apiErr.Detail,
		}
	case errors.As(err, &apiErr) && apiErr.ServerError():
		return &models.AnalysisError{
			Kind:       models.ErrorEngine,
			Message:    MsgEngineFailure,
			StatusCode: apiErr.StatusCode,
			Detail:     apiErr.Detail,
		}
	case errors.As(err, &tErr):
		return &models.AnalysisError{
			Kind:    models.ErrorTransport,
			Message: MsgUnreachable,
		}
	case errors.As(err, &apiErr):
		return &models.AnalysisError{
			Kind:       models.ErrorUnexpected,
			Message:    apiErr.Message,
			StatusCode: apiErr.StatusCode,
			Detail:     apiErr.Detail,
		}
	}
	return &models.AnalysisError{
		Kind:    models.ErrorUnexpected,
		Message: MsgUnexpected,
	}
}
