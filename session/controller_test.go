package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deal-analyzer/engine"
	"deal-analyzer/models"
	"deal-analyzer/services"
	"deal-analyzer/utils"
)

// fakeAnalyzer counts calls and optionally blocks until released.
type fakeAnalyzer struct {
	calls   int32
	open    int32
	peak    int32
	release chan struct{}
	started chan struct{}
	result  *models.DealAnalysis
	err     error
	lastReq models.DealRequest
	mu      sync.Mutex
	once    sync.Once
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req models.DealRequest) (*models.DealAnalysis, error) {
	atomic.AddInt32(&f.calls, 1)
	defer atomic.AddInt32(&f.open, -1)
	f.mu.Lock()
	f.lastReq = req
	if n := atomic.AddInt32(&f.open, 1); n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func newController(a Analyzer) *Controller {
	return New(a, services.NewValidator(), utils.NewNopLogger())
}

func fillValidDeal(c *Controller) {
	c.UpdateProperty(models.PropertyPatch{
		City:          models.Ptr("Mumbai"),
		PurchasePrice: models.Ptr("3,500,000"),
		MonthlyRent:   models.Ptr("25,000"),
	})
	c.UpdateFinancial(models.FinancialPatch{AnnualOperatingCosts: models.Ptr("0")})
}

func TestInitialState(t *testing.T) {
	c := newController(&fakeAnalyzer{})
	s := c.State()
	if s.Phase != models.PhaseIdle || s.InFlight || !s.Outcome.Empty() {
		t.Errorf("unexpected initial state %+v", s)
	}
	if s.Property.InvestmentHorizonYears != 5 || s.Financial.AppreciationRatePercent != 3.5 {
		t.Errorf("defaults: got horizon %d appreciation %v", s.Property.InvestmentHorizonYears, s.Financial.AppreciationRatePercent)
	}
}

func TestUpdatesMergeShallowly(t *testing.T) {
	c := newController(&fakeAnalyzer{})
	c.UpdateProperty(models.PropertyPatch{City: models.Ptr("Pune")})
	c.UpdateProperty(models.PropertyPatch{MonthlyRent: models.Ptr("18,000")})
	c.UpdateFinancial(models.FinancialPatch{AppreciationRatePercent: models.Ptr(6.0)})

	s := c.State()
	if s.Property.City != "Pune" || s.Property.MonthlyRent != "18,000" || s.Property.InvestmentHorizonYears != 5 {
		t.Errorf("property merge: got %+v", s.Property)
	}
	if s.Financial.AppreciationRatePercent != 6.0 || s.Financial.AnnualOperatingCosts != "" {
		t.Errorf("financial merge: got %+v", s.Financial)
	}
	if s.Phase != models.PhaseIdle {
		t.Errorf("updates must not validate; phase %v", s.Phase)
	}
}

func TestRunAnalysisSuccess(t *testing.T) {
	fa := &fakeAnalyzer{result: &models.DealAnalysis{InvestmentScore: 81, Verdict: "Strong Buy"}}
	c := newController(fa)
	fillValidDeal(c)

	if !c.RunAnalysis(context.Background()) {
		t.Fatalf("RunAnalysis returned false, state %+v", c.State())
	}
	s := c.State()
	if s.Phase != models.PhaseSucceeded || s.InFlight {
		t.Errorf("state: phase %v inFlight %v", s.Phase, s.InFlight)
	}
	if s.Outcome.Result == nil || s.Outcome.Result.InvestmentScore != 81 || s.Outcome.Err != nil {
		t.Errorf("outcome: %+v", s.Outcome)
	}
	want := models.DealRequest{City: "mumbai", PropertyPrice: 3500000, ExpectedRent: 25000, AppreciationRate: 3.5, LoanYears: 5}
	if fa.lastReq != want {
		t.Errorf("request: got %+v, want %+v", fa.lastReq, want)
	}
}

func TestRunAnalysisValidationFailureSkipsNetwork(t *testing.T) {
	fa := &fakeAnalyzer{}
	c := newController(fa)
	c.UpdateProperty(models.PropertyPatch{City: models.Ptr("delhi"), InvestmentHorizonYears: models.Ptr(0)})
	c.UpdateFinancial(models.FinancialPatch{AppreciationRatePercent: models.Ptr(30.0)})

	if c.RunAnalysis(context.Background()) {
		t.Fatal("expected failure")
	}
	if n := atomic.LoadInt32(&fa.calls); n != 0 {
		t.Errorf("network calls: got %d, want 0", n)
	}
	s := c.State()
	if s.Phase != models.PhaseFailed || s.Outcome.Err == nil {
		t.Fatalf("state: %+v", s)
	}
	e := s.Outcome.Err
	if e.Kind != models.ErrorValidation || e.StatusCode != 400 {
		t.Errorf("error: got %+v", e)
	}
	// city, price, rent, appreciation, horizon
	if lines := strings.Split(e.Message, "\n"); len(lines) != 5 {
		t.Errorf("message should join every violation, got %d lines: %q", len(lines), e.Message)
	}
	if s.Property.City != "delhi" {
		t.Error("inputs must survive a failed attempt")
	}
}

func TestRunAnalysisIsSingleFlight(t *testing.T) {
	fa := &fakeAnalyzer{
		release: make(chan struct{}),
		started: make(chan struct{}),
		result:  &models.DealAnalysis{InvestmentScore: 70},
	}
	c := newController(fa)
	fillValidDeal(c)

	results := make(chan bool, 2)
	go func() { results <- c.RunAnalysis(context.Background()) }()
	<-fa.started

	if s := c.State(); !s.InFlight || s.Phase != models.PhaseSubmitting {
		t.Errorf("expected in-flight submitting state, got %+v", s)
	}

	go func() { results <- c.RunAnalysis(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	close(fa.release)

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			if !ok {
				t.Errorf("caller %d: expected success", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("RunAnalysis did not return")
		}
	}
	if n := atomic.LoadInt32(&fa.calls); n != 1 {
		t.Errorf("network calls: got %d, want 1", n)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    models.ErrorKind
		status  int
		message string
	}{
		{"rejected with detail", &engine.APIError{StatusCode: 400, Message: "Invalid input", Detail: "loan_years too large"},
			models.ErrorRejected, 400, "loan_years too large"},
		{"rejected without detail", &engine.APIError{StatusCode: 400, Message: "Invalid input"},
			models.ErrorRejected, 400, "Invalid input"},
		{"engine failure", &engine.APIError{StatusCode: 500, Message: "HTTP 500: Internal Server Error"},
			models.ErrorEngine, 500, MsgEngineFailure},
		{"bad gateway", &engine.APIError{StatusCode: 502, Message: "HTTP 502: Bad Gateway"},
			models.ErrorEngine, 502, MsgEngineFailure},
		{"transport", &engine.TransportError{Op: "POST", URL: "http://x", Err: errors.New("connection refused")},
			models.ErrorTransport, 0, MsgUnreachable},
		{"wrapped transport", fmt.Errorf("submit: %w", &engine.TransportError{Err: errors.New("dial")}),
			models.ErrorTransport, 0, MsgUnreachable},
		{"other", errors.New("engine: decode analysis: unexpected EOF"),
			models.ErrorUnexpected, 0, MsgUnexpected},
	}

	for _, tt := range tests {
		got := Classify(tt.err)
		if got.Kind != tt.kind || got.StatusCode != tt.status || got.Message != tt.message {
			t.Errorf("%s: got %+v, want kind=%s status=%d message=%q", tt.name, got, tt.kind, tt.status, tt.message)
		}
	}
}

func TestRunAnalysisEngineFailureKeepsInputs(t *testing.T) {
	fa := &fakeAnalyzer{err: &engine.APIError{StatusCode: 500, Message: "HTTP 500: Internal Server Error"}}
	c := newController(fa)
	fillValidDeal(c)

	if c.RunAnalysis(context.Background()) {
		t.Fatal("expected failure")
	}
	s := c.State()
	if s.Outcome.Err == nil || s.Outcome.Err.Message != MsgEngineFailure || s.Outcome.Err.StatusCode != 500 {
		t.Errorf("error: got %+v", s.Outcome.Err)
	}
	if s.Property.PurchasePrice != "3,500,000" {
		t.Errorf("inputs reset after failure: %+v", s.Property)
	}
}

func TestClearErrorKeepsInputs(t *testing.T) {
	fa := &fakeAnalyzer{err: &engine.TransportError{Err: errors.New("refused")}}
	c := newController(fa)
	fillValidDeal(c)
	c.RunAnalysis(context.Background())

	c.ClearError()
	s := c.State()
	if s.Phase != models.PhaseIdle || s.Outcome.Err != nil {
		t.Errorf("after ClearError: %+v", s)
	}
	if s.Property.City != "Mumbai" {
		t.Errorf("ClearError must keep inputs, got %+v", s.Property)
	}

	// Retry with the same inputs.
	fa.err = nil
	fa.result = &models.DealAnalysis{InvestmentScore: 60}
	if !c.RunAnalysis(context.Background()) {
		t.Error("retry should succeed")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	fa := &fakeAnalyzer{result: &models.DealAnalysis{InvestmentScore: 60}}
	c := newController(fa)
	fillValidDeal(c)
	c.RunAnalysis(context.Background())

	c.Reset()
	s := c.State()
	if s.Phase != models.PhaseIdle || !s.Outcome.Empty() || s.Property.City != "" || s.Property.InvestmentHorizonYears != 5 {
		t.Errorf("after Reset: %+v", s)
	}
}

func TestResetDiscardsInFlightOutcome(t *testing.T) {
	fa := &fakeAnalyzer{
		release: make(chan struct{}),
		started: make(chan struct{}),
		result:  &models.DealAnalysis{InvestmentScore: 90},
	}
	c := newController(fa)
	fillValidDeal(c)

	done := make(chan bool, 1)
	go func() { done <- c.RunAnalysis(context.Background()) }()
	<-fa.started
	c.Reset()
	close(fa.release)

	if ok := <-done; ok {
		t.Error("stale attempt should not report success")
	}
	if s := c.State(); !s.Outcome.Empty() || s.Phase != models.PhaseIdle {
		t.Errorf("stale outcome written after reset: %+v", s)
	}
}

func TestRunAfterResetWaitsForDiscardedAttempt(t *testing.T) {
	fa := &fakeAnalyzer{
		release: make(chan struct{}),
		started: make(chan struct{}),
		result:  &models.DealAnalysis{InvestmentScore: 64},
	}
	c := newController(fa)
	fillValidDeal(c)

	first := make(chan bool, 1)
	go func() { first <- c.RunAnalysis(context.Background()) }()
	<-fa.started
	c.Reset()
	fillValidDeal(c)

	second := make(chan bool, 1)
	go func() { second <- c.RunAnalysis(context.Background()) }()
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fa.calls); n != 1 {
		t.Fatalf("network calls before the discarded attempt returned: got %d, want 1", n)
	}
	close(fa.release)

	if ok := <-first; ok {
		t.Error("discarded attempt should not report success")
	}
	select {
	case ok := <-second:
		if !ok {
			t.Error("attempt after reset should succeed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunAnalysis after reset did not return")
	}

	fa.mu.Lock()
	peak := fa.peak
	fa.mu.Unlock()
	if peak != 1 {
		t.Errorf("concurrent network calls: got %d, want 1", peak)
	}
	if n := atomic.LoadInt32(&fa.calls); n != 2 {
		t.Errorf("network calls: got %d, want 2", n)
	}
	if s := c.State(); s.Phase != models.PhaseSucceeded || s.Outcome.Result == nil || s.Outcome.Result.InvestmentScore != 64 {
		t.Errorf("state after second attempt: %+v", s)
	}
}

func TestRunAfterResetGivesUpOnCancel(t *testing.T) {
	fa := &fakeAnalyzer{
		release: make(chan struct{}),
		started: make(chan struct{}),
		result:  &models.DealAnalysis{InvestmentScore: 50},
	}
	c := newController(fa)
	fillValidDeal(c)

	go c.RunAnalysis(context.Background())
	<-fa.started
	c.Reset()
	fillValidDeal(c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if c.RunAnalysis(ctx) {
		t.Error("expected false once the wait was cancelled")
	}
	if n := atomic.LoadInt32(&fa.calls); n != 1 {
		t.Errorf("network calls: got %d, want 1", n)
	}
	close(fa.release)
}

func TestTakeResultHandsOffAndResets(t *testing.T) {
	fa := &fakeAnalyzer{result: &models.DealAnalysis{InvestmentScore: 77}}
	c := newController(fa)
	if c.TakeResult() != nil {
		t.Error("TakeResult before any attempt should be nil")
	}

	fillValidDeal(c)
	c.RunAnalysis(context.Background())
	res := c.TakeResult()
	if res == nil || res.InvestmentScore != 77 {
		t.Fatalf("TakeResult: got %+v", res)
	}
	if s := c.State(); !s.Outcome.Empty() || s.Property.City != "" {
		t.Errorf("session not reset after hand-off: %+v", s)
	}
}
