package models

import "fmt"

// Phase is a step of the analysis session state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrorKind tells the UI which affordance fits a failed analysis.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorRejected   ErrorKind = "rejected"
	ErrorEngine     ErrorKind = "engine"
	ErrorTransport  ErrorKind = "transport"
	ErrorUnexpected ErrorKind = "unexpected"
)

// AnalysisError is the classified failure stored on the session. Message is
// already user-facing; StatusCode is 0 when the engine never answered.
type AnalysisError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Detail     string
}

func (e *AnalysisError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Outcome is the result of the last analysis attempt. At most one of Result
// and Err is set; both nil means no attempt has finished.
type Outcome struct {
	Result *DealAnalysis
	Err    *AnalysisError
}

// Empty reports whether no attempt has resolved yet.
func (o Outcome) Empty() bool {
	return o.Result == nil && o.Err == nil
}

// SessionState is a snapshot of one analysis session.
type SessionState struct {
	Property  PropertyInput
	Financial FinancialInput
	Phase     Phase
	Outcome   Outcome
	InFlight  bool
}
