// Package progress narrates a fixed sequence of processing captions while a
// deal analysis runs, and reports completion only when both the captions and
// the analysis have finished.
package progress

import (
	"context"
	"time"
)

// Stage is one caption and how long it stays active.
type Stage struct {
	Caption  string
	Duration time.Duration
}

// DefaultStages is the narration shown while the engine scores a deal.
var DefaultStages = []Stage{
	{Caption: "Analyzing market trends...", Duration: 1200 * time.Millisecond},
	{Caption: "Evaluating risk signals...", Duration: 1000 * time.Millisecond},
	{Caption: "Modeling ROI scenarios...", Duration: 1400 * time.Millisecond},
	{Caption: "Assessing neighborhood outlook...", Duration: 1100 * time.Millisecond},
	{Caption: "Generating investor narrative...", Duration: 1300 * time.Millisecond},
}

// DefaultGraceDelay is how long a failed caption stays on screen before the
// error is surfaced.
const DefaultGraceDelay = 600 * time.Millisecond

// StageState is the visual state of one caption.
type StageState string

const (
	StageActive    StageState = "active"
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
)

// StageEvent reports a caption changing state.
type StageEvent struct {
	Index   int
	Total   int
	Caption string
	State   StageState
}

// Status is how a Run ended.
type Status string

const (
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is returned by Run.
type Result struct {
	Status Status
	// Err is the surfaced error message when Status is StatusFailed.
	Err string
	// Completed is the number of captions that finished normally.
	Completed int
}

// Animator plays Stages alongside one submission. Callbacks are invoked
// from the goroutine calling Run, one at a time, and never after Run
// returns.
type Animator struct {
	Stages     []Stage
	GraceDelay time.Duration

	// OnStage is called for every caption transition.
	OnStage func(StageEvent)
	// OnDone is called once when both captions and submission succeeded.
	OnDone func()
	// OnError is called once with the surfaced error message.
	OnError func(msg string)
}

// New creates an Animator over DefaultStages.
func New() *Animator {
	return &Animator{Stages: DefaultStages, GraceDelay: DefaultGraceDelay}
}

// Run starts submit exactly once and advances the captions on their own
// timers. It returns when:
//   - every caption has completed and submit returned true (StatusDone);
//   - submit returned false and the grace delay has elapsed (StatusFailed);
//   - ctx is cancelled (StatusCancelled).
//
// submit runs on a context detached from ctx: cancelling ctx stops the
// narration but lets the submission settle on its own. errMsg is consulted
// after a failure to obtain the message to surface.
func (a *Animator) Run(ctx context.Context, submit func(context.Context) bool, errMsg func() string) Result {
	stages := a.Stages
	if len(stages) == 0 {
		stages = DefaultStages
	}
	total := len(stages)
	if ctx.Err() != nil {
		return Result{Status: StatusCancelled}
	}

	settled := make(chan bool, 1)
	go func() {
		settled <- submit(context.WithoutCancel(ctx))
	}()

	emit := func(idx int, state StageState) {
		if a.OnStage != nil {
			a.OnStage(StageEvent{Index: idx, Total: total, Caption: stages[idx].Caption, State: state})
		}
	}

	cursor := 0
	emit(cursor, StageActive)
	stageTimer := time.NewTimer(stages[cursor].Duration)
	defer stageTimer.Stop()
	stageC := stageTimer.C

	var (
		graceTimer *time.Timer
		graceC     <-chan time.Time
		// Join barrier: both flags must be set before reporting done.
		captionsDone bool
		networkOK    bool
	)
	defer func() {
		if graceTimer != nil {
			graceTimer.Stop()
		}
	}()

	for {
		// select picks among ready cases at random, so a timer firing
		// alongside cancellation must not get one more callback out.
		if ctx.Err() != nil {
			return Result{Status: StatusCancelled, Completed: cursor}
		}
		select {
		case <-ctx.Done():
			return Result{Status: StatusCancelled, Completed: cursor}

		case <-stageC:
			if cursor < total-1 {
				emit(cursor, StageCompleted)
				cursor++
				emit(cursor, StageActive)
				stageTimer.Reset(stages[cursor].Duration)
				break
			}
			// The last caption keeps spinning until the submission settles.
			captionsDone = true
			stageC = nil
			if networkOK {
				emit(cursor, StageCompleted)
				cursor++
			}

		case ok := <-settled:
			settled = nil
			if ok {
				networkOK = true
				if captionsDone {
					emit(cursor, StageCompleted)
					cursor++
				}
				break
			}
			// Stop narrating and flag the caption the user is looking at.
			stageTimer.Stop()
			stageC = nil
			emit(cursor, StageFailed)
			graceTimer = time.NewTimer(a.GraceDelay)
			graceC = graceTimer.C

		case <-graceC:
			if ctx.Err() != nil {
				return Result{Status: StatusCancelled, Completed: cursor}
			}
			msg := ""
			if errMsg != nil {
				msg = errMsg()
			}
			if a.OnError != nil {
				a.OnError(msg)
			}
			return Result{Status: StatusFailed, Err: msg, Completed: cursor}
		}

		if captionsDone && networkOK {
			if a.OnDone != nil {
				a.OnDone()
			}
			return Result{Status: StatusDone, Completed: total}
		}
	}
}
