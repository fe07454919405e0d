// Package async hands a prompt batch to out-of-band compute and waits for the
// result object to appear.
package async

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/ierezell/ml-infra/relay/storage"
)

// State is the lifecycle state of a job. Pending is the only non-terminal state.
type State string

const (
	StatePending  State = "pending"
	StateReady    State = "ready"
	StateFailed   State = "failed"
	StateTimedOut State = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateTimedOut
}

// ErrJobNotFound is returned by repositories for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobRecord tracks one submitted job. It is owned by the flow that created it;
// only the Poller changes State, Attempts, UnrecordedAttempts, FinishedAt, Error
// and Outputs.
type JobRecord struct {
	ID            string
	RequestID     string
	InputLocation storage.Location
	// Handle is where the job writes its output.
	Handle storage.Location
	// FailureHandle, when set, is where the job writes an error report instead.
	FailureHandle *storage.Location
	InferenceID   string
	SubmittedAt   time.Time
	FinishedAt    time.Time
	Attempts      int
	// UnrecordedAttempts counts attempts made since the last successful
	// Recorder.Update. Recorders add it to the stored count; Attempts is only
	// this poller's view when several poll the same job.
	UnrecordedAttempts int
	State              State
	Error              string
	// Outputs is the flat generated text, set once State is Ready.
	Outputs []string
}

// Recorder persists record changes. Failures are logged by the caller and
// never change the outcome of a poll.
type Recorder interface {
	Update(ctx context.Context, rec *JobRecord) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec *JobRecord) error

func (f RecorderFunc) Update(ctx context.Context, rec *JobRecord) error { return f(ctx, rec) }

type nopRecorder struct{}

func (nopRecorder) Update(context.Context, *JobRecord) error { return nil }
