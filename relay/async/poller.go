package async

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/monitor"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

// DefaultDeadline bounds the wait for a result when none is configured.
const DefaultDeadline = 120 * time.Second

const maxFailureMessage = 1024

// PollerConfig configures the wait loop.
type PollerConfig struct {
	Backoff BackoffConfig
	// Deadline is measured from JobRecord.SubmittedAt.
	Deadline time.Duration
}

// Poller drives a JobRecord from Pending to Ready, Failed or TimedOut.
//
// Each attempt reads the output location once. Not-found keeps the job Pending,
// any other error fails it immediately, and the deadline wins over the attempt
// count. When the record has a failure location it is read after an output
// not-found, and its presence fails the job.
type Poller struct {
	store    storage.ObjectStore
	backoff  BackoffConfig
	deadline time.Duration
	recorder Recorder

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rnd   func() float64
}

// NewPoller returns a Poller reading from store. recorder may be nil.
func NewPoller(store storage.ObjectStore, cfg PollerConfig, recorder Recorder) *Poller {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}

	return &Poller{
		store:    store,
		backoff:  cfg.Backoff.normalized(),
		deadline: cfg.Deadline,
		recorder: recorder,
		now:      time.Now,
		sleep:    sleepContext,
		rnd:      rand.Float64,
	}
}

// Deadline returns the configured wait bound.
func (p *Poller) Deadline() time.Duration { return p.deadline }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait polls until rec is terminal or ctx is done. It returns nil once rec is
// Ready. A canceled caller leaves rec Pending so it can be resumed later.
func (p *Poller) Wait(ctx context.Context, rec *JobRecord) error {
	if rec.State.Terminal() {
		return TerminalError(rec)
	}

	lg := gmw.GetLogger(ctx).With(zap.String("job_id", rec.ID))
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return p.abandon(ctx, rec, err)
		}
		if p.elapsed(rec) >= p.deadline {
			p.finish(ctx, rec, StateTimedOut, "no result after "+p.deadline.String())
			return TerminalError(rec)
		}

		if err := p.attempt(ctx, rec); err != nil {
			return p.abandon(ctx, rec, err)
		}
		lg.Debug("poll attempt",
			zap.Int("attempt", rec.Attempts),
			zap.String("state", string(rec.State)))
		if rec.State.Terminal() {
			return TerminalError(rec)
		}

		remaining := p.deadline - p.elapsed(rec)
		if remaining <= 0 {
			p.finish(ctx, rec, StateTimedOut, "no result after "+p.deadline.String())
			return TerminalError(rec)
		}
		if err := p.sleep(ctx, min(p.backoff.Delay(n, p.rnd), remaining)); err != nil {
			return p.abandon(ctx, rec, err)
		}
	}
}

// PollOnce performs at most one attempt without waiting. rec.State tells the
// caller whether the job is still Pending.
func (p *Poller) PollOnce(ctx context.Context, rec *JobRecord) error {
	if rec.State.Terminal() {
		return TerminalError(rec)
	}
	if p.elapsed(rec) >= p.deadline {
		p.finish(ctx, rec, StateTimedOut, "no result after "+p.deadline.String())
		return TerminalError(rec)
	}

	if err := p.attempt(ctx, rec); err != nil {
		return p.abandon(ctx, rec, err)
	}
	gmw.GetLogger(ctx).Debug("poll attempt",
		zap.String("job_id", rec.ID),
		zap.Int("attempt", rec.Attempts),
		zap.String("state", string(rec.State)))
	return TerminalError(rec)
}

func (p *Poller) elapsed(rec *JobRecord) time.Duration {
	return p.now().Sub(rec.SubmittedAt)
}

// attempt probes the result once and applies the transition. It only returns
// an error when ctx ended during the probe.
func (p *Poller) attempt(ctx context.Context, rec *JobRecord) error {
	rec.Attempts++
	rec.UnrecordedAttempts++

	body, err := p.store.Get(ctx, rec.Handle)
	switch {
	case err == nil:
		outputs, perr := parseOutputs(body)
		if perr != nil {
			monitor.RecordPollAttempt("malformed")
			p.finish(ctx, rec, StateFailed, "malformed result object: "+perr.Error())
			return nil
		}
		monitor.RecordPollAttempt("ready")
		rec.Outputs = outputs
		p.finish(ctx, rec, StateReady, "")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case !storage.IsNotFound(err):
		monitor.RecordPollAttempt("failed")
		p.finish(ctx, rec, StateFailed, "read result: "+err.Error())
		return nil
	}

	if rec.FailureHandle != nil {
		report, ferr := p.store.Get(ctx, *rec.FailureHandle)
		switch {
		case ferr == nil:
			monitor.RecordPollAttempt("failed")
			p.finish(ctx, rec, StateFailed, "job reported failure: "+truncate(string(report), maxFailureMessage))
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !storage.IsNotFound(ferr):
			monitor.RecordPollAttempt("failed")
			p.finish(ctx, rec, StateFailed, "read failure report: "+ferr.Error())
			return nil
		}
	}

	monitor.RecordPollAttempt("not_found")
	p.persist(ctx, rec)
	return nil
}

func (p *Poller) finish(ctx context.Context, rec *JobRecord, state State, reason string) {
	rec.State = state
	rec.Error = reason
	rec.FinishedAt = p.now().UTC()
	wait := rec.FinishedAt.Sub(rec.SubmittedAt)
	monitor.RecordJobTerminal(string(state), wait)

	lg := gmw.GetLogger(ctx).With(
		zap.String("job_id", rec.ID),
		zap.Int("attempts", rec.Attempts),
		zap.Duration("wait", wait))
	switch state {
	case StateReady:
		lg.Info("async job ready", zap.Int("outputs", len(rec.Outputs)))
	case StateTimedOut:
		lg.Warn("async job timed out", zap.String("reason", reason))
	default:
		lg.Error("async job failed", zap.String("reason", reason))
	}

	p.persist(ctx, rec)
}

func (p *Poller) abandon(ctx context.Context, rec *JobRecord, cause error) error {
	gmw.GetLogger(ctx).Info("stop polling, caller went away",
		zap.String("job_id", rec.ID),
		zap.Int("attempts", rec.Attempts),
		zap.Error(cause))
	p.persist(ctx, rec)
	return model.WrapError(model.KindCanceled, cause, "request canceled while waiting for the job").WithJobID(rec.ID)
}

// persist hands rec to the recorder. Attempts that could not be recorded stay
// in UnrecordedAttempts and go out with the next update.
func (p *Poller) persist(ctx context.Context, rec *JobRecord) {
	if err := p.recorder.Update(context.WithoutCancel(ctx), rec); err != nil {
		gmw.GetLogger(ctx).Warn("failed to record job state",
			zap.String("job_id", rec.ID),
			zap.String("state", string(rec.State)),
			zap.Error(err))
		return
	}
	rec.UnrecordedAttempts = 0
}

// TerminalError converts a terminal non-Ready record into its QuestionError.
// It returns nil for Ready and Pending records.
func TerminalError(rec *JobRecord) error {
	switch rec.State {
	case StateFailed:
		return model.NewError(model.KindJobFailed, "%s", rec.Error).WithJobID(rec.ID)
	case StateTimedOut:
		return model.NewError(model.KindJobTimedOut, "%s", rec.Error).WithJobID(rec.ID)
	default:
		return nil
	}
}

// parseOutputs decodes the result object: a JSON array of strings.
func parseOutputs(body []byte) ([]string, error) {
	var raw []*string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode result array")
	}
	if raw == nil {
		return nil, errors.New("result is null")
	}

	outputs := make([]string, len(raw))
	for i, s := range raw {
		if s == nil {
			return nil, errors.Errorf("result[%d] is null", i)
		}
		outputs[i] = *s
	}
	return outputs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
