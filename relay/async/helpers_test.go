package async

import (
	"context"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"

	"github.com/ierezell/ml-infra/common/logger"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

func testCtx() context.Context {
	return gmw.SetLogger(context.Background(), logger.Logger)
}

func asQuestionError(err error) *model.QuestionError {
	var qe *model.QuestionError
	if errors.As(err, &qe) {
		return qe
	}
	return nil
}

// eventLog records the order of store and trigger calls.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingStore wraps a MemoryStore and can inject Put/Get failures.
type recordingStore struct {
	*storage.MemoryStore
	log    *eventLog
	putErr error
	puts   int
}

func (s *recordingStore) Put(ctx context.Context, loc storage.Location, body []byte) error {
	s.puts++
	s.log.add("put " + loc.String())
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, loc, body)
}

// fakeTrigger checks that the descriptor is readable when invoked.
type fakeTrigger struct {
	store   storage.ObjectStore
	log     *eventLog
	err     error
	output  string
	failure string
	calls   int
	inputs  []storage.Location
	bodies  [][]byte
}

func (t *fakeTrigger) Invoke(ctx context.Context, input storage.Location, inferenceID string) (*Invocation, error) {
	t.calls++
	t.inputs = append(t.inputs, input)
	if body, err := t.store.Get(ctx, input); err == nil {
		t.bodies = append(t.bodies, body)
		t.log.add("invoke " + input.String() + " (descriptor present)")
	} else {
		t.log.add("invoke " + input.String() + " (descriptor missing)")
	}
	if t.err != nil {
		return nil, t.err
	}
	output := t.output
	if output == "" {
		output = "s3://qgen-output/results/" + inferenceID + ".out"
	}
	return &Invocation{OutputLocation: output, FailureLocation: t.failure, InferenceID: inferenceID}, nil
}

// scriptedStore answers Get from a script; Put is unused by the poller.
type scriptedStore struct {
	mu       sync.Mutex
	get      func(loc storage.Location, call int) ([]byte, error)
	calls    int
	putCalls int
}

func (s *scriptedStore) Put(context.Context, storage.Location, []byte) error {
	s.mu.Lock()
	s.putCalls++
	s.mu.Unlock()
	return nil
}

func (s *scriptedStore) Get(_ context.Context, loc storage.Location) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.get(loc, call)
}

func notFound(loc storage.Location) error {
	return errors.Wrapf(storage.ErrNotFound, "get %s", loc)
}

// virtualClock replaces wall time and sleeping in Poller.
type virtualClock struct {
	now    time.Time
	sleeps []time.Duration
	// onSleep may cancel the caller's context to simulate abandonment.
	onSleep func(n int)
}

func (c *virtualClock) Now() time.Time { return c.now }

func (c *virtualClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

func (c *virtualClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.sleeps {
		sum += d
	}
	return sum
}

func newVirtualPoller(store storage.ObjectStore, cfg PollerConfig, recorder Recorder, clock *virtualClock) *Poller {
	p := NewPoller(store, cfg, recorder)
	p.now = clock.Now
	p.sleep = clock.Sleep
	p.rnd = func() float64 { return 0.5 }
	return p
}

func pendingRecord(submittedAt time.Time) *JobRecord {
	return &JobRecord{
		ID:          "job_test",
		RequestID:   "req-test",
		Handle:      storage.Location{Bucket: "qgen-output", Key: "results/req-test.out"},
		SubmittedAt: submittedAt,
		State:       StatePending,
	}
}
