package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/stretchr/testify/require"

	"github.com/ierezell/ml-infra/common/logger"
	"github.com/ierezell/ml-infra/relay/async"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/prompt"
	"github.com/ierezell/ml-infra/relay/storage"
)

func testCtx() context.Context {
	return gmw.SetLogger(context.Background(), logger.Logger)
}

func requireKind(t *testing.T, err error, kind model.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var qe *model.QuestionError
	require.True(t, errors.As(err, &qe), "expected QuestionError, got %T: %v", err, err)
	require.Equal(t, kind, qe.Kind)
}

// memoryJobs is a JobRepository and async.Recorder backed by a map.
type memoryJobs struct {
	mu      sync.Mutex
	records map[string]async.JobRecord
	layouts map[string]prompt.Layout
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{
		records: map[string]async.JobRecord{},
		layouts: map[string]prompt.Layout{},
	}
}

func (m *memoryJobs) Create(_ context.Context, rec *async.JobRecord, layout prompt.Layout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = *rec
	m.layouts[rec.ID] = layout
	return nil
}

func (m *memoryJobs) Update(_ context.Context, rec *async.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.ID]
	if !ok {
		return async.ErrJobNotFound
	}
	updated := *rec
	updated.Attempts = stored.Attempts + rec.UnrecordedAttempts
	updated.UnrecordedAttempts = 0
	m.records[rec.ID] = updated
	return nil
}

func (m *memoryJobs) Load(_ context.Context, id string) (*async.JobRecord, prompt.Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, prompt.Layout{}, errors.Wrapf(async.ErrJobNotFound, "job %s", id)
	}
	return &rec, m.layouts[id], nil
}

// countingCache is an in-memory ResultCache that counts hits.
type countingCache struct {
	mu      sync.Mutex
	entries map[string]model.GeneratedQuestions
	hits    int
}

func (c *countingCache) Get(_ context.Context, jobID string) (model.GeneratedQuestions, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[jobID]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *countingCache) Set(_ context.Context, jobID string, results model.GeneratedQuestions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]model.GeneratedQuestions{}
	}
	c.entries[jobID] = results
	return nil
}

// generatorFunc adapts a function to async.Generator.
type generatorFunc func(ctx context.Context, prompts []string, cfg model.DecodingConfig) ([]string, error)

func (f generatorFunc) Generate(ctx context.Context, prompts []string, cfg model.DecodingConfig) ([]string, error) {
	return f(ctx, prompts, cfg)
}

// silentTrigger accepts every job and never writes a result.
type silentTrigger struct{}

func (silentTrigger) Invoke(_ context.Context, _ storage.Location, inferenceID string) (*async.Invocation, error) {
	return &async.Invocation{
		OutputLocation: "s3://local-outputs/qgen/output/" + inferenceID + ".out",
		InferenceID:    inferenceID,
	}, nil
}

type fixture struct {
	store   *storage.MemoryStore
	jobs    *memoryJobs
	cache   *countingCache
	service *QuestionService
}

func fastPoller(store storage.ObjectStore, recorder async.Recorder, deadline time.Duration) *async.Poller {
	return async.NewPoller(store, async.PollerConfig{
		Backoff: async.BackoffConfig{
			Initial:    2 * time.Millisecond,
			Max:        10 * time.Millisecond,
			Multiplier: 2,
		},
		Deadline: deadline,
	}, recorder)
}

// newFixture wires the service to the in-memory store. trigger defaults to
// loopback compute over gen.
func newFixture(t *testing.T, trigger async.Trigger, gen async.Generator, deadline time.Duration) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	if trigger == nil {
		trigger = async.NewLoopbackTrigger(store, gen, "local-outputs", "qgen")
	}
	submitter, err := async.NewSubmitter(store, trigger, async.SubmitterConfig{
		Bucket: "local-inputs",
		Prefix: "qgen/inputs",
	})
	require.NoError(t, err)

	jobs := newMemoryJobs()
	cache := &countingCache{}
	service, err := NewQuestionService(Dependencies{
		Submitter: submitter,
		Poller:    fastPoller(store, jobs, deadline),
		Generator: gen,
		Jobs:      jobs,
		Cache:     cache,
	}, ServiceConfig{
		Defaults:        model.DefaultDecodingConfig(),
		SyncBatchSize:   2,
		SyncConcurrency: 2,
	})
	require.NoError(t, err)

	return &fixture{store: store, jobs: jobs, cache: cache, service: service}
}

func referenceRequest() *model.QuestionRequest {
	return &model.QuestionRequest{
		Contexts: []string{
			"Sylvain Perron is the CEO of Botpress.",
			"Botpress is based in Quebec.",
		},
		Answers: [][]string{
			{"CEO", "Botpress"},
			{"Quebec"},
		},
	}
}
