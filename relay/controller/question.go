// Package controller runs question generation requests through the
// normalizer, the compute back end and the reassembler.
package controller

import (
	"context"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/relay/async"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/prompt"
)

// JobRepository stores submitted jobs with the layout needed to regroup
// their outputs.
type JobRepository interface {
	Create(ctx context.Context, rec *async.JobRecord, layout prompt.Layout) error
	Load(ctx context.Context, id string) (*async.JobRecord, prompt.Layout, error)
}

// ResultCache keeps regrouped results of Ready jobs.
type ResultCache interface {
	Get(ctx context.Context, jobID string) (model.GeneratedQuestions, bool, error)
	Set(ctx context.Context, jobID string, results model.GeneratedQuestions) error
}

// ServiceConfig holds request-independent knobs.
type ServiceConfig struct {
	Defaults        model.DecodingConfig
	SyncBatchSize   int
	SyncConcurrency int
}

// Dependencies are the clients a QuestionService is built from. Submitter and
// Poller are required for the async routes, Generator for the sync route.
type Dependencies struct {
	Submitter *async.Submitter
	Poller    *async.Poller
	Generator async.Generator
	Jobs      JobRepository
	Cache     ResultCache
}

// QuestionService is the request pipeline shared by every route.
type QuestionService struct {
	submitter   *async.Submitter
	poller      *async.Poller
	generator   async.Generator
	jobs        JobRepository
	cache       ResultCache
	defaults    model.DecodingConfig
	batchSize   int
	concurrency int
}

// NewQuestionService wires deps together. Jobs is required.
func NewQuestionService(deps Dependencies, cfg ServiceConfig) (*QuestionService, error) {
	if deps.Jobs == nil {
		return nil, errors.New("question service needs a job repository")
	}
	if (deps.Submitter == nil) != (deps.Poller == nil) {
		return nil, errors.New("submitter and poller must be configured together")
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, errors.Wrap(err, "default decoding config")
	}
	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = 16
	}
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 1
	}

	return &QuestionService{
		submitter:   deps.Submitter,
		poller:      deps.Poller,
		generator:   deps.Generator,
		jobs:        deps.Jobs,
		cache:       deps.Cache,
		defaults:    cfg.Defaults,
		batchSize:   cfg.SyncBatchSize,
		concurrency: cfg.SyncConcurrency,
	}, nil
}

// AsyncEnabled reports whether the async routes can serve requests.
func (s *QuestionService) AsyncEnabled() bool { return s.submitter != nil }

// SyncEnabled reports whether a realtime generator is configured.
func (s *QuestionService) SyncEnabled() bool { return s.generator != nil }

// prepared is a normalized request ready for compute.
type prepared struct {
	prompts prompt.PromptBatch
	layout  prompt.Layout
	cfg     model.DecodingConfig
}

func (s *QuestionService) prepare(req *model.QuestionRequest) (*prepared, error) {
	prompts, mapping, err := prompt.Normalize(req)
	if err != nil {
		return nil, err
	}

	cfg := s.defaults.Merge(req.Parameters)
	if err := cfg.Validate(); err != nil {
		return nil, model.WrapError(model.KindMalformedInput, err, err.Error())
	}

	return &prepared{
		prompts: prompts,
		layout: prompt.Layout{
			Mapping:            mapping,
			NumContexts:        len(req.Contexts),
			NumReturnSequences: cfg.NumReturnSequences,
		},
		cfg: cfg,
	}, nil
}

// GenerateAsync submits req as an async job and blocks until the job is
// terminal or ctx is done.
func (s *QuestionService) GenerateAsync(ctx context.Context, requestID string, req *model.QuestionRequest) (*model.QuestionResponse, error) {
	if !s.AsyncEnabled() {
		return nil, model.NewError(model.KindUnavailable, "async generation is not configured")
	}

	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if len(p.prompts) == 0 {
		results, err := prompt.ReassembleLayout(nil, p.layout)
		if err != nil {
			return nil, err
		}
		return &model.QuestionResponse{Results: results}, nil
	}

	rec, err := s.submit(ctx, requestID, p)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(context.WithoutCancel(ctx), rec, p.layout); err != nil {
		// the job is already running; keep waiting without a durable record
		gmw.GetLogger(ctx).Error("failed to persist job record",
			zap.String("job_id", rec.ID), zap.Error(err))
	}

	if err := s.poller.Wait(ctx, rec); err != nil {
		return nil, err
	}

	results, err := s.regroup(ctx, rec, p.layout)
	if err != nil {
		return nil, err
	}
	return &model.QuestionResponse{Results: results, JobID: rec.ID}, nil
}

// SubmitAsync submits req and returns as soon as the job is triggered. The
// result is collected through JobStatus.
func (s *QuestionService) SubmitAsync(ctx context.Context, requestID string, req *model.QuestionRequest) (*model.JobSubmittedResponse, error) {
	if !s.AsyncEnabled() {
		return nil, model.NewError(model.KindUnavailable, "async generation is not configured")
	}

	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	rec, err := s.submit(ctx, requestID, p)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(context.WithoutCancel(ctx), rec, p.layout); err != nil {
		return nil, model.WrapError(model.KindInternal, err, "persist job record").WithJobID(rec.ID)
	}

	return &model.JobSubmittedResponse{
		JobID:     rec.ID,
		RequestID: rec.RequestID,
		State:     string(rec.State),
	}, nil
}

func (s *QuestionService) submit(ctx context.Context, requestID string, p *prepared) (*async.JobRecord, error) {
	rec, err := s.submitter.Submit(ctx, requestID, p.prompts, p.cfg)
	if err != nil {
		return nil, err
	}

	gmw.GetLogger(ctx).Info("async job submitted",
		zap.String("job_id", rec.ID),
		zap.String("request_id", requestID),
		zap.Int("prompts", len(p.prompts)),
		zap.String("output", rec.Handle.String()))
	return rec, nil
}

// JobStatus reports the state of job id after at most one probe of its
// result. Failed and TimedOut jobs carry their error in the response body.
func (s *QuestionService) JobStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	if !s.AsyncEnabled() {
		return nil, model.NewError(model.KindUnavailable, "async generation is not configured")
	}

	rec, layout, err := s.jobs.Load(ctx, id)
	if err != nil {
		if errors.Is(err, async.ErrJobNotFound) {
			return nil, model.NewError(model.KindNotFound, "job %s not found", id)
		}
		return nil, model.WrapError(model.KindInternal, err, "load job record")
	}

	if rec.State == async.StatePending {
		if err := s.poller.PollOnce(ctx, rec); err != nil && !rec.State.Terminal() {
			return nil, err
		}
	}

	resp := &model.JobStatusResponse{
		JobID:       rec.ID,
		State:       string(rec.State),
		Attempts:    rec.Attempts,
		SubmittedAt: rec.SubmittedAt,
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		resp.FinishedAt = &finished
	}

	switch rec.State {
	case async.StateReady:
		results, err := s.regroup(ctx, rec, layout)
		if err != nil {
			return nil, err
		}
		resp.Results = results
	case async.StateFailed, async.StateTimedOut:
		resp.Error = &model.ToErrorWithStatusCode(async.TerminalError(rec)).Error
	}
	return resp, nil
}

// regroup turns the flat outputs of a Ready job into per-context buckets,
// going through the result cache when one is configured.
func (s *QuestionService) regroup(ctx context.Context, rec *async.JobRecord, layout prompt.Layout) (model.GeneratedQuestions, error) {
	lg := gmw.GetLogger(ctx).With(zap.String("job_id", rec.ID))
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, rec.ID)
		if err != nil {
			lg.Warn("failed to read result cache", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	results, err := prompt.ReassembleLayout(rec.Outputs, layout)
	if err != nil {
		lg.Error("failed to reassemble job outputs", zap.Int("outputs", len(rec.Outputs)), zap.Error(err))
		return nil, model.AsQuestionError(err).WithJobID(rec.ID)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec.ID, results); err != nil {
			lg.Warn("failed to write result cache", zap.Error(err))
		}
	}
	return results, nil
}
