package async

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/common/random"
	"github.com/ierezell/ml-infra/monitor"
	"github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
)

// Invocation is what the compute trigger hands back: where the output (or the
// failure report) will eventually be written.
type Invocation struct {
	OutputLocation  string
	FailureLocation string
	InferenceID     string
}

// Trigger starts an asynchronous job reading its work descriptor from input.
type Trigger interface {
	Invoke(ctx context.Context, input storage.Location, inferenceID string) (*Invocation, error)
}

// SubmitterConfig locates work descriptors.
type SubmitterConfig struct {
	Bucket string
	Prefix string
}

// Submitter writes the work descriptor and then triggers the job, in that order.
// It never retries: a second trigger would compute and bill the batch twice.
type Submitter struct {
	store   storage.ObjectStore
	trigger Trigger
	bucket  string
	prefix  string
	now     func() time.Time
}

// NewSubmitter validates cfg and returns a Submitter.
func NewSubmitter(store storage.ObjectStore, trigger Trigger, cfg SubmitterConfig) (*Submitter, error) {
	if store == nil || trigger == nil {
		return nil, errors.New("submitter needs an object store and a trigger")
	}
	probe := storage.Location{Bucket: cfg.Bucket, Key: "probe"}
	if err := probe.Validate(); err != nil {
		return nil, errors.Wrap(err, "input bucket")
	}

	return &Submitter{
		store:   store,
		trigger: trigger,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		now:     time.Now,
	}, nil
}

// DescriptorLocation is the key of one job's work descriptor:
// {prefix}/{yyyy}/{mm}/{dd}/{requestID}/{jobID}.json. Request ids come from
// callers and may repeat; job ids never do.
func (s *Submitter) DescriptorLocation(requestID, jobID string, at time.Time) storage.Location {
	return storage.Location{
		Bucket: s.bucket,
		Key:    path.Join(s.prefix, at.UTC().Format("2006/01/02"), requestID, jobID+".json"),
	}
}

// Submit stores the descriptor for prompts and triggers the job. Any failure is
// a submission error and nothing is retried.
func (s *Submitter) Submit(ctx context.Context, requestID string, prompts []string, params model.DecodingConfig) (*JobRecord, error) {
	lg := gmw.GetLogger(ctx).With(zap.String("request_id", requestID))

	if !helper.IsValidRequestID(requestID) {
		monitor.RecordJobSubmitted("invalid_request_id")
		return nil, model.NewError(model.KindSubmission, "request id %q cannot be used as a descriptor key", requestID)
	}
	if err := params.Validate(); err != nil {
		return nil, model.WrapError(model.KindMalformedInput, err, err.Error())
	}

	if prompts == nil {
		prompts = []string{}
	}
	body, err := json.Marshal(model.WorkDescriptor{Inputs: prompts, Parameters: params})
	if err != nil {
		return nil, model.WrapError(model.KindSubmission, errors.WithStack(err), "encode work descriptor")
	}

	jobID := random.NewJobID()
	submittedAt := s.now().UTC()
	input := s.DescriptorLocation(requestID, jobID, submittedAt)
	if err := s.store.Put(ctx, input, body); err != nil {
		monitor.RecordJobSubmitted("store_error")
		lg.Error("failed to write work descriptor", zap.String("input", input.String()), zap.Error(err))
		return nil, model.WrapError(model.KindSubmission, err, "write work descriptor")
	}

	inv, err := s.trigger.Invoke(ctx, input, requestID)
	if err != nil {
		monitor.RecordJobSubmitted("trigger_error")
		lg.Error("failed to trigger async job", zap.String("input", input.String()), zap.Error(err))
		return nil, model.WrapError(model.KindSubmission, err, "trigger async job")
	}
	if inv == nil {
		monitor.RecordJobSubmitted("invalid_location")
		return nil, model.NewError(model.KindSubmission, "trigger returned no result location")
	}

	handle, err := storage.ParseLocation(inv.OutputLocation)
	if err != nil {
		monitor.RecordJobSubmitted("invalid_location")
		lg.Error("trigger returned a malformed output location",
			zap.String("output_location", inv.OutputLocation), zap.Error(err))
		return nil, model.WrapError(model.KindSubmission, err, "malformed output location")
	}

	rec := &JobRecord{
		ID:            jobID,
		RequestID:     requestID,
		InputLocation: input,
		Handle:        handle,
		InferenceID:   inv.InferenceID,
		SubmittedAt:   submittedAt,
		State:         StatePending,
	}
	if inv.FailureLocation != "" {
		failure, err := storage.ParseLocation(inv.FailureLocation)
		if err != nil {
			monitor.RecordJobSubmitted("invalid_location")
			lg.Error("trigger returned a malformed failure location",
				zap.String("failure_location", inv.FailureLocation), zap.Error(err))
			return nil, model.WrapError(model.KindSubmission, err, "malformed failure location")
		}
		rec.FailureHandle = &failure
	}

	monitor.RecordJobSubmitted("ok")
	lg.Info("async job submitted",
		zap.String("job_id", rec.ID),
		zap.String("input", input.String()),
		zap.String("output", handle.String()),
		zap.Int("prompts", len(prompts)))
	return rec, nil
}
