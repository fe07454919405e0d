package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/ierezell/ml-infra/common"
	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/relay/async"
	"github.com/ierezell/ml-infra/relay/prompt"
	"github.com/ierezell/ml-infra/relay/storage"
)

// Job is the persisted form of an async.JobRecord plus the layout needed to
// regroup its outputs.
type Job struct {
	Id                 string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RequestId          string `json:"request_id" gorm:"type:varchar(64);index"`
	InputLocation      string `json:"input_location" gorm:"type:varchar(1024)"`
	OutputLocation     string `json:"output_location" gorm:"type:varchar(1024)"`
	FailureLocation    string `json:"failure_location" gorm:"type:varchar(1024)"`
	InferenceId        string `json:"inference_id" gorm:"type:varchar(64)"`
	State              string `json:"state" gorm:"type:varchar(16);index"`
	Attempts           int    `json:"attempts"`
	NumContexts        int    `json:"num_contexts"`
	NumReturnSequences int    `json:"num_return_sequences"`
	AnswerMapping      string `json:"answer_mapping" gorm:"type:text"`
	Outputs            string `json:"outputs" gorm:"type:text"`
	Error              string `json:"error" gorm:"type:text"`
	SubmittedAt        int64  `json:"submitted_at" gorm:"bigint;index"`
	FinishedAt         int64  `json:"finished_at" gorm:"bigint;index"`
	CreatedAt          int64  `json:"created_at" gorm:"bigint;autoCreateTime:milli"`
	UpdatedAt          int64  `json:"updated_at" gorm:"bigint;autoUpdateTime:milli"`
}

// JobStore keeps job records in a relational database. It implements
// async.Recorder.
type JobStore struct {
	db      *gorm.DB
	dialect common.Dialect
}

// NewJobStore wraps an opened and migrated database.
func NewJobStore(db *gorm.DB, dialect common.Dialect) *JobStore {
	return &JobStore{db: db, dialect: dialect}
}

// Create inserts a freshly submitted job.
func (s *JobStore) Create(ctx context.Context, rec *async.JobRecord, layout prompt.Layout) error {
	job, err := newJob(rec, layout)
	if err != nil {
		return errors.WithStack(err)
	}

	return runWithSQLiteBusyRetry(ctx, s.dialect, func() error {
		if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
			return errors.Wrapf(err, "insert job %s", rec.ID)
		}
		return nil
	})
}

// Update writes the poll-owned fields of rec. Attempts grow by
// rec.UnrecordedAttempts so concurrent pollers of one job add up.
func (s *JobStore) Update(ctx context.Context, rec *async.JobRecord) error {
	outputs, err := encodeOutputs(rec.Outputs)
	if err != nil {
		return errors.WithStack(err)
	}

	return runWithSQLiteBusyRetry(ctx, s.dialect, func() error {
		result := s.db.WithContext(ctx).
			Model(&Job{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{
				"state":       string(rec.State),
				"attempts":    gorm.Expr("attempts + ?", rec.UnrecordedAttempts),
				"error":       rec.Error,
				"outputs":     outputs,
				"finished_at": helper.UnixMilliOrZero(rec.FinishedAt),
			})
		if result.Error != nil {
			return errors.Wrapf(result.Error, "update job %s", rec.ID)
		}
		if result.RowsAffected == 0 {
			return errors.Wrapf(async.ErrJobNotFound, "update job %s", rec.ID)
		}
		return nil
	})
}

// Load returns the record and layout of job id, or an error wrapping
// async.ErrJobNotFound.
func (s *JobStore) Load(ctx context.Context, id string) (*async.JobRecord, prompt.Layout, error) {
	var job Job
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, prompt.Layout{}, errors.Wrapf(async.ErrJobNotFound, "job %s", id)
		}
		return nil, prompt.Layout{}, errors.Wrapf(err, "load job %s", id)
	}

	return job.toRecord()
}

// PurgeFinishedJobs deletes terminal jobs that finished before cutoff.
func (s *JobStore) PurgeFinishedJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := runWithSQLiteBusyRetry(ctx, s.dialect, func() error {
		result := s.db.WithContext(ctx).
			Where("state <> ? AND finished_at > 0 AND finished_at < ?", string(async.StatePending), cutoff.UnixMilli()).
			Delete(&Job{})
		if result.Error != nil {
			return errors.Wrap(result.Error, "purge finished jobs")
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// Ping checks that the database is reachable.
func (s *JobStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(sqlDB.PingContext(ctx))
}

func newJob(rec *async.JobRecord, layout prompt.Layout) (*Job, error) {
	mapping, err := json.Marshal(layout.Mapping)
	if err != nil {
		return nil, errors.Wrap(err, "encode answer mapping")
	}
	outputs, err := encodeOutputs(rec.Outputs)
	if err != nil {
		return nil, err
	}

	job := &Job{
		Id:                 rec.ID,
		RequestId:          rec.RequestID,
		InputLocation:      rec.InputLocation.String(),
		OutputLocation:     rec.Handle.String(),
		InferenceId:        rec.InferenceID,
		State:              string(rec.State),
		Attempts:           rec.Attempts,
		NumContexts:        layout.NumContexts,
		NumReturnSequences: layout.NumReturnSequences,
		AnswerMapping:      string(mapping),
		Outputs:            outputs,
		Error:              rec.Error,
		SubmittedAt:        helper.UnixMilliOrZero(rec.SubmittedAt),
		FinishedAt:         helper.UnixMilliOrZero(rec.FinishedAt),
	}
	if rec.FailureHandle != nil {
		job.FailureLocation = rec.FailureHandle.String()
	}
	return job, nil
}

func (j *Job) toRecord() (*async.JobRecord, prompt.Layout, error) {
	input, err := storage.ParseLocation(j.InputLocation)
	if err != nil {
		return nil, prompt.Layout{}, errors.Wrapf(err, "job %s input location", j.Id)
	}
	output, err := storage.ParseLocation(j.OutputLocation)
	if err != nil {
		return nil, prompt.Layout{}, errors.Wrapf(err, "job %s output location", j.Id)
	}

	rec := &async.JobRecord{
		ID:            j.Id,
		RequestID:     j.RequestId,
		InputLocation: input,
		Handle:        output,
		InferenceID:   j.InferenceId,
		SubmittedAt:   helper.FromUnixMilli(j.SubmittedAt),
		FinishedAt:    helper.FromUnixMilli(j.FinishedAt),
		Attempts:      j.Attempts,
		State:         async.State(j.State),
		Error:         j.Error,
	}
	if j.FailureLocation != "" {
		failure, err := storage.ParseLocation(j.FailureLocation)
		if err != nil {
			return nil, prompt.Layout{}, errors.Wrapf(err, "job %s failure location", j.Id)
		}
		rec.FailureHandle = &failure
	}
	if j.Outputs != "" {
		if err := json.Unmarshal([]byte(j.Outputs), &rec.Outputs); err != nil {
			return nil, prompt.Layout{}, errors.Wrapf(err, "job %s outputs", j.Id)
		}
	}

	layout := prompt.Layout{
		NumContexts:        j.NumContexts,
		NumReturnSequences: j.NumReturnSequences,
	}
	if j.AnswerMapping != "" {
		if err := json.Unmarshal([]byte(j.AnswerMapping), &layout.Mapping); err != nil {
			return nil, prompt.Layout{}, errors.Wrapf(err, "job %s answer mapping", j.Id)
		}
	}
	return rec, layout, nil
}

func encodeOutputs(outputs []string) (string, error) {
	if outputs == nil {
		return "", nil
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return "", errors.Wrap(err, "encode outputs")
	}
	return string(raw), nil
}
