package model

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/Laisky/errors/v2"
)

// QuestionRequest is the inbound body: one answer list per context.
type QuestionRequest struct {
	Answers    [][]string         `json:"answers"`
	Contexts   []string           `json:"contexts"`
	Parameters *DecodingOverrides `json:"parameters,omitempty"`
}

// rawQuestionRequest mirrors QuestionRequest with pointers so that JSON nulls
// can be told apart from empty values.
type rawQuestionRequest struct {
	Answers    [][]*string        `json:"answers"`
	Contexts   []*string          `json:"contexts"`
	Parameters *DecodingOverrides `json:"parameters"`
}

// DecodeQuestionRequest strictly decodes body. Unknown keys, nulls, non-string
// entries, missing fields and trailing data are rejected as malformed input.
func DecodeQuestionRequest(body []byte) (*QuestionRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var raw rawQuestionRequest
	if err := dec.Decode(&raw); err != nil {
		return nil, WrapError(KindMalformedInput, err, "invalid request body: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, MalformedInput("invalid request body: unexpected data after the JSON object")
	}

	if raw.Answers == nil {
		return nil, MalformedInput("answers is required")
	}
	if raw.Contexts == nil {
		return nil, MalformedInput("contexts is required")
	}

	req := &QuestionRequest{
		Answers:    make([][]string, len(raw.Answers)),
		Contexts:   make([]string, len(raw.Contexts)),
		Parameters: raw.Parameters,
	}
	for i, c := range raw.Contexts {
		if c == nil {
			return nil, MalformedInput("contexts[%d] must be a string", i)
		}
		req.Contexts[i] = *c
	}
	for i, answers := range raw.Answers {
		if answers == nil {
			return nil, MalformedInput("answers[%d] must be a list of strings", i)
		}
		req.Answers[i] = make([]string, len(answers))
		for j, a := range answers {
			if a == nil {
				return nil, MalformedInput("answers[%d][%d] must be a string", i, j)
			}
			req.Answers[i][j] = *a
		}
	}

	return req, nil
}

// GeneratedQuestions holds one ordered list of questions per input context.
type GeneratedQuestions [][]string

// Count returns the total number of questions across all buckets.
func (g GeneratedQuestions) Count() int {
	n := 0
	for _, bucket := range g {
		n += len(bucket)
	}
	return n
}

// QuestionResponse is the outbound body of the generation routes.
type QuestionResponse struct {
	Results GeneratedQuestions `json:"results"`
	JobID   string             `json:"job_id,omitempty"`
}

// WorkDescriptor is the object written to the input bucket before the async job is triggered.
type WorkDescriptor struct {
	Inputs     []string       `json:"inputs"`
	Parameters DecodingConfig `json:"parameters"`
}

// JobSubmittedResponse answers POST /v1/jobs.
type JobSubmittedResponse struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	State     string `json:"state"`
}

// JobStatusResponse answers GET /v1/jobs/:id.
type JobStatusResponse struct {
	JobID       string             `json:"job_id"`
	State       string             `json:"state"`
	Attempts    int                `json:"attempts"`
	SubmittedAt time.Time          `json:"submitted_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Error       *Error             `json:"error,omitempty"`
	Results     GeneratedQuestions `json:"results,omitempty"`
}
