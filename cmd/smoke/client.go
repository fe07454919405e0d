package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ierezell/ml-infra/relay/model"
)

const (
	maxResponseBodySize = 1 << 20 // 1 MiB
	maxLoggedBodyBytes  = 2048
	jobPollInterval     = time.Second
	jobPollTimeout      = 150 * time.Second
)

// performRequest runs one variant end to end and returns its outcome.
func performRequest(ctx context.Context, client *http.Client, baseURL string, variant requestVariant) (result testResult) {
	start := time.Now()
	result = testResult{Variant: variant.Key, Label: variant.Header}
	defer func() {
		result.Duration = time.Since(start)
	}()

	payload := referencePayload
	if variant.Check == checkMalformed {
		payload = malformedPayload
	}
	body, err := json.Marshal(payload)
	if err != nil {
		result.ErrorReason = fmt.Sprintf("marshal payload: %v", err)
		return
	}
	result.RequestBody = shorten(string(body), maxLoggedBodyBytes)

	status, respBody, err := doJSON(ctx, client, http.MethodPost, baseURL+variant.Path, body)
	result.StatusCode = status
	result.ResponseBody = shorten(string(respBody), maxLoggedBodyBytes)
	if err != nil {
		result.ErrorReason = err.Error()
		return
	}

	switch variant.Check {
	case checkMalformed:
		result.Success, result.ErrorReason = evaluateMalformed(status, respBody)
	case checkJob:
		if status != http.StatusAccepted {
			result.ErrorReason = fmt.Sprintf("status %d: %s", status, snippet(respBody))
			return
		}
		result.Success, result.ErrorReason = awaitJob(ctx, client, baseURL, respBody)
	default:
		if status == http.StatusServiceUnavailable {
			result.Skipped = true
			result.ErrorReason = "endpoint not configured on the server"
			return
		}
		if status != http.StatusOK {
			result.ErrorReason = fmt.Sprintf("status %d: %s", status, snippet(respBody))
			return
		}
		result.Success, result.ErrorReason = evaluateResults(respBody)
	}
	return
}

func doJSON(ctx context.Context, client *http.Client, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ml-infra-smoke/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, respBody, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// evaluateResults checks that every context got at least one question.
func evaluateResults(body []byte) (bool, string) {
	var resp model.QuestionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Sprintf("decode response: %v", err)
	}
	return checkBuckets(resp.Results)
}

func checkBuckets(results model.GeneratedQuestions) (bool, string) {
	want := len(referencePayload["contexts"].([]string))
	if len(results) != want {
		return false, fmt.Sprintf("expected %d result buckets, got %d", want, len(results))
	}
	for i, bucket := range results {
		if len(bucket) == 0 {
			return false, fmt.Sprintf("result bucket %d is empty", i)
		}
	}
	return true, ""
}

// evaluateMalformed expects a non-retryable 400 in the standard error shape.
func evaluateMalformed(status int, body []byte) (bool, string) {
	if status != http.StatusBadRequest {
		return false, fmt.Sprintf("expected status 400, got %d: %s", status, snippet(body))
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Sprintf("decode error body: %v", err)
	}
	if resp.Error.Type != string(model.KindMalformedInput) {
		return false, fmt.Sprintf("expected error type %s, got %q", model.KindMalformedInput, resp.Error.Type)
	}
	if resp.Error.Retryable {
		return false, "malformed input must not be retryable"
	}
	return true, ""
}

// awaitJob polls the status route of a submitted job until it leaves pending.
func awaitJob(ctx context.Context, client *http.Client, baseURL string, submitBody []byte) (bool, string) {
	var submitted model.JobSubmittedResponse
	if err := json.Unmarshal(submitBody, &submitted); err != nil {
		return false, fmt.Sprintf("decode submit response: %v", err)
	}
	if submitted.JobID == "" {
		return false, "submit response has no job_id"
	}

	ctx, cancel := context.WithTimeout(ctx, jobPollTimeout)
	defer cancel()
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		status, body, err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/jobs/"+submitted.JobID, nil)
		if err != nil {
			return false, err.Error()
		}

		var job model.JobStatusResponse
		if err := json.Unmarshal(body, &job); err != nil {
			return false, fmt.Sprintf("status %d: decode job status: %v", status, err)
		}
		switch job.State {
		case "ready":
			return checkBuckets(job.Results)
		case "pending":
		default:
			reason := job.State
			if job.Error != nil {
				reason = fmt.Sprintf("%s: %s", job.State, job.Error.Message)
			}
			return false, reason
		}

		select {
		case <-ctx.Done():
			return false, fmt.Sprintf("job %s still pending: %v", submitted.JobID, ctx.Err())
		case <-ticker.C:
		}
	}
}
