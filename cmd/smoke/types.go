package main

import "time"

// check identifies what a variant validates in the response.
type check string

const (
	checkResults   check = "results"
	checkJob       check = "job"
	checkMalformed check = "malformed"
)

// requestVariant describes one endpoint exercised by the smoke run.
type requestVariant struct {
	Key     string
	Header  string
	Path    string
	Check   check
	Aliases []string
}

// testResult captures the outcome of a single variant.
type testResult struct {
	Variant      string
	Label        string
	Success      bool
	Skipped      bool
	StatusCode   int
	Duration     time.Duration
	ErrorReason  string
	RequestBody  string
	ResponseBody string
}
