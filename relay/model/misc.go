package model

// Error is the error object rendered at the HTTP boundary.
type Error struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      any    `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
	JobID     string `json:"job_id,omitempty"`
	// RawError preserves the underlying error for logs. Omitted from JSON.
	RawError error `json:"-"`
}

type ErrorWithStatusCode struct {
	Error
	StatusCode int `json:"status_code"`
}

// ErrorResponse wraps Error the way every non-2xx body is shaped.
type ErrorResponse struct {
	Error Error `json:"error"`
}
