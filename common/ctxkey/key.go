package ctxkey

const (
	// RequestId is the per-request identifier. Set by middleware.RequestId, read by
	// controllers when submitting jobs and by error responses.
	RequestId = "request_id"
)
