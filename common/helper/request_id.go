package helper

import (
	"fmt"
	"regexp"

	"github.com/ierezell/ml-infra/common/random"
)

// RequestIdKey is the header carrying the request id in both directions.
const RequestIdKey = "X-Request-Id"

const maxRequestIDLength = 64

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// GenRequestID returns a new request id.
func GenRequestID() string {
	return random.GetUUID()
}

// IsValidRequestID reports whether id may be used verbatim inside an object key.
func IsValidRequestID(id string) bool {
	return len(id) <= maxRequestIDLength && requestIDPattern.MatchString(id)
}

// MessageWithRequestId appends the request id so clients can quote it in bug reports.
func MessageWithRequestId(message string, id string) string {
	if id == "" {
		return message
	}
	return fmt.Sprintf("%s (request id: %s)", message, id)
}
