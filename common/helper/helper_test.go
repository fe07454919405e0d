package helper

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsValidRequestID(t *testing.T) {
	require.True(t, IsValidRequestID(GenRequestID()))
	require.True(t, IsValidRequestID("req_abc-123"))
	require.False(t, IsValidRequestID(""))
	require.False(t, IsValidRequestID("../escape"))
	require.False(t, IsValidRequestID("with space"))
	require.False(t, IsValidRequestID(strings.Repeat("a", maxRequestIDLength+1)))
}

func TestMessageWithRequestId(t *testing.T) {
	require.Equal(t, "boom (request id: abc)", MessageWithRequestId("boom", "abc"))
	require.Equal(t, "boom", MessageWithRequestId("boom", ""))
}

func TestUnixMilliRoundTrip(t *testing.T) {
	require.Zero(t, UnixMilliOrZero(time.Time{}))
	require.True(t, FromUnixMilli(0).IsZero())

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.True(t, now.Equal(FromUnixMilli(UnixMilliOrZero(now))))
}
