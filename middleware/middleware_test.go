package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ierezell/ml-infra/common/ctxkey"
	"github.com/ierezell/ml-infra/common/graceful"
	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/common/logger"
	"github.com/ierezell/ml-infra/relay/model"
)

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		gmw.SetLogger(c, logger.Logger)
		c.Next()
	})
	engine.Use(handlers...)
	return engine
}

func decodeError(t *testing.T, body []byte) model.Error {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func TestRequestIdGeneratesAndEchoes(t *testing.T) {
	engine := newTestEngine(RequestId())
	var seen string
	engine.GET("/ping", func(c *gin.Context) {
		seen = c.GetString(ctxkey.RequestId)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen)
	require.True(t, helper.IsValidRequestID(seen))
	require.Equal(t, seen, w.Header().Get(helper.RequestIdKey))
}

func TestRequestIdHonoursValidInboundID(t *testing.T) {
	engine := newTestEngine(RequestId())
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ctxkey.RequestId))
	})

	for _, tc := range []struct {
		name    string
		inbound string
		kept    bool
	}{
		{name: "valid", inbound: "client-req_42", kept: true},
		{name: "path traversal", inbound: "../../etc", kept: false},
		{name: "too long", inbound: strings.Repeat("a", 65), kept: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(helper.RequestIdKey, tc.inbound)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			if tc.kept {
				require.Equal(t, tc.inbound, w.Body.String())
			} else {
				require.NotEqual(t, tc.inbound, w.Body.String())
				require.True(t, helper.IsValidRequestID(w.Body.String()))
			}
			require.Equal(t, w.Body.String(), w.Header().Get(helper.RequestIdKey))
		})
	}
}

func TestAbortWithErrorUsesKindStatus(t *testing.T) {
	for _, tc := range []struct {
		err       error
		status    int
		kind      model.ErrorKind
		retryable bool
	}{
		{model.MalformedInput("contexts is required"), http.StatusBadRequest, model.KindMalformedInput, false},
		{model.NewError(model.KindSubmission, "write failed"), http.StatusBadGateway, model.KindSubmission, true},
		{model.NewError(model.KindJobFailed, "boom"), http.StatusBadGateway, model.KindJobFailed, false},
		{model.NewError(model.KindJobTimedOut, "late"), http.StatusGatewayTimeout, model.KindJobTimedOut, true},
		{model.NewError(model.KindNotFound, "job x not found"), http.StatusNotFound, model.KindNotFound, false},
		{model.NewError(model.KindUnavailable, "off"), http.StatusServiceUnavailable, model.KindUnavailable, false},
		{errors.New("unexpected"), http.StatusInternalServerError, model.KindInternal, false},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			engine := newTestEngine(RequestId())
			engine.GET("/fail", func(c *gin.Context) {
				AbortWithError(c, tc.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(helper.RequestIdKey, "req-abort")
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			body := decodeError(t, w.Body.Bytes())
			require.Equal(t, string(tc.kind), body.Type)
			require.Equal(t, tc.retryable, body.Retryable)
			require.Contains(t, body.Message, "(request id: req-abort)")
		})
	}
}

func TestRelayPanicRecover(t *testing.T) {
	engine := newTestEngine(RequestId(), RelayPanicRecover())
	engine.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w.Body.Bytes())
	require.Equal(t, string(model.KindInternal), body.Type)
	require.Contains(t, body.Message, "kaboom")
}

func TestRequestTrackerCountsInFlight(t *testing.T) {
	engine := newTestEngine(RequestTracker())
	var during int64
	engine.GET("/work", func(c *gin.Context) {
		during = graceful.InFlight()
		c.Status(http.StatusOK)
	})

	before := graceful.InFlight()
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/work", nil))

	require.Equal(t, before+1, during)
	require.Equal(t, before, graceful.InFlight())
}

func TestPrometheusMiddleware(t *testing.T) {
	engine := newTestEngine(PrometheusMiddleware())
	engine.GET("/v1/jobs/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/jobs/job_1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
