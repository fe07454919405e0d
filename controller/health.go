package controller

import (
	"context"
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/graceful"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController answers liveness and readiness probes.
type HealthController struct {
	db           Pinger
	asyncEnabled bool
	syncEnabled  bool
}

func NewHealthController(db Pinger, asyncEnabled, syncEnabled bool) *HealthController {
	return &HealthController{db: db, asyncEnabled: asyncEnabled, syncEnabled: syncEnabled}
}

// Healthz reports that the process is up.
func (hc *HealthController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports whether the server can take traffic: not draining, at least
// one generation path configured and the job database reachable.
func (hc *HealthController) Readyz(c *gin.Context) {
	body := gin.H{
		"async": hc.asyncEnabled,
		"sync":  hc.syncEnabled,
	}

	switch {
	case graceful.IsDraining():
		body["status"] = "draining"
	case !hc.asyncEnabled && !hc.syncEnabled:
		body["status"] = "no generation backend configured"
	default:
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := hc.db.Ping(ctx); err != nil {
			gmw.GetLogger(c).Warn("readiness check failed", zap.Error(err))
			body["status"] = "database unreachable"
			break
		}
		body["status"] = "ok"
		c.JSON(http.StatusOK, body)
		return
	}

	c.JSON(http.StatusServiceUnavailable, body)
}
