package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/graceful"
)

// RequestTracker counts in-flight requests so shutdown can drain them.
func RequestTracker() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := graceful.BeginRequest()
		defer done()
		c.Next()
	}
}
