package middleware

import (
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/ctxkey"
	"github.com/ierezell/ml-infra/common/helper"
)

// RequestId assigns every request an id, echoed in the X-Request-Id header.
// A valid inbound id is kept so clients can make submissions idempotent.
func RequestId() func(c *gin.Context) {
	return func(c *gin.Context) {
		id := c.GetHeader(helper.RequestIdKey)
		if !helper.IsValidRequestID(id) {
			id = helper.GenRequestID()
		}

		c.Set(ctxkey.RequestId, id)
		c.Header(helper.RequestIdKey, id)
		gmw.SetLogger(c, gmw.GetLogger(c).With(zap.String(ctxkey.RequestId, id)))
		c.Next()
	}
}
