package middleware

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/ctxkey"
	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/relay/model"
)

// AbortWithError renders err as the standard error body and aborts. The
// status comes from the error kind.
func AbortWithError(c *gin.Context, err error) {
	rendered := model.ToErrorWithStatusCode(err)
	logger := gmw.GetLogger(c)
	if rendered.StatusCode >= http.StatusInternalServerError {
		logger.Error("server abort",
			zap.Int("status_code", rendered.StatusCode),
			zap.String("kind", rendered.Type),
			zap.Error(err))
	} else {
		logger.Warn("server abort",
			zap.Int("status_code", rendered.StatusCode),
			zap.String("kind", rendered.Type),
			zap.Error(err))
	}

	rendered.Message = helper.MessageWithRequestId(rendered.Message, c.GetString(ctxkey.RequestId))
	c.JSON(rendered.StatusCode, model.ErrorResponse{Error: rendered.Error})
	c.Abort()
}
