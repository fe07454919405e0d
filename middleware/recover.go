package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/ctxkey"
	"github.com/ierezell/ml-infra/common/helper"
	"github.com/ierezell/ml-infra/relay/model"
)

func RelayPanicRecover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				gmw.GetLogger(c).Error("panic detected",
					zap.Any("panic", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))
				c.JSON(http.StatusInternalServerError, model.ErrorResponse{
					Error: model.Error{
						Message: helper.MessageWithRequestId(
							fmt.Sprintf("panic detected, error: %v", err), c.GetString(ctxkey.RequestId)),
						Type: string(model.KindInternal),
						Code: string(model.KindInternal),
					},
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}
