package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/middleware"
)

func SetApiRouter(router *gin.Engine, h Handlers) {
	apiRouter := router.Group("/v1")
	apiRouter.Use(
		gzip.Gzip(gzip.DefaultCompression),
		middleware.RelayPanicRecover(),
	)
	{
		apiRouter.POST("/questions", h.Questions.GenerateQuestions)
		apiRouter.POST("/questions/sync", h.Questions.GenerateQuestionsSync)
		apiRouter.POST("/jobs", h.Questions.SubmitJob)
		apiRouter.GET("/jobs/:id", h.Questions.GetJob)
	}
}
