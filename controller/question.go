package controller

import (
	"context"
	"io"
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/ctxkey"
	"github.com/ierezell/ml-infra/middleware"
	relaycontroller "github.com/ierezell/ml-infra/relay/controller"
	"github.com/ierezell/ml-infra/relay/model"
)

const maxRequestBodyBytes = 8 << 20

// QuestionController serves the question generation routes.
type QuestionController struct {
	service *relaycontroller.QuestionService
}

func NewQuestionController(service *relaycontroller.QuestionService) *QuestionController {
	return &QuestionController{service: service}
}

// requestCtx carries the request logger and is canceled when the client goes away.
func requestCtx(c *gin.Context) context.Context {
	return gmw.SetLogger(c.Request.Context(), gmw.GetLogger(c))
}

func readQuestionRequest(c *gin.Context) (*model.QuestionRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes))
	if err != nil {
		return nil, model.WrapError(model.KindMalformedInput, err, "failed to read request body")
	}
	return model.DecodeQuestionRequest(body)
}

// GenerateQuestions handles POST /v1/questions: submit, wait, reassemble.
func (qc *QuestionController) GenerateQuestions(c *gin.Context) {
	req, err := readQuestionRequest(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp, err := qc.service.GenerateAsync(requestCtx(c), c.GetString(ctxkey.RequestId), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateQuestionsSync handles POST /v1/questions/sync through the realtime endpoint.
func (qc *QuestionController) GenerateQuestionsSync(c *gin.Context) {
	req, err := readQuestionRequest(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp, err := qc.service.GenerateSync(requestCtx(c), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitJob handles POST /v1/jobs and returns as soon as the job is triggered.
func (qc *QuestionController) SubmitJob(c *gin.Context) {
	req, err := readQuestionRequest(c)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	resp, err := qc.service.SubmitAsync(requestCtx(c), c.GetString(ctxkey.RequestId), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetJob handles GET /v1/jobs/:id. Failed and timed out jobs are rendered with
// the status of their error kind and the job state in the body.
func (qc *QuestionController) GetJob(c *gin.Context) {
	resp, err := qc.service.JobStatus(requestCtx(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = model.ErrorKind(resp.Error.Type).StatusCode()
	}
	c.JSON(status, resp)
}
