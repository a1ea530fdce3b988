package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/internal/pkg/response"
	"github.com/knowhub/knowhub/internal/service"
)

type BatchHandler struct {
	batches *service.BatchService
}

func NewBatchHandler(batches *service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

func (h *BatchHandler) Get(c *gin.Context) {
	job, err := h.batches.GetStatus(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *BatchHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	jobs, err := h.batches.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, jobs)
}
