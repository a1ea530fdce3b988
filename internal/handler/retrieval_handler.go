package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/internal/pkg/errcode"
	"github.com/knowhub/knowhub/internal/pkg/response"
	"github.com/knowhub/knowhub/internal/service"
)

type RetrievalHandler struct {
	retrieval *service.RetrievalService
}

func NewRetrievalHandler(retrieval *service.RetrievalService) *RetrievalHandler {
	return &RetrievalHandler{retrieval: retrieval}
}

type contextQueryRequest struct {
	Query     string  `json:"query"`
	HubArea   string  `json:"hub_area"`
	Threshold float32 `json:"threshold"`
	Count     int     `json:"count"`
}

func (h *RetrievalHandler) Query(c *gin.Context) {
	var req contextQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.retrieval.RetrieveContext(c.Request.Context(), getUserID(c), req.Query, req.HubArea, req.Threshold, req.Count)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
