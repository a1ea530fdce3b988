package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/internal/config"
	"github.com/knowhub/knowhub/internal/pkg/response"
)

type PropertiesHandler struct {
	properties config.PropertiesConfig
}

func NewPropertiesHandler(properties config.PropertiesConfig) *PropertiesHandler {
	return &PropertiesHandler{properties: properties}
}

func (h *PropertiesHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{"properties": h.properties})
}
