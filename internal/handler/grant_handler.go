package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/errcode"
	"github.com/knowhub/knowhub/internal/pkg/response"
	"github.com/knowhub/knowhub/internal/service"
)

type GrantHandler struct {
	perms *service.PermissionService
}

func NewGrantHandler(perms *service.PermissionService) *GrantHandler {
	return &GrantHandler{perms: perms}
}

type grantRequest struct {
	UserID    string `json:"user_id"`
	Level     string `json:"level"`
	ExpiresAt int64  `json:"expires_at"`
}

func (h *GrantHandler) Create(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	grant, err := h.perms.CreateGrant(c.Request.Context(), getUserID(c), c.Param("id"), service.GrantCreateInput{
		UserID:    req.UserID,
		Level:     model.PermissionLevel(req.Level),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, grant)
}

func (h *GrantHandler) List(c *gin.Context) {
	grants, err := h.perms.ListGrants(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, grants)
}

func (h *GrantHandler) Revoke(c *gin.Context) {
	if err := h.perms.RevokeGrant(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("grant_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type checkRequest struct {
	Level string `json:"level"`
}

// Check resolves the caller's own access; handy for UIs deciding what to show.
func (h *GrantHandler) Check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	decision, err := h.perms.Resolve(c.Request.Context(), c.Param("id"), getUserID(c), model.PermissionLevel(req.Level))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, decision)
}

func (h *GrantHandler) Audit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	entries, err := h.perms.ListAudit(c.Request.Context(), getUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entries)
}
