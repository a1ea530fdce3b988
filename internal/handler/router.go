package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/internal/middleware"
)

type RouterDeps struct {
	Auth       *AuthHandler
	Documents  *DocumentHandler
	Grants     *GrantHandler
	Retrieval  *RetrievalHandler
	Batches    *BatchHandler
	Files      *FileHandler
	Properties *PropertiesHandler
	JWTSecret  []byte
	AuthWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authLimited := api.Group("")
	authLimited.Use(middleware.RateLimit(deps.AuthWindow))
	authLimited.POST("/auth/register", deps.Auth.Register)
	authLimited.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/logout", deps.Auth.Logout)
	api.GET("/properties", deps.Properties.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/hubareas", deps.Documents.HubAreas)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/documents/:id/grants", deps.Grants.Create)
	authGroup.GET("/documents/:id/grants", deps.Grants.List)
	authGroup.DELETE("/documents/:id/grants/:grant_id", deps.Grants.Revoke)
	authGroup.POST("/documents/:id/permissions/check", deps.Grants.Check)
	authGroup.GET("/documents/:id/audit", deps.Grants.Audit)

	authGroup.POST("/context/query", deps.Retrieval.Query)

	authGroup.GET("/batches", deps.Batches.List)
	authGroup.GET("/batches/:id", deps.Batches.Get)

	authGroup.POST("/files/upload", deps.Files.Upload)
	api.GET("/files/:key", deps.Files.Get)
}
