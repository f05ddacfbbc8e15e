package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/ledger/shared/middleware"
)

// StatsFunc reports ledger sizes for the health endpoint.
type StatsFunc func() any

// NewRouter wires middleware, the health check and the /api/v1 routes.
func NewRouter(h *LedgerHandler, logger *zap.Logger, requestTimeout time.Duration, stats StatsFunc) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if stats != nil {
			body["ledger"] = stats()
		}
		c.JSON(http.StatusOK, body)
	})

	v1 := router.Group("/api/v1", middleware.TimeoutMiddleware(requestTimeout))
	h.Register(v1)

	router.NoRoute(func(c *gin.Context) {
		middleware.RespondWithError(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	return router
}
