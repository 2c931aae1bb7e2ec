package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"astra/errs"
	"astra/logger"
	"astra/models"
	"astra/services"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

type healthStore interface {
	Ping(ctx context.Context) error
	CacheStats(ctx context.Context, since time.Time) (models.CacheStats, error)
}

// HealthController は稼働状況とキャッシュ統計
type HealthController struct {
	store healthStore
	llm   services.LLM
	now   func() time.Time
}

func NewHealthController(store healthStore, llm services.LLM) *HealthController {
	return &HealthController{store: store, llm: llm, now: time.Now}
}

// HealthHandler は DB に届かなければ 503 を返す
func (hc *HealthController) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code, db := "healthy", http.StatusOK, "ok"
	if err := hc.store.Ping(ctx); err != nil {
		logger.Error("health check: database unreachable", "error", err)
		status, code, db = "unhealthy", http.StatusServiceUnavailable, "unreachable"
	}

	llm := "unavailable"
	if hc.llm != nil {
		llm = hc.llm.Model()
	}

	c.JSON(code, gin.H{
		"success": code == http.StatusOK,
		"status":  status,
		"service": "astra",
		"time":    services.GetCurrentTimestamp(),
		"services": gin.H{
			"database":     db,
			"llm":          llm,
			"astro_engine": "ready",
		},
	})
}

// CacheStatsHandler は直近 hours 時間 (既定 24) の集計を返す
func (hc *HealthController) CacheStatsHandler(c *gin.Context) (any, *errs.Error) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			return nil, errs.WithMessage(errs.ErrIncompleteRequest, "hours must be a positive integer")
		}
		hours = h
	}

	since := hc.now().Add(-time.Duration(hours) * time.Hour)
	stats, err := hc.store.CacheStats(c.Request.Context(), since)
	if err != nil {
		return nil, errs.From(err)
	}
	return gin.H{
		"success": true,
		"hours":   hours,
		"stats":   stats,
	}, nil
}
