package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backupwiz/internal/health"
)

type ReportHandler struct {
	Monitor *health.Monitor
	Logger  *zap.Logger
}

func (h *ReportHandler) Register(r *gin.Engine) {
	r.GET("/api/health/report", h.report)
}

func (h *ReportHandler) report(c *gin.Context) {
	if h.Monitor == nil {
		Error(c, http.StatusInternalServerError, "monitor unavailable", nil)
		return
	}
	report, err := h.Monitor.Report(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("health report failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, map[string]any{"level": report.Level})
}
