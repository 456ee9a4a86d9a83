package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backupwiz/internal/models"
	"backupwiz/internal/repository"
	"backupwiz/internal/sync"
)

type SyncHandler struct {
	Engine *sync.Engine
	Store  repository.Store
	Logger *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	group := r.Group("/api/sync")
	group.POST("", h.trigger)
	group.GET("/status", h.listAllStatuses)
	group.GET("/status/:tenant_id", h.listTenantStatuses)
}

type syncRequest struct {
	TenantID string   `json:"tenant_id"`
	Skip     []string `json:"skip"`
	Force    bool     `json:"force"`
}

func (h *SyncHandler) trigger(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}

	var req syncRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
			return
		}
	}

	skip, err := parseSkip(req.Skip)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.Engine.SyncAll(c.Request.Context(), sync.Options{
		TenantID: strings.TrimSpace(req.TenantID),
		Skip:     skip,
		// Manual triggers always run regardless of the tenant's interval.
		Force: true,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual sync failed", zap.Error(err))
		}
		switch {
		case errors.Is(err, sync.ErrTenantNotFound):
			Error(c, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, sync.ErrTenantInactive):
			Error(c, http.StatusConflict, err.Error(), nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, result, map[string]any{"errors": result.Errors})
}

func parseSkip(raw []string) ([]models.SyncType, error) {
	known := make(map[models.SyncType]bool, len(models.AllSyncTypes))
	for _, t := range models.AllSyncTypes {
		known[t] = true
	}
	out := make([]models.SyncType, 0, len(raw))
	for _, s := range raw {
		t := models.SyncType(strings.ToLower(strings.TrimSpace(s)))
		if !known[t] {
			return nil, errors.New("unknown sync type: " + s)
		}
		out = append(out, t)
	}
	return out, nil
}

func (h *SyncHandler) listAllStatuses(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	statuses, err := h.Store.ListAllSyncStatuses(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list sync statuses failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, statuses, nil)
}

func (h *SyncHandler) listTenantStatuses(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	tenantID := c.Param("tenant_id")
	statuses, err := h.Store.ListSyncStatuses(c.Request.Context(), tenantID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list sync statuses failed",
				zap.String("tenant", tenantID), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, statuses, nil)
}
