package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"backupwiz/internal/models"
	"backupwiz/internal/repository"
	"backupwiz/internal/secret"
)

type TenantHandler struct {
	Store   repository.Store
	Secrets *secret.Box
	Logger  *zap.Logger

	// DefaultInterval applies when a created tenant does not set one.
	DefaultInterval time.Duration
}

func (h *TenantHandler) Register(r *gin.Engine) {
	group := r.Group("/api/tenants")
	group.GET("", h.list)
	group.POST("", h.create)
	group.GET("/:id", h.get)
	group.PUT("/:id", h.update)
	group.POST("/:id/deactivate", h.deactivate)
	group.POST("/:id/activate", h.activate)
}

// tenantRequest carries plaintext credentials exactly once, on the way in.
// They are sealed before anything touches the database, and the stored form
// is never echoed back.
type tenantRequest struct {
	Name string `json:"name"`

	SSHHost     string `json:"ssh_host"`
	SSHPort     int    `json:"ssh_port"`
	SSHUser     string `json:"ssh_user"`
	SSHPassword string `json:"ssh_password"`

	DBHost     string `json:"db_host"`
	DBPort     int    `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`

	ChatFilesPath  *string `json:"chat_files_path"`
	RecordingsPath *string `json:"recordings_path"`
	VoicemailsPath *string `json:"voicemails_path"`
	FaxesPath      *string `json:"faxes_path"`
	MeetingsPath   *string `json:"meetings_path"`

	ChatEnabled       *bool `json:"chat_enabled"`
	CallLogEnabled    *bool `json:"call_log_enabled"`
	RecordingsEnabled *bool `json:"recordings_enabled"`
	VoicemailsEnabled *bool `json:"voicemails_enabled"`
	FaxesEnabled      *bool `json:"faxes_enabled"`
	MeetingsEnabled   *bool `json:"meetings_enabled"`

	SyncInterval string `json:"sync_interval"`
}

func (h *TenantHandler) list(c *gin.Context) {
	tenants, err := h.Store.ListTenants(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, tenants, map[string]any{"count": len(tenants)})
}

func (h *TenantHandler) get(c *gin.Context) {
	tenant, err := h.Store.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if tenant == nil {
		Error(c, http.StatusNotFound, "tenant not found", nil)
		return
	}
	Ok(c, tenant, nil)
}

func (h *TenantHandler) create(c *gin.Context) {
	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		Error(c, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.SSHHost == "" || req.SSHUser == "" || req.SSHPassword == "" {
		Error(c, http.StatusBadRequest, "ssh_host, ssh_user and ssh_password are required", nil)
		return
	}
	if req.DBUser == "" || req.DBPassword == "" {
		Error(c, http.StatusBadRequest, "db_user and db_password are required", nil)
		return
	}

	tenant := models.Tenant{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		SSHPort:      22,
		DBHost:       "127.0.0.1",
		DBPort:       5432,
		DBName:       "database_single",
		SyncInterval: h.DefaultInterval,
		Active:       true,

		ChatEnabled:       true,
		CallLogEnabled:    true,
		RecordingsEnabled: true,
		VoicemailsEnabled: true,
	}
	if err := h.apply(&tenant, req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Store.CreateTenant(c.Request.Context(), &tenant); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("create tenant failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("tenant created",
			zap.String("tenant", tenant.ID), zap.String("name", tenant.Name))
	}
	Ok(c, tenant, nil)
}

func (h *TenantHandler) update(c *gin.Context) {
	tenant, err := h.Store.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if tenant == nil {
		Error(c, http.StatusNotFound, "tenant not found", nil)
		return
	}

	var req tenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	if err := h.apply(tenant, req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Store.UpdateTenant(c.Request.Context(), tenant); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("update tenant failed",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, tenant, nil)
}

// apply copies the set fields of a request onto a tenant, sealing credentials
// on the way.
func (h *TenantHandler) apply(tenant *models.Tenant, req tenantRequest) error {
	if req.Name != "" {
		tenant.Name = strings.TrimSpace(req.Name)
	}
	if req.SSHHost != "" {
		tenant.SSHHost = req.SSHHost
	}
	if req.SSHPort > 0 {
		tenant.SSHPort = req.SSHPort
	}
	if req.SSHUser != "" {
		tenant.SSHUser = req.SSHUser
	}
	if req.SSHPassword != "" {
		sealed, err := h.Secrets.Seal(req.SSHPassword)
		if err != nil {
			return err
		}
		tenant.SSHPasswordEnc = sealed
	}
	if req.DBHost != "" {
		tenant.DBHost = req.DBHost
	}
	if req.DBPort > 0 {
		tenant.DBPort = req.DBPort
	}
	if req.DBName != "" {
		tenant.DBName = req.DBName
	}
	if req.DBUser != "" {
		tenant.DBUser = req.DBUser
	}
	if req.DBPassword != "" {
		sealed, err := h.Secrets.Seal(req.DBPassword)
		if err != nil {
			return err
		}
		tenant.DBPasswordEnc = sealed
	}

	if req.ChatFilesPath != nil {
		tenant.ChatFilesPath = req.ChatFilesPath
	}
	if req.RecordingsPath != nil {
		tenant.RecordingsPath = req.RecordingsPath
	}
	if req.VoicemailsPath != nil {
		tenant.VoicemailsPath = req.VoicemailsPath
	}
	if req.FaxesPath != nil {
		tenant.FaxesPath = req.FaxesPath
	}
	if req.MeetingsPath != nil {
		tenant.MeetingsPath = req.MeetingsPath
	}

	if req.ChatEnabled != nil {
		tenant.ChatEnabled = *req.ChatEnabled
	}
	if req.CallLogEnabled != nil {
		tenant.CallLogEnabled = *req.CallLogEnabled
	}
	if req.RecordingsEnabled != nil {
		tenant.RecordingsEnabled = *req.RecordingsEnabled
	}
	if req.VoicemailsEnabled != nil {
		tenant.VoicemailsEnabled = *req.VoicemailsEnabled
	}
	if req.FaxesEnabled != nil {
		tenant.FaxesEnabled = *req.FaxesEnabled
	}
	if req.MeetingsEnabled != nil {
		tenant.MeetingsEnabled = *req.MeetingsEnabled
	}

	if req.SyncInterval != "" {
		interval, err := time.ParseDuration(req.SyncInterval)
		if err != nil {
			return err
		}
		tenant.SyncInterval = interval
	}
	return nil
}

func (h *TenantHandler) deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *TenantHandler) activate(c *gin.Context) {
	h.setActive(c, true)
}

// Tenants are never hard-deleted: their synced rows and blobs stay, only the
// sync cycles stop.
func (h *TenantHandler) setActive(c *gin.Context, active bool) {
	id := c.Param("id")
	tenant, err := h.Store.GetTenant(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if tenant == nil {
		Error(c, http.StatusNotFound, "tenant not found", nil)
		return
	}
	if err := h.Store.SetTenantActive(c.Request.Context(), id, active); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("tenant active flag changed",
			zap.String("tenant", id), zap.Bool("active", active))
	}
	Ok(c, gin.H{"id": id, "active": active}, nil)
}
