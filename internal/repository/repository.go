package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"backupwiz/internal/models"
)

// Store is everything the sync engine, media linker, health monitor, and HTTP
// handlers need from the destination database. Entity upserts return the
// number of rows actually written so an unchanged re-sync is observable as
// zero writes.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Tenants.
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]models.Tenant, error)
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	SetTenantActive(ctx context.Context, id string, active bool) error
	TouchTenantSync(ctx context.Context, id string, at time.Time) error

	// Sync status bookkeeping.
	GetSyncStatus(ctx context.Context, tenantID string, syncType models.SyncType) (*models.SyncStatus, error)
	ListSyncStatuses(ctx context.Context, tenantID string) ([]models.SyncStatus, error)
	ListAllSyncStatuses(ctx context.Context) ([]models.SyncStatus, error)
	SaveSyncStatus(ctx context.Context, status *models.SyncStatus) error
	SaveSyncStatusTx(ctx context.Context, tx *gorm.DB, status *models.SyncStatus) error

	// Entity upserts, natural key (tenant_id, source_id). Unchanged rows
	// (same fingerprint) are skipped.
	UpsertConversationsTx(ctx context.Context, tx *gorm.DB, items []models.Conversation) (int64, error)
	UpsertMessagesTx(ctx context.Context, tx *gorm.DB, items []models.Message) (int64, error)
	UpsertCallLogsTx(ctx context.Context, tx *gorm.DB, items []models.CallLog) (int64, error)
	UpsertRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.Recording) (int64, error)
	UpsertVoicemailsTx(ctx context.Context, tx *gorm.DB, items []models.Voicemail) (int64, error)
	UpsertFaxesTx(ctx context.Context, tx *gorm.DB, items []models.Fax) (int64, error)
	UpsertMeetingRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.MeetingRecording) (int64, error)
	UpsertExtensionsTx(ctx context.Context, tx *gorm.DB, items []models.Extension) (int64, error)

	// Media files & linking.
	CreateMediaFile(ctx context.Context, item *models.MediaFile) error
	ListUnlinkedMediaFiles(ctx context.Context, tenantID string) ([]models.MediaFile, error)
	LinkMediaFile(ctx context.Context, id uint64, messageID uint64, fileName, sourceMessageID string, at time.Time) error
	FindMessagesBySourceIDs(ctx context.Context, tenantID string, sourceIDs []string) ([]models.Message, error)
	RefreshConversationMessageCounts(ctx context.Context, tenantID string) error

	// Alert ledger.
	LastAlertAt(ctx context.Context, tenantID string, syncType models.SyncType) (*time.Time, error)
	InsertAlertLog(ctx context.Context, item *models.AlertLog) error
}
