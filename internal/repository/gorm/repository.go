package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backupwiz/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- tenants ----------------------------------------------------------------

func (s *Store) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	var items []models.Tenant
	if err := s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Order("name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	var items []models.Tenant
	if err := s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("active = ?", true).
		Order("name asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var item models.Tenant
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(tenant).Error
}

func (s *Store) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(tenant).Error
}

func (s *Store) SetTenantActive(ctx context.Context, id string, active bool) error {
	return s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("active", active).Error
}

func (s *Store) TouchTenantSync(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}

// --- sync status ------------------------------------------------------------

func (s *Store) GetSyncStatus(ctx context.Context, tenantID string, syncType models.SyncType) (*models.SyncStatus, error) {
	var item models.SyncStatus
	err := s.db.WithContext(ctx).
		First(&item, "tenant_id = ? AND sync_type = ?", tenantID, syncType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSyncStatuses(ctx context.Context, tenantID string) ([]models.SyncStatus, error) {
	var items []models.SyncStatus
	if err := s.db.WithContext(ctx).
		Model(&models.SyncStatus{}).
		Where("tenant_id = ?", tenantID).
		Order("sync_type asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListAllSyncStatuses(ctx context.Context) ([]models.SyncStatus, error) {
	var items []models.SyncStatus
	if err := s.db.WithContext(ctx).
		Model(&models.SyncStatus{}).
		Order("tenant_id asc, sync_type asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	return s.SaveSyncStatusTx(ctx, s.db, status)
}

// SaveSyncStatusTx lets the sync driver persist the watermark in the same
// transaction as the sub-batch it covers.
func (s *Store) SaveSyncStatusTx(ctx context.Context, tx *gorm.DB, status *models.SyncStatus) error {
	if status == nil {
		return nil
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "sync_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_synced_timestamp",
			"last_sync_at",
			"last_success_at",
			"last_error_at",
			"last_error",
			"status",
			"failure_count",
			"stats",
		}),
	}).Create(status).Error
}

// --- entity upserts ---------------------------------------------------------

// onConflictSkipUnchanged upserts on the (tenant_id, source_id) natural key
// and only rewrites rows whose fingerprint actually changed, preserving
// updated_at semantics for unchanged records.
func onConflictSkipUnchanged(table string, cols []string) clause.OnConflict {
	cols = append(cols, "fingerprint", "updated_at")
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr(table + ".fingerprint <> excluded.fingerprint"),
		}},
	}
}

func (s *Store) UpsertConversationsTx(ctx context.Context, tx *gorm.DB, items []models.Conversation) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("conversations", []string{
		"title", "participants", "message_count", "source_created",
		"last_message_at", "provenance",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertMessagesTx(ctx context.Context, tx *gorm.DB, items []models.Message) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("messages", []string{
		"source_conversation_id", "sender_id", "sender_name", "body",
		"sent_at", "is_external", "provenance",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertCallLogsTx(ctx context.Context, tx *gorm.DB, items []models.CallLog) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("call_logs", []string{
		"caller_number", "caller_name", "callee_number", "callee_name",
		"direction", "started_at", "ended_at", "duration_seconds",
		"answered", "cost",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.Recording) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("recordings", []string{
		"extension", "other_party", "started_at", "duration_seconds",
		"storage_key", "size_bytes",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertVoicemailsTx(ctx context.Context, tx *gorm.DB, items []models.Voicemail) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("voicemails", []string{
		"extension", "caller_number", "received_at", "duration_seconds",
		"storage_key", "size_bytes", "transcription",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertFaxesTx(ctx context.Context, tx *gorm.DB, items []models.Fax) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("faxes", []string{
		"from_number", "to_number", "received_at", "pages",
		"storage_key", "size_bytes",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertMeetingRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.MeetingRecording) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("meeting_recordings", []string{
		"title", "organizer", "started_at", "duration_seconds",
		"storage_key", "size_bytes",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

func (s *Store) UpsertExtensionsTx(ctx context.Context, tx *gorm.DB, items []models.Extension) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Clauses(onConflictSkipUnchanged("extensions", []string{
		"number", "display_name", "email", "enabled",
	})).Create(&items)
	return res.RowsAffected, res.Error
}

// --- media files ------------------------------------------------------------

func (s *Store) CreateMediaFile(ctx context.Context, item *models.MediaFile) error {
	if item == nil {
		return nil
	}
	// Same blob re-discovered on a later cycle is a no-op.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "storage_key"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) ListUnlinkedMediaFiles(ctx context.Context, tenantID string) ([]models.MediaFile, error) {
	var items []models.MediaFile
	if err := s.db.WithContext(ctx).
		Model(&models.MediaFile{}).
		Where("tenant_id = ? AND message_id IS NULL", tenantID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LinkMediaFile(ctx context.Context, id uint64, messageID uint64, fileName, sourceMessageID string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.MediaFile{}).
		Where("id = ? AND message_id IS NULL", id).
		Updates(map[string]any{
			"message_id":        messageID,
			"file_name":         fileName,
			"source_message_id": sourceMessageID,
			"linked_at":         at,
		}).Error
}

func (s *Store) FindMessagesBySourceIDs(ctx context.Context, tenantID string, sourceIDs []string) ([]models.Message, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	var items []models.Message
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("tenant_id = ? AND source_id IN ?", tenantID, sourceIDs).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// RefreshConversationMessageCounts recomputes message_count from synced
// messages. Conversations with zero messages keep their count of 0.
func (s *Store) RefreshConversationMessageCounts(ctx context.Context, tenantID string) error {
	return s.db.WithContext(ctx).Exec(`
		UPDATE conversations c
		SET message_count = m.cnt
		FROM (
			SELECT source_conversation_id, COUNT(*) AS cnt
			FROM messages
			WHERE tenant_id = ?
			GROUP BY source_conversation_id
		) m
		WHERE c.tenant_id = ? AND c.source_id = m.source_conversation_id
		  AND c.message_count <> m.cnt`,
		tenantID, tenantID).Error
}

// --- alert ledger -----------------------------------------------------------

func (s *Store) LastAlertAt(ctx context.Context, tenantID string, syncType models.SyncType) (*time.Time, error) {
	var item models.AlertLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND sync_type = ?", tenantID, syncType).
		Order("sent_at desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item.SentAt, nil
}

func (s *Store) InsertAlertLog(ctx context.Context, item *models.AlertLog) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}
