package models

import "time"

// AlertLog is the dispatch ledger the health monitor consults to rate-limit
// repeat alerts for the same (tenant, sync type).
type AlertLog struct {
	ID       uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string   `gorm:"type:text;not null;index:idx_alert_logs_scope,priority:1" json:"tenant_id"`
	SyncType SyncType `gorm:"type:text;not null;index:idx_alert_logs_scope,priority:2" json:"sync_type"`

	Level   string    `gorm:"type:text;not null" json:"level"`
	Message string    `gorm:"type:text;not null" json:"message"`
	SentAt  time.Time `gorm:"type:timestamptz;not null;index:idx_alert_logs_scope,priority:3" json:"sent_at"`
}

func (AlertLog) TableName() string {
	return "alert_logs"
}
