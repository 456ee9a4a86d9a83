package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncType identifies one synced entity stream per tenant.
type SyncType string

const (
	SyncMessages      SyncType = "messages"
	SyncConversations SyncType = "conversations"
	SyncCallLogs      SyncType = "calllogs"
	SyncRecordings    SyncType = "recordings"
	SyncVoicemails    SyncType = "voicemails"
	SyncFaxes         SyncType = "faxes"
	SyncMeetings      SyncType = "meetings"
	SyncExtensions    SyncType = "extensions"
)

// AllSyncTypes lists every stream in the order cycles run them. Conversations
// sync before messages so message rows can resolve their conversation, and
// messages before media linking.
var AllSyncTypes = []SyncType{
	SyncExtensions,
	SyncConversations,
	SyncMessages,
	SyncCallLogs,
	SyncRecordings,
	SyncVoicemails,
	SyncFaxes,
	SyncMeetings,
}

const (
	SyncStatusIdle    = "idle"
	SyncStatusRunning = "running"
	SyncStatusError   = "error"
)

// SyncStatus is the per-(tenant, sync type) bookkeeping row. The watermark
// only moves forward, and never past a record that failed to commit.
type SyncStatus struct {
	TenantID string   `gorm:"primaryKey;type:text" json:"tenant_id"`
	SyncType SyncType `gorm:"primaryKey;type:text" json:"sync_type"`

	LastSyncedTimestamp *time.Time `gorm:"type:timestamptz" json:"last_synced_timestamp"`
	LastSyncAt          *time.Time `gorm:"type:timestamptz" json:"last_sync_at"`
	LastSuccessAt       *time.Time `gorm:"type:timestamptz" json:"last_success_at"`
	LastErrorAt         *time.Time `gorm:"type:timestamptz" json:"last_error_at"`
	LastError           *string    `gorm:"type:text" json:"last_error"`
	Status              string     `gorm:"type:text;not null;default:idle" json:"status"`
	FailureCount        int        `gorm:"not null;default:0" json:"failure_count"`

	Stats datatypes.JSON `gorm:"type:jsonb" json:"stats"`
}

func (SyncStatus) TableName() string {
	return "sync_statuses"
}
