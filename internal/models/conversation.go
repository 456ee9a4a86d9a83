package models

import (
	"time"

	"gorm.io/datatypes"
)

// Provenance records which source representation a chat record came from
// during reconciliation.
const (
	ProvenanceLive    = "live"
	ProvenanceHistory = "history"
	ProvenanceBoth    = "both"
)

type Conversation struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_conversations_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_conversations_tenant_source,priority:2" json:"source_id"`

	Title         *string        `gorm:"type:text" json:"title"`
	Participants  datatypes.JSON `gorm:"type:jsonb" json:"participants"`
	MessageCount  int            `gorm:"not null;default:0" json:"message_count"`
	SourceCreated *time.Time     `gorm:"type:timestamptz" json:"source_created"`
	LastMessageAt *time.Time     `gorm:"type:timestamptz" json:"last_message_at"`
	Provenance    string         `gorm:"type:text;not null" json:"provenance"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
