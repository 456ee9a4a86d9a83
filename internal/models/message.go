package models

import "time"

type Message struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_messages_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_messages_tenant_source,priority:2" json:"source_id"`

	SourceConversationID string    `gorm:"type:text;not null;index" json:"source_conversation_id"`
	SenderID             *string   `gorm:"type:text" json:"sender_id"`
	SenderName           *string   `gorm:"type:text" json:"sender_name"`
	Body                 string    `gorm:"type:text;not null" json:"body"`
	SentAt               time.Time `gorm:"type:timestamptz;not null;index" json:"sent_at"`
	IsExternal           bool      `gorm:"not null;default:false" json:"is_external"`
	Provenance           string    `gorm:"type:text;not null" json:"provenance"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}
