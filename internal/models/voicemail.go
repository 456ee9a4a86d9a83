package models

import "time"

type Voicemail struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_voicemails_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_voicemails_tenant_source,priority:2" json:"source_id"`

	Extension       string    `gorm:"type:text;not null" json:"extension"`
	CallerNumber    *string   `gorm:"type:text" json:"caller_number"`
	ReceivedAt      time.Time `gorm:"type:timestamptz;not null;index" json:"received_at"`
	DurationSeconds int       `gorm:"not null;default:0" json:"duration_seconds"`
	StorageKey      string    `gorm:"type:text;not null" json:"storage_key"`
	SizeBytes       int64     `gorm:"not null;default:0" json:"size_bytes"`
	Transcription   *string   `gorm:"type:text" json:"transcription"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Voicemail) TableName() string {
	return "voicemails"
}
