package models

import "time"

type MeetingRecording struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_meeting_recordings_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_meeting_recordings_tenant_source,priority:2" json:"source_id"`

	Title           *string   `gorm:"type:text" json:"title"`
	Organizer       *string   `gorm:"type:text" json:"organizer"`
	StartedAt       time.Time `gorm:"type:timestamptz;not null;index" json:"started_at"`
	DurationSeconds int       `gorm:"not null;default:0" json:"duration_seconds"`
	StorageKey      string    `gorm:"type:text;not null" json:"storage_key"`
	SizeBytes       int64     `gorm:"not null;default:0" json:"size_bytes"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (MeetingRecording) TableName() string {
	return "meeting_recordings"
}
