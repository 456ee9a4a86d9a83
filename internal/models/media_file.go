package models

import "time"

// MediaFile is a chat attachment pulled from the source by its content-hash
// name. It is "orphaned" until the linker resolves MessageID from the source
// file-mapping table; linking also replaces FileName with the original
// human-readable name.
type MediaFile struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_media_files_tenant_key,priority:1;index" json:"tenant_id"`

	FileName        string  `gorm:"type:text;not null" json:"file_name"`
	StorageKey      string  `gorm:"type:text;not null;uniqueIndex:uq_media_files_tenant_key,priority:2" json:"storage_key"`
	SizeBytes       int64   `gorm:"not null;default:0" json:"size_bytes"`
	ContentType     *string `gorm:"type:text" json:"content_type"`
	SourceMessageID *string `gorm:"type:text;index" json:"source_message_id"`

	MessageID *uint64    `gorm:"index" json:"message_id"`
	LinkedAt  *time.Time `gorm:"type:timestamptz" json:"linked_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (MediaFile) TableName() string {
	return "media_files"
}
