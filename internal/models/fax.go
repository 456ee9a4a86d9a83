package models

import "time"

type Fax struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_faxes_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_faxes_tenant_source,priority:2" json:"source_id"`

	FromNumber string    `gorm:"type:text;not null" json:"from_number"`
	ToNumber   string    `gorm:"type:text;not null" json:"to_number"`
	ReceivedAt time.Time `gorm:"type:timestamptz;not null;index" json:"received_at"`
	Pages      int       `gorm:"not null;default:0" json:"pages"`
	StorageKey string    `gorm:"type:text;not null" json:"storage_key"`
	SizeBytes  int64     `gorm:"not null;default:0" json:"size_bytes"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Fax) TableName() string {
	return "faxes"
}
