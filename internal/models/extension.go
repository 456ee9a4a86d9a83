package models

import "time"

type Extension struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_extensions_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_extensions_tenant_source,priority:2" json:"source_id"`

	Number      string  `gorm:"type:text;not null" json:"number"`
	DisplayName *string `gorm:"type:text" json:"display_name"`
	Email       *string `gorm:"type:text" json:"email"`
	Enabled     bool    `gorm:"not null;default:true" json:"enabled"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Extension) TableName() string {
	return "extensions"
}
