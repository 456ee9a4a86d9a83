package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CallLog struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID string `gorm:"type:text;not null;uniqueIndex:uq_call_logs_tenant_source,priority:1;index" json:"tenant_id"`
	SourceID string `gorm:"type:text;not null;uniqueIndex:uq_call_logs_tenant_source,priority:2" json:"source_id"`

	CallerNumber    string           `gorm:"type:text;not null" json:"caller_number"`
	CallerName      *string          `gorm:"type:text" json:"caller_name"`
	CalleeNumber    string           `gorm:"type:text;not null" json:"callee_number"`
	CalleeName      *string          `gorm:"type:text" json:"callee_name"`
	Direction       string           `gorm:"type:text;not null" json:"direction"`
	StartedAt       time.Time        `gorm:"type:timestamptz;not null;index" json:"started_at"`
	EndedAt         *time.Time       `gorm:"type:timestamptz" json:"ended_at"`
	DurationSeconds int              `gorm:"not null;default:0" json:"duration_seconds"`
	Answered        bool             `gorm:"not null;default:false" json:"answered"`
	Cost            *decimal.Decimal `gorm:"type:numeric(12,4)" json:"cost"`

	Fingerprint string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}
