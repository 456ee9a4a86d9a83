package models

import "time"

// Tenant is one customer's on-prem 3CX deployment. Connection credentials are
// stored sealed (AES-GCM, base64); the sync engine unseals them only for the
// duration of a cycle. Tenants are never hard-deleted while synced data
// exists, only deactivated.
type Tenant struct {
	ID   string `gorm:"primaryKey;type:text" json:"id"`
	Name string `gorm:"type:text;not null" json:"name"`

	SSHHost        string `gorm:"type:text;not null" json:"ssh_host"`
	SSHPort        int    `gorm:"not null;default:22" json:"ssh_port"`
	SSHUser        string `gorm:"type:text;not null" json:"ssh_user"`
	SSHPasswordEnc string `gorm:"type:text;not null" json:"-"`

	// Remote database endpoint as seen from the SSH host.
	DBHost        string `gorm:"type:text;not null;default:127.0.0.1" json:"db_host"`
	DBPort        int    `gorm:"not null;default:5432" json:"db_port"`
	DBName        string `gorm:"type:text;not null;default:database_single" json:"db_name"`
	DBUser        string `gorm:"type:text;not null" json:"db_user"`
	DBPasswordEnc string `gorm:"type:text;not null" json:"-"`

	ChatFilesPath  *string `gorm:"type:text" json:"chat_files_path"`
	RecordingsPath *string `gorm:"type:text" json:"recordings_path"`
	VoicemailsPath *string `gorm:"type:text" json:"voicemails_path"`
	FaxesPath      *string `gorm:"type:text" json:"faxes_path"`
	MeetingsPath   *string `gorm:"type:text" json:"meetings_path"`

	ChatEnabled       bool `gorm:"not null;default:true" json:"chat_enabled"`
	CallLogEnabled    bool `gorm:"not null;default:true" json:"call_log_enabled"`
	RecordingsEnabled bool `gorm:"not null;default:true" json:"recordings_enabled"`
	VoicemailsEnabled bool `gorm:"not null;default:true" json:"voicemails_enabled"`
	FaxesEnabled      bool `gorm:"not null;default:false" json:"faxes_enabled"`
	MeetingsEnabled   bool `gorm:"not null;default:false" json:"meetings_enabled"`

	SyncInterval time.Duration `gorm:"not null" json:"sync_interval"`
	Active       bool          `gorm:"not null;default:true;index" json:"active"`
	LastSyncAt   *time.Time    `gorm:"type:timestamptz" json:"last_sync_at"`

	CreatedAt time.Time `gorm:"type:timestamptz;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
