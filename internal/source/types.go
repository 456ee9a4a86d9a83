package source

import "time"

// Records as they come off the tenant's 3CX database. The chat-like records
// exist in two source representations (live table and history view); both are
// scanned into the same struct so the reconciliation engine can merge them
// field by field.

type ChatConversation struct {
	ID            string
	Title         *string
	Participants  []string
	MessageCount  int
	CreatedAt     *time.Time
	LastMessageAt *time.Time
}

type ChatMessage struct {
	ID             string
	ConversationID string
	SenderID       *string
	SenderName     *string
	Body           string
	SentAt         time.Time
	IsExternal     bool
}

// FileMapping is one row of the source file-mapping table: a content-hash
// internal filename, the original public filename, and the owning message.
type FileMapping struct {
	HashName   string
	PublicName string
	MessageID  string
}

type CallRecord struct {
	ID           string
	CallerNumber string
	CallerName   *string
	CalleeNumber string
	CalleeName   *string
	Direction    string
	StartedAt    time.Time
	EndedAt      *time.Time
	Duration     int
	Answered     bool
	Cost         *string
}

type RecordingRecord struct {
	ID         string
	Extension  string
	OtherParty *string
	StartedAt  time.Time
	Duration   int
	FileName   string
	SizeBytes  int64
}

type VoicemailRecord struct {
	ID            string
	Extension     string
	CallerNumber  *string
	ReceivedAt    time.Time
	Duration      int
	FileName      string
	SizeBytes     int64
	Transcription *string
}

type FaxRecord struct {
	ID         string
	FromNumber string
	ToNumber   string
	ReceivedAt time.Time
	Pages      int
	FileName   string
	SizeBytes  int64
}

type MeetingRecord struct {
	ID        string
	Title     *string
	Organizer *string
	StartedAt time.Time
	Duration  int
	FileName  string
	SizeBytes int64
}

type ExtensionRecord struct {
	ID          string
	Number      string
	DisplayName *string
	Email       *string
	Enabled     bool
}
