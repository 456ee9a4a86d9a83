package sync

import (
	"context"
	"io"
	"time"

	"backupwiz/internal/models"
	"backupwiz/internal/source"
	"backupwiz/internal/transfer"
)

// SourceConn is the slice of the source reader the engine consumes,
// abstracted so cycles are testable without a tunnel or a database.
type SourceConn interface {
	LiveMessages(ctx context.Context, since *time.Time) ([]source.ChatMessage, error)
	HistoryMessages(ctx context.Context, since *time.Time) ([]source.ChatMessage, error)
	LiveConversations(ctx context.Context, since *time.Time) ([]source.ChatConversation, error)
	HistoryConversations(ctx context.Context, since *time.Time) ([]source.ChatConversation, error)
	Participants(ctx context.Context, conversationIDs []string) (map[string][]string, error)
	FileMappings(ctx context.Context) ([]source.FileMapping, error)
	CallLogs(ctx context.Context, since *time.Time) ([]source.CallRecord, error)
	Recordings(ctx context.Context, since *time.Time) ([]source.RecordingRecord, error)
	Voicemails(ctx context.Context, since *time.Time) ([]source.VoicemailRecord, error)
	Faxes(ctx context.Context, since *time.Time) ([]source.FaxRecord, error)
	Meetings(ctx context.Context, since *time.Time) ([]source.MeetingRecord, error)
	Extensions(ctx context.Context) ([]source.ExtensionRecord, error)
}

type MediaFetcher interface {
	List(ctx context.Context, dir string) ([]transfer.Entry, error)
	Fetch(ctx context.Context, path string) (io.ReadCloser, int64, error)
}

type BlobStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	SetDisplayName(ctx context.Context, key, displayName string) error
}

// Session bundles everything reachable through one tenant's tunnel. Close
// must release the source pool, the SFTP channel, and the tunnel itself;
// the engine defers it on every exit path.
type Session interface {
	Source() SourceConn
	Media() MediaFetcher
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, tenant models.Tenant) (Session, error)
}
