package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnreachable means the tunnel came up but Postgres on the other end did
// not answer. Kept distinct from tunnel.ErrUnavailable so operators can tell
// "SSH is fine, Postgres is down" from "can't even reach the host".
var ErrUnreachable = errors.New("source database unreachable")

type ConnectConfig struct {
	// Addr is the local tunnel endpoint (host:port).
	Addr           string
	Database       string
	User           string
	Password       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// Reader issues read-only queries against a tenant's 3CX database through an
// open tunnel. It holds a small pool scoped to one sync cycle; no write is
// ever attempted against the source system.
type Reader struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func Connect(ctx context.Context, cfg ConnectConfig) (*Reader, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 60 * time.Second
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&connect_timeout=%d",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
		cfg.Addr, url.PathEscape(cfg.Database),
		int(cfg.ConnectTimeout.Seconds()))

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrUnreachable, err)
	}
	pcfg.MaxConns = 3
	pcfg.MinConns = 1
	pcfg.MaxConnLifetime = 30 * time.Minute
	pcfg.MaxConnIdleTime = 10 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnreachable, err)
	}

	return &Reader{pool: pool, queryTimeout: cfg.QueryTimeout}, nil
}

func (r *Reader) Close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

func (r *Reader) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

// LiveMessages reads the mutable chat message table, filtered by watermark
// when since is non-nil.
func (r *Reader) LiveMessages(ctx context.Context, since *time.Time) ([]ChatMessage, error) {
	return r.scanMessages(ctx, qLiveMessages, since)
}

// HistoryMessages reads the reconciled history view maintained by 3CX. It can
// lag the live table, and carries resolved sender display names the live
// table lacks.
func (r *Reader) HistoryMessages(ctx context.Context, since *time.Time) ([]ChatMessage, error) {
	return r.scanMessages(ctx, qHistoryMessages, since)
}

func (r *Reader) scanMessages(ctx context.Context, query string, since *time.Time) ([]ChatMessage, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
			&m.Body, &m.SentAt, &m.IsExternal); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Reader) LiveConversations(ctx context.Context, since *time.Time) ([]ChatConversation, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qLiveConversations, since)
	if err != nil {
		return nil, fmt.Errorf("query live conversations: %w", err)
	}
	defer rows.Close()

	var out []ChatConversation
	for rows.Next() {
		var c ChatConversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan live conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) HistoryConversations(ctx context.Context, since *time.Time) ([]ChatConversation, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qHistoryConversations, since)
	if err != nil {
		return nil, fmt.Errorf("query history conversations: %w", err)
	}
	defer rows.Close()

	var out []ChatConversation
	for rows.Next() {
		var c ChatConversation
		if err := rows.Scan(&c.ID, &c.Title, &c.MessageCount, &c.CreatedAt, &c.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scan history conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Participants resolves member names for the given conversations from the
// membership table. Used to enrich live-only conversations the history view
// has not caught up with.
func (r *Reader) Participants(ctx context.Context, conversationIDs []string) (map[string][]string, error) {
	if len(conversationIDs) == 0 {
		return map[string][]string{}, nil
	}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qParticipants, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var convID, name string
		if err := rows.Scan(&convID, &name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[convID] = append(out[convID], name)
	}
	return out, rows.Err()
}

// FileMappings reads the full hash-to-filename mapping table. Unfiltered:
// the linker is idempotent and re-attempts unmatched files every cycle.
func (r *Reader) FileMappings(ctx context.Context) ([]FileMapping, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qFileMappings)
	if err != nil {
		return nil, fmt.Errorf("query file mappings: %w", err)
	}
	defer rows.Close()

	var out []FileMapping
	for rows.Next() {
		var m FileMapping
		if err := rows.Scan(&m.HashName, &m.PublicName, &m.MessageID); err != nil {
			return nil, fmt.Errorf("scan file mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Reader) CallLogs(ctx context.Context, since *time.Time) ([]CallRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qCallLogs, since)
	if err != nil {
		return nil, fmt.Errorf("query call logs: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var c CallRecord
		if err := rows.Scan(&c.ID, &c.CallerNumber, &c.CallerName, &c.CalleeNumber,
			&c.CalleeName, &c.Direction, &c.StartedAt, &c.EndedAt, &c.Duration,
			&c.Answered, &c.Cost); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) Recordings(ctx context.Context, since *time.Time) ([]RecordingRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qRecordings, since)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingRecord
	for rows.Next() {
		var rec RecordingRecord
		if err := rows.Scan(&rec.ID, &rec.Extension, &rec.OtherParty, &rec.StartedAt,
			&rec.Duration, &rec.FileName, &rec.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Reader) Voicemails(ctx context.Context, since *time.Time) ([]VoicemailRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qVoicemails, since)
	if err != nil {
		return nil, fmt.Errorf("query voicemails: %w", err)
	}
	defer rows.Close()

	var out []VoicemailRecord
	for rows.Next() {
		var v VoicemailRecord
		if err := rows.Scan(&v.ID, &v.Extension, &v.CallerNumber, &v.ReceivedAt,
			&v.Duration, &v.FileName, &v.SizeBytes, &v.Transcription); err != nil {
			return nil, fmt.Errorf("scan voicemail: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Reader) Faxes(ctx context.Context, since *time.Time) ([]FaxRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qFaxes, since)
	if err != nil {
		return nil, fmt.Errorf("query faxes: %w", err)
	}
	defer rows.Close()

	var out []FaxRecord
	for rows.Next() {
		var f FaxRecord
		if err := rows.Scan(&f.ID, &f.FromNumber, &f.ToNumber, &f.ReceivedAt,
			&f.Pages, &f.FileName, &f.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan fax: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Reader) Meetings(ctx context.Context, since *time.Time) ([]MeetingRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qMeetings, since)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var out []MeetingRecord
	for rows.Next() {
		var m MeetingRecord
		if err := rows.Scan(&m.ID, &m.Title, &m.Organizer, &m.StartedAt,
			&m.Duration, &m.FileName, &m.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Extensions has no watermark column; the table is small and fully rescanned
// every cycle.
func (r *Reader) Extensions(ctx context.Context) ([]ExtensionRecord, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(qctx, qExtensions)
	if err != nil {
		return nil, fmt.Errorf("query extensions: %w", err)
	}
	defer rows.Close()

	var out []ExtensionRecord
	for rows.Next() {
		var e ExtensionRecord
		if err := rows.Scan(&e.ID, &e.Number, &e.DisplayName, &e.Email, &e.Enabled); err != nil {
			return nil, fmt.Errorf("scan extension: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
