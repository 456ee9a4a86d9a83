package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backupwiz/internal/blobstore"
	"backupwiz/internal/models"
	"backupwiz/internal/reconcile"
	"backupwiz/internal/source"
)

// fetchResult is one stream's fetched batch, already converted and ordered by
// ascending source timestamp. The engine slices it into sub-batches and calls
// upsertRange per transaction; ts reports the source timestamp at index i so
// the watermark can follow the committed rows.
type fetchResult struct {
	count       int
	recon       *reconcile.Counts
	ts          func(i int) time.Time
	upsertRange func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error)
}

type stream struct {
	typ     models.SyncType
	enabled func(models.Tenant) bool
	fetch   func(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error)
}

// streams runs in dependency order: extensions first, conversations before
// messages, messages before anything that links media to them.
var streams = []stream{
	{
		typ:     models.SyncExtensions,
		enabled: func(models.Tenant) bool { return true },
		fetch:   fetchExtensions,
	},
	{
		typ:     models.SyncConversations,
		enabled: func(t models.Tenant) bool { return t.ChatEnabled },
		fetch:   fetchConversations,
	},
	{
		typ:     models.SyncMessages,
		enabled: func(t models.Tenant) bool { return t.ChatEnabled },
		fetch:   fetchMessages,
	},
	{
		typ:     models.SyncCallLogs,
		enabled: func(t models.Tenant) bool { return t.CallLogEnabled },
		fetch:   fetchCallLogs,
	},
	{
		typ:     models.SyncRecordings,
		enabled: func(t models.Tenant) bool { return t.RecordingsEnabled },
		fetch:   fetchRecordings,
	},
	{
		typ:     models.SyncVoicemails,
		enabled: func(t models.Tenant) bool { return t.VoicemailsEnabled },
		fetch:   fetchVoicemails,
	},
	{
		typ:     models.SyncFaxes,
		enabled: func(t models.Tenant) bool { return t.FaxesEnabled },
		fetch:   fetchFaxes,
	},
	{
		typ:     models.SyncMeetings,
		enabled: func(t models.Tenant) bool { return t.MeetingsEnabled },
		fetch:   fetchMeetings,
	},
}

// --- chat reconciliation ----------------------------------------------------

func fetchMessages(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	live, err := src.LiveMessages(ctx, since)
	if err != nil {
		return fetchResult{}, fmt.Errorf("live messages: %w", err)
	}
	history, err := src.HistoryMessages(ctx, since)
	if err != nil {
		return fetchResult{}, fmt.Errorf("history messages: %w", err)
	}

	merged, counts := reconcile.Merge(
		reconcile.Index(live, func(m source.ChatMessage) string { return m.ID }),
		reconcile.Index(history, func(m source.ChatMessage) string { return m.ID }),
		overlayMessage,
		func(a, b reconcile.Record[source.ChatMessage]) bool {
			if !a.Value.SentAt.Equal(b.Value.SentAt) {
				return a.Value.SentAt.Before(b.Value.SentAt)
			}
			return a.ID < b.ID
		},
	)

	now := time.Now().UTC()
	rows := make([]models.Message, len(merged))
	for i, rec := range merged {
		m := rec.Value
		rows[i] = models.Message{
			TenantID:             tenant.ID,
			SourceID:             m.ID,
			SourceConversationID: m.ConversationID,
			SenderID:             m.SenderID,
			SenderName:           m.SenderName,
			Body:                 m.Body,
			SentAt:               m.SentAt,
			IsExternal:           m.IsExternal,
			Provenance:           rec.Provenance.String(),
			Fingerprint: fingerprint(m.ConversationID, strPtr(m.SenderID),
				strPtr(m.SenderName), m.Body, timeKey(&m.SentAt),
				strconv.FormatBool(m.IsExternal), rec.Provenance.String()),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return fetchResult{
		count: len(rows),
		recon: &counts,
		ts:    func(i int) time.Time { return rows[i].SentAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertMessagesTx(ctx, tx, rows[i:j])
		},
	}, nil
}

// overlayMessage merges a message present in both representations. The history
// view carries the resolved display name; the live table carries the raw
// sender id. Text fields prefer history when it has them.
func overlayMessage(hist, live source.ChatMessage) source.ChatMessage {
	out := hist
	if out.SenderID == nil {
		out.SenderID = live.SenderID
	}
	if out.SenderName == nil {
		out.SenderName = live.SenderName
	}
	if out.Body == "" {
		out.Body = live.Body
	}
	if out.SentAt.IsZero() {
		out.SentAt = live.SentAt
	}
	return out
}

func fetchConversations(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	live, err := src.LiveConversations(ctx, since)
	if err != nil {
		return fetchResult{}, fmt.Errorf("live conversations: %w", err)
	}
	history, err := src.HistoryConversations(ctx, since)
	if err != nil {
		return fetchResult{}, fmt.Errorf("history conversations: %w", err)
	}

	merged, counts := reconcile.Merge(
		reconcile.Index(live, func(c source.ChatConversation) string { return c.ID }),
		reconcile.Index(history, func(c source.ChatConversation) string { return c.ID }),
		overlayConversation,
		func(a, b reconcile.Record[source.ChatConversation]) bool {
			at, bt := conversationTime(a.Value), conversationTime(b.Value)
			if !at.Equal(bt) {
				return at.Before(bt)
			}
			return a.ID < b.ID
		},
	)

	// Participant names live in their own table keyed by the live
	// conversation id. One query covers the whole batch.
	ids := make([]string, len(merged))
	for i, rec := range merged {
		ids[i] = rec.ID
	}
	participants, err := src.Participants(ctx, ids)
	if err != nil {
		return fetchResult{}, fmt.Errorf("participants: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]models.Conversation, len(merged))
	for i, rec := range merged {
		c := rec.Value
		names := c.Participants
		if p, ok := participants[rec.ID]; ok && len(p) > 0 {
			names = p
		}
		sort.Strings(names)
		pJSON, _ := json.Marshal(names)
		rows[i] = models.Conversation{
			TenantID:      tenant.ID,
			SourceID:      rec.ID,
			Title:         c.Title,
			Participants:  pJSON,
			MessageCount:  c.MessageCount,
			SourceCreated: c.CreatedAt,
			LastMessageAt: c.LastMessageAt,
			Provenance:    rec.Provenance.String(),
			Fingerprint: fingerprint(strPtr(c.Title), string(pJSON),
				strconv.Itoa(c.MessageCount), timeKey(c.CreatedAt),
				timeKey(c.LastMessageAt), rec.Provenance.String()),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	return fetchResult{
		count: len(rows),
		recon: &counts,
		ts: func(i int) time.Time {
			return conversationTime(merged[i].Value)
		},
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertConversationsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

func overlayConversation(hist, live source.ChatConversation) source.ChatConversation {
	out := hist
	if out.Title == nil {
		out.Title = live.Title
	}
	if len(out.Participants) == 0 {
		out.Participants = live.Participants
	}
	if out.CreatedAt == nil {
		out.CreatedAt = live.CreatedAt
	}
	if out.LastMessageAt == nil {
		out.LastMessageAt = live.LastMessageAt
	}
	return out
}

func conversationTime(c source.ChatConversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	if c.CreatedAt != nil {
		return *c.CreatedAt
	}
	return time.Time{}
}

// --- single-source streams --------------------------------------------------

func fetchCallLogs(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	recs, err := src.CallLogs(ctx, since)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.CallLog, len(recs))
	for i, r := range recs {
		rows[i] = models.CallLog{
			TenantID:        tenant.ID,
			SourceID:        r.ID,
			CallerNumber:    r.CallerNumber,
			CallerName:      r.CallerName,
			CalleeNumber:    r.CalleeNumber,
			CalleeName:      r.CalleeName,
			Direction:       r.Direction,
			StartedAt:       r.StartedAt,
			EndedAt:         r.EndedAt,
			DurationSeconds: r.Duration,
			Answered:        r.Answered,
			Cost:            parseCost(r.Cost),
			Fingerprint: fingerprint(r.CallerNumber, strPtr(r.CallerName),
				r.CalleeNumber, strPtr(r.CalleeName), r.Direction,
				timeKey(&r.StartedAt), timeKey(r.EndedAt),
				strconv.Itoa(r.Duration), strconv.FormatBool(r.Answered),
				strPtr(r.Cost)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(i int) time.Time { return rows[i].StartedAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertCallLogsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

func parseCost(raw *string) *decimal.Decimal {
	if raw == nil || *raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil
	}
	return &d
}

func fetchRecordings(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	recs, err := src.Recordings(ctx, since)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.Recording, len(recs))
	for i, r := range recs {
		key := blobstore.Key(tenant.ID, "recordings", r.FileName)
		rows[i] = models.Recording{
			TenantID:        tenant.ID,
			SourceID:        r.ID,
			Extension:       r.Extension,
			OtherParty:      r.OtherParty,
			StartedAt:       r.StartedAt,
			DurationSeconds: r.Duration,
			StorageKey:      key,
			SizeBytes:       r.SizeBytes,
			Fingerprint: fingerprint(r.Extension, strPtr(r.OtherParty),
				timeKey(&r.StartedAt), strconv.Itoa(r.Duration), key,
				strconv.FormatInt(r.SizeBytes, 10)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(i int) time.Time { return rows[i].StartedAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertRecordingsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

func fetchVoicemails(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	recs, err := src.Voicemails(ctx, since)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.Voicemail, len(recs))
	for i, r := range recs {
		key := blobstore.Key(tenant.ID, "voicemails", r.FileName)
		rows[i] = models.Voicemail{
			TenantID:        tenant.ID,
			SourceID:        r.ID,
			Extension:       r.Extension,
			CallerNumber:    r.CallerNumber,
			ReceivedAt:      r.ReceivedAt,
			DurationSeconds: r.Duration,
			StorageKey:      key,
			SizeBytes:       r.SizeBytes,
			Transcription:   r.Transcription,
			Fingerprint: fingerprint(r.Extension, strPtr(r.CallerNumber),
				timeKey(&r.ReceivedAt), strconv.Itoa(r.Duration), key,
				strconv.FormatInt(r.SizeBytes, 10), strPtr(r.Transcription)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(i int) time.Time { return rows[i].ReceivedAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertVoicemailsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

func fetchFaxes(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	recs, err := src.Faxes(ctx, since)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.Fax, len(recs))
	for i, r := range recs {
		key := blobstore.Key(tenant.ID, "faxes", r.FileName)
		rows[i] = models.Fax{
			TenantID:   tenant.ID,
			SourceID:   r.ID,
			FromNumber: r.FromNumber,
			ToNumber:   r.ToNumber,
			ReceivedAt: r.ReceivedAt,
			Pages:      r.Pages,
			StorageKey: key,
			SizeBytes:  r.SizeBytes,
			Fingerprint: fingerprint(r.FromNumber, r.ToNumber,
				timeKey(&r.ReceivedAt), strconv.Itoa(r.Pages), key,
				strconv.FormatInt(r.SizeBytes, 10)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(i int) time.Time { return rows[i].ReceivedAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertFaxesTx(ctx, tx, rows[i:j])
		},
	}, nil
}

func fetchMeetings(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, since *time.Time) (fetchResult, error) {
	recs, err := src.Meetings(ctx, since)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.MeetingRecording, len(recs))
	for i, r := range recs {
		key := blobstore.Key(tenant.ID, "meetings", r.FileName)
		rows[i] = models.MeetingRecording{
			TenantID:        tenant.ID,
			SourceID:        r.ID,
			Title:           r.Title,
			Organizer:       r.Organizer,
			StartedAt:       r.StartedAt,
			DurationSeconds: r.Duration,
			StorageKey:      key,
			SizeBytes:       r.SizeBytes,
			Fingerprint: fingerprint(strPtr(r.Title), strPtr(r.Organizer),
				timeKey(&r.StartedAt), strconv.Itoa(r.Duration), key,
				strconv.FormatInt(r.SizeBytes, 10)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(i int) time.Time { return rows[i].StartedAt },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertMeetingRecordingsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

// fetchExtensions is a full snapshot every cycle; the source table has no
// usable timestamp, so the watermark never advances for this stream.
func fetchExtensions(ctx context.Context, e *Engine, src SourceConn, tenant models.Tenant, _ *time.Time) (fetchResult, error) {
	recs, err := src.Extensions(ctx)
	if err != nil {
		return fetchResult{}, err
	}
	now := time.Now().UTC()
	rows := make([]models.Extension, len(recs))
	for i, r := range recs {
		rows[i] = models.Extension{
			TenantID:    tenant.ID,
			SourceID:    r.ID,
			Number:      r.Number,
			DisplayName: r.DisplayName,
			Email:       r.Email,
			Enabled:     r.Enabled,
			Fingerprint: fingerprint(r.Number, strPtr(r.DisplayName),
				strPtr(r.Email), strconv.FormatBool(r.Enabled)),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return fetchResult{
		count: len(rows),
		ts:    func(int) time.Time { return time.Time{} },
		upsertRange: func(ctx context.Context, tx *gorm.DB, i, j int) (int64, error) {
			return e.Store.UpsertExtensionsTx(ctx, tx, rows[i:j])
		},
	}, nil
}

// --- fingerprint helpers ----------------------------------------------------

// fingerprint hashes the synced fields of a record so upserts can skip rows
// that did not change. Fields are NUL-separated to keep adjacent values from
// running together.
func fingerprint(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func strPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timeKey(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}
