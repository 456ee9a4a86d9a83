package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"
	"time"

	"gorm.io/gorm"

	"backupwiz/internal/models"
	"backupwiz/internal/source"
	"backupwiz/internal/transfer"
)

// stubStore is an in-memory repository.Store. Entity upserts reproduce the
// fingerprint-skip behaviour of the real store: a row whose fingerprint did
// not change counts as zero rows written.
type stubStore struct {
	mu gosync.Mutex

	tenants      []models.Tenant
	statuses     map[string]models.SyncStatus
	fingerprints map[string]string

	messages      map[string]models.Message
	conversations map[string]models.Conversation
	mediaFiles    []models.MediaFile
	alerts        []models.AlertLog

	nextID uint64

	// failMessageUpsertOnCall fails the Nth UpsertMessagesTx call (1-based).
	failMessageUpsertOnCall int
	messageUpsertCalls      int
}

func newStubStore() *stubStore {
	return &stubStore{
		statuses:      make(map[string]models.SyncStatus),
		fingerprints:  make(map[string]string),
		messages:      make(map[string]models.Message),
		conversations: make(map[string]models.Conversation),
	}
}

func statusKey(tenantID string, syncType models.SyncType) string {
	return tenantID + "/" + string(syncType)
}

func (s *stubStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubStore) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	return s.tenants, nil
}

func (s *stubStore) ListActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range s.tenants {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	for i := range s.tenants {
		if s.tenants[i].ID == id {
			t := s.tenants[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.tenants = append(s.tenants, *tenant)
	return nil
}

func (s *stubStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	for i := range s.tenants {
		if s.tenants[i].ID == tenant.ID {
			s.tenants[i] = *tenant
		}
	}
	return nil
}

func (s *stubStore) SetTenantActive(ctx context.Context, id string, active bool) error {
	for i := range s.tenants {
		if s.tenants[i].ID == id {
			s.tenants[i].Active = active
		}
	}
	return nil
}

func (s *stubStore) TouchTenantSync(ctx context.Context, id string, at time.Time) error {
	for i := range s.tenants {
		if s.tenants[i].ID == id {
			t := at
			s.tenants[i].LastSyncAt = &t
		}
	}
	return nil
}

func (s *stubStore) GetSyncStatus(ctx context.Context, tenantID string, syncType models.SyncType) (*models.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[statusKey(tenantID, syncType)]; ok {
		out := st
		return &out, nil
	}
	return nil, nil
}

func (s *stubStore) ListSyncStatuses(ctx context.Context, tenantID string) ([]models.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncStatus
	for _, st := range s.statuses {
		if st.TenantID == tenantID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubStore) ListAllSyncStatuses(ctx context.Context) ([]models.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncStatus
	for _, st := range s.statuses {
		out = append(out, st)
	}
	return out, nil
}

func (s *stubStore) SaveSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	return s.SaveSyncStatusTx(ctx, nil, status)
}

func (s *stubStore) SaveSyncStatusTx(ctx context.Context, tx *gorm.DB, status *models.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[statusKey(status.TenantID, status.SyncType)] = *status
	return nil
}

func (s *stubStore) status(tenantID string, syncType models.SyncType) models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[statusKey(tenantID, syncType)]
}

// upsertOne returns 1 if the fingerprint for the natural key changed.
func (s *stubStore) upsertOne(table, tenantID, sourceID, fingerprint string) int64 {
	key := table + "/" + tenantID + "/" + sourceID
	if s.fingerprints[key] == fingerprint {
		return 0
	}
	s.fingerprints[key] = fingerprint
	return 1
}

func (s *stubStore) UpsertConversationsTx(ctx context.Context, tx *gorm.DB, items []models.Conversation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("conversations", item.TenantID, item.SourceID, item.Fingerprint)
		s.conversations[item.TenantID+"/"+item.SourceID] = item
	}
	return written, nil
}

func (s *stubStore) UpsertMessagesTx(ctx context.Context, tx *gorm.DB, items []models.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageUpsertCalls++
	if s.failMessageUpsertOnCall > 0 && s.messageUpsertCalls == s.failMessageUpsertOnCall {
		return 0, errors.New("injected upsert failure")
	}
	var written int64
	for _, item := range items {
		written += s.upsertOne("messages", item.TenantID, item.SourceID, item.Fingerprint)
		key := item.TenantID + "/" + item.SourceID
		if existing, ok := s.messages[key]; ok {
			item.ID = existing.ID
		} else {
			s.nextID++
			item.ID = s.nextID
		}
		s.messages[key] = item
	}
	return written, nil
}

func (s *stubStore) UpsertCallLogsTx(ctx context.Context, tx *gorm.DB, items []models.CallLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("call_logs", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) UpsertRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.Recording) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("recordings", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) UpsertVoicemailsTx(ctx context.Context, tx *gorm.DB, items []models.Voicemail) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("voicemails", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) UpsertFaxesTx(ctx context.Context, tx *gorm.DB, items []models.Fax) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("faxes", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) UpsertMeetingRecordingsTx(ctx context.Context, tx *gorm.DB, items []models.MeetingRecording) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("meeting_recordings", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) UpsertExtensionsTx(ctx context.Context, tx *gorm.DB, items []models.Extension) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var written int64
	for _, item := range items {
		written += s.upsertOne("extensions", item.TenantID, item.SourceID, item.Fingerprint)
	}
	return written, nil
}

func (s *stubStore) CreateMediaFile(ctx context.Context, item *models.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.mediaFiles {
		if f.TenantID == item.TenantID && f.StorageKey == item.StorageKey {
			return nil
		}
	}
	s.nextID++
	item.ID = s.nextID
	s.mediaFiles = append(s.mediaFiles, *item)
	return nil
}

func (s *stubStore) ListUnlinkedMediaFiles(ctx context.Context, tenantID string) ([]models.MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MediaFile
	for _, f := range s.mediaFiles {
		if f.TenantID == tenantID && f.MessageID == nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *stubStore) LinkMediaFile(ctx context.Context, id uint64, messageID uint64, fileName, sourceMessageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mediaFiles {
		if s.mediaFiles[i].ID == id && s.mediaFiles[i].MessageID == nil {
			mid := messageID
			smid := sourceMessageID
			ts := at
			s.mediaFiles[i].MessageID = &mid
			s.mediaFiles[i].FileName = fileName
			s.mediaFiles[i].SourceMessageID = &smid
			s.mediaFiles[i].LinkedAt = &ts
		}
	}
	return nil
}

func (s *stubStore) FindMessagesBySourceIDs(ctx context.Context, tenantID string, sourceIDs []string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, id := range sourceIDs {
		if m, ok := s.messages[tenantID+"/"+id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) RefreshConversationMessageCounts(ctx context.Context, tenantID string) error {
	return nil
}

func (s *stubStore) LastAlertAt(ctx context.Context, tenantID string, syncType models.SyncType) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for i := range s.alerts {
		a := s.alerts[i]
		if a.TenantID == tenantID && a.SyncType == syncType {
			if last == nil || a.SentAt.After(*last) {
				t := a.SentAt
				last = &t
			}
		}
	}
	return last, nil
}

func (s *stubStore) InsertAlertLog(ctx context.Context, item *models.AlertLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *item)
	return nil
}

// stubSource is a canned SourceConn that records the watermark each fetch was
// called with.
type stubSource struct {
	liveMessages    []source.ChatMessage
	historyMessages []source.ChatMessage
	liveConvs       []source.ChatConversation
	historyConvs    []source.ChatConversation
	participants    map[string][]string
	fileMappings    []source.FileMapping
	callLogs        []source.CallRecord
	recordings      []source.RecordingRecord
	voicemails      []source.VoicemailRecord
	faxes           []source.FaxRecord
	meetings        []source.MeetingRecord
	extensions      []source.ExtensionRecord

	lastSince map[string]*time.Time
	errs      map[string]error
}

func (s *stubSource) record(name string, since *time.Time) error {
	if s.lastSince == nil {
		s.lastSince = make(map[string]*time.Time)
	}
	s.lastSince[name] = since
	return s.errs[name]
}

func (s *stubSource) LiveMessages(ctx context.Context, since *time.Time) ([]source.ChatMessage, error) {
	return filterMessages(s.liveMessages, since), s.record("live_messages", since)
}

func (s *stubSource) HistoryMessages(ctx context.Context, since *time.Time) ([]source.ChatMessage, error) {
	return filterMessages(s.historyMessages, since), s.record("history_messages", since)
}

func filterMessages(in []source.ChatMessage, since *time.Time) []source.ChatMessage {
	if since == nil {
		return in
	}
	var out []source.ChatMessage
	for _, m := range in {
		if m.SentAt.After(*since) {
			out = append(out, m)
		}
	}
	return out
}

func (s *stubSource) LiveConversations(ctx context.Context, since *time.Time) ([]source.ChatConversation, error) {
	return s.liveConvs, s.record("live_conversations", since)
}

func (s *stubSource) HistoryConversations(ctx context.Context, since *time.Time) ([]source.ChatConversation, error) {
	return s.historyConvs, s.record("history_conversations", since)
}

func (s *stubSource) Participants(ctx context.Context, conversationIDs []string) (map[string][]string, error) {
	return s.participants, nil
}

func (s *stubSource) FileMappings(ctx context.Context) ([]source.FileMapping, error) {
	return s.fileMappings, s.errs["file_mappings"]
}

func (s *stubSource) CallLogs(ctx context.Context, since *time.Time) ([]source.CallRecord, error) {
	return s.callLogs, s.record("call_logs", since)
}

func (s *stubSource) Recordings(ctx context.Context, since *time.Time) ([]source.RecordingRecord, error) {
	return s.recordings, s.record("recordings", since)
}

func (s *stubSource) Voicemails(ctx context.Context, since *time.Time) ([]source.VoicemailRecord, error) {
	return s.voicemails, s.record("voicemails", since)
}

func (s *stubSource) Faxes(ctx context.Context, since *time.Time) ([]source.FaxRecord, error) {
	return s.faxes, s.record("faxes", since)
}

func (s *stubSource) Meetings(ctx context.Context, since *time.Time) ([]source.MeetingRecord, error) {
	return s.meetings, s.record("meetings", since)
}

func (s *stubSource) Extensions(ctx context.Context) ([]source.ExtensionRecord, error) {
	return s.extensions, s.errs["extensions"]
}

// stubMedia serves canned remote files keyed by full path.
type stubMedia struct {
	entries map[string][]transfer.Entry
	files   map[string][]byte
}

func (m *stubMedia) List(ctx context.Context, dir string) ([]transfer.Entry, error) {
	if m.entries == nil {
		return nil, fmt.Errorf("no such dir %s", dir)
	}
	entries, ok := m.entries[dir]
	if !ok {
		return nil, fmt.Errorf("no such dir %s", dir)
	}
	return entries, nil
}

func (m *stubMedia) Fetch(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, 0, fmt.Errorf("no such file %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

type stubBlob struct {
	mu      gosync.Mutex
	objects map[string][]byte
	tags    map[string]string
	puts    int
}

func newStubBlob() *stubBlob {
	return &stubBlob{objects: make(map[string][]byte), tags: make(map[string]string)}
}

func (b *stubBlob) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *stubBlob) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.puts++
	return nil
}

func (b *stubBlob) SetDisplayName(ctx context.Context, key, displayName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tags[key] = displayName
	return nil
}

type stubSession struct {
	src   SourceConn
	media MediaFetcher
}

func (s *stubSession) Source() SourceConn  { return s.src }
func (s *stubSession) Media() MediaFetcher { return s.media }
func (s *stubSession) Close() error        { return nil }

// stubDialer hands out per-tenant sessions, or a per-tenant error.
type stubDialer struct {
	sessions map[string]*stubSession
	errs     map[string]error
}

func (d *stubDialer) Dial(ctx context.Context, tenant models.Tenant) (Session, error) {
	if err := d.errs[tenant.ID]; err != nil {
		return nil, err
	}
	if sess, ok := d.sessions[tenant.ID]; ok {
		return sess, nil
	}
	return nil, fmt.Errorf("no session for tenant %s", tenant.ID)
}
