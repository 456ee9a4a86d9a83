package sync

import (
	"context"
	"strconv"
	"testing"
	"time"

	"backupwiz/internal/models"
	"backupwiz/internal/retry"
	"backupwiz/internal/source"
	"backupwiz/internal/transfer"
)

func testTenant(id string) models.Tenant {
	return models.Tenant{
		ID:          id,
		Name:        "tenant-" + id,
		Active:      true,
		ChatEnabled: true,
	}
}

func testEngine(store *stubStore, dialer Dialer, blobs BlobStore) *Engine {
	return &Engine{
		Store: store,
		Dial:  dialer,
		Blobs: blobs,
		Config: Config{
			BatchSize:           100,
			CycleTimeout:        time.Minute,
			DivergenceScanEvery: 12,
			Retry:               retry.Policy{MaxAttempts: 1},
		},
	}
}

func TestSyncTenantAdvancesWatermark(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := testTenant("t1")

	src := &stubSource{
		liveMessages: []source.ChatMessage{
			{ID: "m1", ConversationID: "c1", Body: "hi", SentAt: base},
			{ID: "m2", ConversationID: "c1", Body: "there", SentAt: base.Add(time.Minute)},
		},
		historyMessages: []source.ChatMessage{
			{ID: "m2", ConversationID: "c1", Body: "there", SentAt: base.Add(time.Minute)},
		},
		liveConvs: []source.ChatConversation{
			{ID: "c1", CreatedAt: &base},
		},
	}
	store := newStubStore()
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)
	res := e.SyncTenant(context.Background(), tenant, Options{})
	if res.Err != "" {
		t.Fatalf("unexpected tenant error: %s", res.Err)
	}

	msgRes := res.Streams[models.SyncMessages]
	if msgRes == nil || msgRes.Err != "" {
		t.Fatalf("messages stream failed: %+v", msgRes)
	}
	if msgRes.Fetched != 2 || msgRes.Written != 2 {
		t.Fatalf("expected 2 fetched / 2 written, got %d / %d", msgRes.Fetched, msgRes.Written)
	}
	if msgRes.Recon == nil || msgRes.Recon.Both != 1 || msgRes.Recon.LiveOnly != 1 {
		t.Fatalf("unexpected recon counts: %+v", msgRes.Recon)
	}

	status := store.status("t1", models.SyncMessages)
	if status.Status != models.SyncStatusIdle {
		t.Fatalf("expected idle status, got %s", status.Status)
	}
	if status.LastSuccessAt == nil {
		t.Fatalf("expected last success to be set")
	}
	wantWM := base.Add(time.Minute)
	if status.LastSyncedTimestamp == nil || !status.LastSyncedTimestamp.Equal(wantWM) {
		t.Fatalf("watermark = %v, want %v", status.LastSyncedTimestamp, wantWM)
	}
}

func TestSyncTenantIdempotentRerun(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := testTenant("t1")
	src := &stubSource{
		liveMessages: []source.ChatMessage{
			{ID: "m1", ConversationID: "c1", Body: "hi", SentAt: base},
		},
	}
	store := newStubStore()
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)
	// Force the unfiltered scan every cycle so the rerun re-fetches
	// everything and the fingerprint skip is what keeps writes at zero.
	e.Config.DivergenceScanEvery = 1

	first := e.SyncTenant(context.Background(), tenant, Options{})
	if first.Streams[models.SyncMessages].Written != 1 {
		t.Fatalf("first run written = %d, want 1", first.Streams[models.SyncMessages].Written)
	}

	second := e.SyncTenant(context.Background(), tenant, Options{})
	msgRes := second.Streams[models.SyncMessages]
	if msgRes.Err != "" {
		t.Fatalf("second run failed: %s", msgRes.Err)
	}
	if msgRes.Fetched != 1 || msgRes.Written != 0 {
		t.Fatalf("second run fetched/written = %d/%d, want 1/0", msgRes.Fetched, msgRes.Written)
	}

	status := store.status("t1", models.SyncMessages)
	if status.LastSyncedTimestamp == nil || !status.LastSyncedTimestamp.Equal(base) {
		t.Fatalf("watermark moved unexpectedly: %v", status.LastSyncedTimestamp)
	}
}

func TestSyncTenantPartialFailureKeepsWatermark(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := testTenant("t1")
	src := &stubSource{
		liveMessages: []source.ChatMessage{
			{ID: "m1", ConversationID: "c1", Body: "a", SentAt: base},
			{ID: "m2", ConversationID: "c1", Body: "b", SentAt: base.Add(time.Minute)},
			{ID: "m3", ConversationID: "c1", Body: "c", SentAt: base.Add(2 * time.Minute)},
		},
	}
	store := newStubStore()
	store.failMessageUpsertOnCall = 2
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)
	e.Config.BatchSize = 1

	res := e.SyncTenant(context.Background(), tenant, Options{})
	msgRes := res.Streams[models.SyncMessages]
	if msgRes.Err == "" {
		t.Fatalf("expected messages stream to fail")
	}

	status := store.status("t1", models.SyncMessages)
	if status.Status != models.SyncStatusError {
		t.Fatalf("expected error status, got %s", status.Status)
	}
	if status.FailureCount != 1 {
		t.Fatalf("failure count = %d, want 1", status.FailureCount)
	}
	// The watermark covers the committed first sub-batch and nothing past it.
	if status.LastSyncedTimestamp == nil || !status.LastSyncedTimestamp.Equal(base) {
		t.Fatalf("watermark = %v, want %v", status.LastSyncedTimestamp, base)
	}
}

func TestSyncAllTenantIsolation(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	broken := testTenant("broken")
	healthy := testTenant("healthy")

	store := newStubStore()
	store.tenants = []models.Tenant{broken, healthy}

	src := &stubSource{
		liveMessages: []source.ChatMessage{
			{ID: "m1", ConversationID: "c1", Body: "ok", SentAt: base},
		},
	}
	dialer := &stubDialer{
		sessions: map[string]*stubSession{"healthy": {src: src}},
		errs:     map[string]error{"broken": context.DeadlineExceeded},
	}
	e := testEngine(store, dialer, nil)

	result, err := e.SyncAll(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if len(result.Tenants) != 2 {
		t.Fatalf("expected 2 tenant results, got %d", len(result.Tenants))
	}

	var brokenRes, healthyRes *TenantResult
	for i := range result.Tenants {
		switch result.Tenants[i].TenantID {
		case "broken":
			brokenRes = &result.Tenants[i]
		case "healthy":
			healthyRes = &result.Tenants[i]
		}
	}
	if brokenRes == nil || brokenRes.Err == "" {
		t.Fatalf("expected broken tenant to carry an error")
	}
	if healthyRes == nil || healthyRes.Err != "" {
		t.Fatalf("healthy tenant affected by broken one: %+v", healthyRes)
	}
	if healthyRes.Streams[models.SyncMessages].Written != 1 {
		t.Fatalf("healthy tenant did not sync")
	}

	// Connect failure is visible on every enabled stream of the broken tenant.
	for _, st := range []models.SyncType{models.SyncExtensions, models.SyncConversations, models.SyncMessages} {
		if got := store.status("broken", st).Status; got != models.SyncStatusError {
			t.Fatalf("broken tenant %s status = %q, want error", st, got)
		}
	}
}

func TestSyncTenantSingleFlight(t *testing.T) {
	tenant := testTenant("t1")
	store := newStubStore()
	src := &stubSource{}
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)

	if !e.acquire("t1/messages") {
		t.Fatalf("initial acquire failed")
	}
	defer e.release("t1/messages")

	res := e.SyncTenant(context.Background(), tenant, Options{})
	if got := res.Streams[models.SyncMessages].Err; got != ErrSyncInFlight.Error() {
		t.Fatalf("messages stream err = %q, want in-flight", got)
	}
	// Other streams proceed.
	if res.Streams[models.SyncConversations].Err != "" {
		t.Fatalf("conversations stream blocked: %s", res.Streams[models.SyncConversations].Err)
	}
}

func TestSyncTenantEmptyConversation(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := testTenant("t1")
	src := &stubSource{
		liveConvs: []source.ChatConversation{
			{ID: "c-empty", CreatedAt: &base},
		},
		participants: map[string][]string{"c-empty": {"100", "101"}},
	}
	store := newStubStore()
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)

	res := e.SyncTenant(context.Background(), tenant, Options{})
	if res.Streams[models.SyncConversations].Written != 1 {
		t.Fatalf("empty conversation not written")
	}
	conv, ok := store.conversations["t1/c-empty"]
	if !ok {
		t.Fatalf("conversation row missing")
	}
	if conv.Provenance != models.ProvenanceLive || conv.MessageCount != 0 {
		t.Fatalf("unexpected conversation row: %+v", conv)
	}
}

func TestSyncTenantDivergenceScan(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := testTenant("t1")
	wm := base.Add(-time.Hour)
	succ := base.Add(-10 * time.Minute)

	seed := func(seq int) *stubStore {
		store := newStubStore()
		store.statuses[statusKey("t1", models.SyncMessages)] = models.SyncStatus{
			TenantID:            "t1",
			SyncType:            models.SyncMessages,
			LastSyncedTimestamp: &wm,
			LastSuccessAt:       &succ,
			Status:              models.SyncStatusIdle,
			Stats:               []byte(`{"seq":` + strconv.Itoa(seq) + `}`),
		}
		return store
	}

	// Cycle 12 of 12: unfiltered scan, watermark ignored for the fetch.
	src := &stubSource{}
	store := seed(11)
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)
	e.SyncTenant(context.Background(), tenant, Options{Skip: []models.SyncType{models.SyncConversations, models.SyncExtensions}})
	if got := src.lastSince["live_messages"]; got != nil {
		t.Fatalf("expected full scan (nil since), got %v", got)
	}

	// Mid-interval cycle: incremental from the watermark.
	src = &stubSource{}
	store = seed(5)
	e = testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src}}}, nil)
	e.SyncTenant(context.Background(), tenant, Options{Skip: []models.SyncType{models.SyncConversations, models.SyncExtensions}})
	got := src.lastSince["live_messages"]
	if got == nil || !got.Equal(wm) {
		t.Fatalf("expected incremental fetch from %v, got %v", wm, got)
	}
}

func TestMediaIngestUploadsOnce(t *testing.T) {
	tenant := testTenant("t1")
	dir := "/var/lib/3cxpbx/Instance1/Data/Chats"
	tenant.ChatFilesPath = &dir

	media := &stubMedia{
		entries: map[string][]transfer.Entry{
			dir: {
				{Name: "ab12cd34.png", Size: 4},
				{Name: "subdir", Dir: true},
			},
		},
		files: map[string][]byte{
			dir + "/ab12cd34.png": []byte("data"),
		},
	}
	src := &stubSource{}
	blobs := newStubBlob()
	store := newStubStore()
	e := testEngine(store, &stubDialer{sessions: map[string]*stubSession{"t1": {src: src, media: media}}}, blobs)

	res := e.SyncTenant(context.Background(), tenant, Options{})
	if res.Media == nil || res.Media.Uploaded != 1 {
		t.Fatalf("expected 1 upload, got %+v", res.Media)
	}
	if _, ok := blobs.objects["tenants/t1/chat/ab12cd34.png"]; !ok {
		t.Fatalf("blob missing from store")
	}
	unlinked, _ := store.ListUnlinkedMediaFiles(context.Background(), "t1")
	if len(unlinked) != 1 {
		t.Fatalf("expected 1 orphaned media row, got %d", len(unlinked))
	}

	res = e.SyncTenant(context.Background(), tenant, Options{})
	if res.Media.Uploaded != 0 || res.Media.Skipped != 1 {
		t.Fatalf("rerun should skip existing blob, got %+v", res.Media)
	}
	if blobs.puts != 1 {
		t.Fatalf("blob uploaded twice")
	}
}
