package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"backupwiz/internal/models"
	"backupwiz/internal/reconcile"
	"backupwiz/internal/repository"
	"backupwiz/internal/retry"
)

var (
	ErrSyncInFlight   = errors.New("sync already running for this tenant and type")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is not active")
)

type Config struct {
	BatchSize           int
	CycleTimeout        time.Duration
	DivergenceScanEvery int
	Retry               retry.Policy
}

// Engine drives one sync cycle per tenant: open tunnel, read source, reconcile
// chat streams, upsert in watermark order, pull and link media, release the
// tunnel. Tenants are isolated; one tenant failing never aborts the run.
type Engine struct {
	Store  repository.Store
	Dial   Dialer
	Blobs  BlobStore
	Logger *zap.Logger
	Config Config

	mu       gosync.Mutex
	inFlight map[string]bool
}

type Options struct {
	// TenantID limits the run to a single tenant.
	TenantID string
	// Skip lists sync types excluded from this run.
	Skip []models.SyncType
	// Force ignores the tenant's sync interval.
	Force bool
}

type StreamResult struct {
	Fetched int               `json:"fetched"`
	Written int64             `json:"written"`
	Recon   *reconcile.Counts `json:"recon,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
	Err     string            `json:"error,omitempty"`
}

type TenantResult struct {
	TenantID   string                            `json:"tenant_id"`
	TenantName string                            `json:"tenant_name"`
	Streams    map[models.SyncType]*StreamResult `json:"streams"`
	Media      *MediaStats                       `json:"media,omitempty"`
	Linker     *LinkStats                        `json:"linker,omitempty"`
	Err        string                            `json:"error,omitempty"`
}

type RunResult struct {
	Tenants []TenantResult `json:"tenants"`
	Errors  int            `json:"errors"`
}

// cycleStats is what lands in the sync status stats JSONB column.
type cycleStats struct {
	Seq      int               `json:"seq"`
	FullScan bool              `json:"full_scan"`
	Fetched  int               `json:"fetched"`
	Written  int64             `json:"written"`
	Recon    *reconcile.Counts `json:"recon,omitempty"`
}

// SyncAll runs cycles for every due tenant (or the one named in opts).
// Per-tenant failures are recorded in the result, never propagated.
func (e *Engine) SyncAll(ctx context.Context, opts Options) (RunResult, error) {
	var tenants []models.Tenant
	if opts.TenantID != "" {
		tenant, err := e.Store.GetTenant(ctx, opts.TenantID)
		if err != nil {
			return RunResult{}, err
		}
		if tenant == nil {
			return RunResult{}, ErrTenantNotFound
		}
		if !tenant.Active {
			return RunResult{}, ErrTenantInactive
		}
		tenants = []models.Tenant{*tenant}
	} else {
		var err error
		tenants, err = e.Store.ListActiveTenants(ctx)
		if err != nil {
			return RunResult{}, err
		}
	}

	now := time.Now().UTC()
	result := RunResult{}
	for _, tenant := range tenants {
		if !opts.Force && !due(tenant, now) {
			continue
		}
		res := e.SyncTenant(ctx, tenant, opts)
		result.Tenants = append(result.Tenants, res)
		if res.Err != "" {
			result.Errors++
		}
		for _, sr := range res.Streams {
			if sr.Err != "" {
				result.Errors++
			}
		}
	}
	return result, nil
}

func due(tenant models.Tenant, now time.Time) bool {
	if tenant.LastSyncAt == nil {
		return true
	}
	interval := tenant.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return now.Sub(*tenant.LastSyncAt) >= interval
}

// SyncTenant runs one full cycle for one tenant. The tunnel and source pool
// live exactly as long as the cycle.
func (e *Engine) SyncTenant(ctx context.Context, tenant models.Tenant, opts Options) TenantResult {
	res := TenantResult{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Streams:    make(map[models.SyncType]*StreamResult),
	}

	timeout := e.Config.CycleTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := e.Dial.Dial(cctx, tenant)
	if err != nil {
		e.recordConnectFailure(ctx, tenant, opts, err)
		res.Err = err.Error()
		if e.Logger != nil {
			e.Logger.Warn("tenant connect failed",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
		return res
	}
	defer func() { _ = sess.Close() }()

	skipped := skipSet(opts.Skip)
	for _, st := range streams {
		if skipped[st.typ] {
			res.Streams[st.typ] = &StreamResult{Skipped: true}
			continue
		}
		if !st.enabled(tenant) {
			continue
		}
		res.Streams[st.typ] = e.runStream(cctx, sess.Source(), tenant, st)
	}

	chatRan := res.Streams[models.SyncMessages] != nil && res.Streams[models.SyncMessages].Err == "" && !res.Streams[models.SyncMessages].Skipped

	if sess.Media() != nil && e.Blobs != nil {
		media, err := e.ingestMedia(cctx, sess, tenant)
		res.Media = &media
		if err != nil && e.Logger != nil {
			e.Logger.Warn("media ingest incomplete",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
	}

	if chatRan {
		linker, err := e.linkMedia(cctx, sess.Source(), tenant.ID)
		res.Linker = &linker
		if err != nil && e.Logger != nil {
			e.Logger.Warn("media linking incomplete",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
		if err := e.Store.RefreshConversationMessageCounts(cctx, tenant.ID); err != nil && e.Logger != nil {
			e.Logger.Warn("conversation count refresh failed",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
	}

	if err := e.Store.TouchTenantSync(ctx, tenant.ID, time.Now().UTC()); err != nil && e.Logger != nil {
		e.Logger.Warn("touch tenant failed", zap.String("tenant", tenant.ID), zap.Error(err))
	}

	return res
}

func skipSet(skip []models.SyncType) map[models.SyncType]bool {
	out := make(map[models.SyncType]bool, len(skip))
	for _, st := range skip {
		out[st] = true
	}
	return out
}

func (e *Engine) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil {
		e.inFlight = make(map[string]bool)
	}
	if e.inFlight[key] {
		return false
	}
	e.inFlight[key] = true
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

func (e *Engine) runStream(ctx context.Context, src SourceConn, tenant models.Tenant, st stream) *StreamResult {
	key := tenant.ID + "/" + string(st.typ)
	if !e.acquire(key) {
		return &StreamResult{Err: ErrSyncInFlight.Error()}
	}
	defer e.release(key)

	now := time.Now().UTC()
	status, err := e.Store.GetSyncStatus(ctx, tenant.ID, st.typ)
	if err != nil {
		return &StreamResult{Err: err.Error()}
	}
	if status == nil {
		status = &models.SyncStatus{TenantID: tenant.ID, SyncType: st.typ, Status: models.SyncStatusIdle}
	}

	seq := statsSeq(status.Stats) + 1
	full := status.LastSuccessAt == nil ||
		(e.Config.DivergenceScanEvery > 0 && seq%e.Config.DivergenceScanEvery == 0)
	var since *time.Time
	if !full {
		since = status.LastSyncedTimestamp
	}

	status.Status = models.SyncStatusRunning
	status.LastSyncAt = &now
	if err := e.Store.SaveSyncStatus(ctx, status); err != nil {
		return &StreamResult{Err: err.Error()}
	}

	var fetched fetchResult
	err = retry.Do(ctx, e.Config.Retry, isRetryable, func() error {
		var ferr error
		fetched, ferr = st.fetch(ctx, e, src, tenant, since)
		return ferr
	})
	if err != nil {
		return e.failStream(ctx, status, seq, full, err)
	}

	batchSize := e.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	var written int64
	for i := 0; i < fetched.count; i += batchSize {
		j := i + batchSize
		if j > fetched.count {
			j = fetched.count
		}
		suberr := e.Store.InTx(ctx, func(tx *gorm.DB) error {
			n, uerr := fetched.upsertRange(ctx, tx, i, j)
			if uerr != nil {
				return uerr
			}
			written += n
			// Advance the watermark transactionally with the rows it covers.
			// Records ascend by source timestamp, so the last row of the
			// sub-batch is its maximum.
			if ts := fetched.ts(j - 1); !ts.IsZero() {
				if status.LastSyncedTimestamp == nil || ts.After(*status.LastSyncedTimestamp) {
					t := ts
					status.LastSyncedTimestamp = &t
				}
			}
			return e.Store.SaveSyncStatusTx(ctx, tx, status)
		})
		if suberr != nil {
			sr := e.failStream(ctx, status, seq, full, suberr)
			sr.Fetched = fetched.count
			sr.Written = written
			sr.Recon = fetched.recon
			return sr
		}
	}

	done := time.Now().UTC()
	status.Status = models.SyncStatusIdle
	status.LastSuccessAt = &done
	status.LastError = nil
	status.FailureCount = 0
	status.Stats = marshalStats(cycleStats{
		Seq:      seq,
		FullScan: full,
		Fetched:  fetched.count,
		Written:  written,
		Recon:    fetched.recon,
	})
	if err := e.Store.SaveSyncStatus(ctx, status); err != nil {
		return &StreamResult{Fetched: fetched.count, Written: written, Recon: fetched.recon, Err: err.Error()}
	}

	if e.Logger != nil {
		e.Logger.Info("stream synced",
			zap.String("tenant", tenant.ID),
			zap.String("type", string(st.typ)),
			zap.Int("fetched", fetched.count),
			zap.Int64("written", written),
			zap.Bool("full_scan", full),
		)
	}
	return &StreamResult{Fetched: fetched.count, Written: written, Recon: fetched.recon}
}

func (e *Engine) failStream(ctx context.Context, status *models.SyncStatus, seq int, full bool, cause error) *StreamResult {
	now := time.Now().UTC()
	msg := cause.Error()
	status.Status = models.SyncStatusError
	status.LastErrorAt = &now
	status.LastError = &msg
	status.FailureCount++
	status.Stats = marshalStats(cycleStats{Seq: seq, FullScan: full})
	if err := e.Store.SaveSyncStatus(ctx, status); err != nil && e.Logger != nil {
		e.Logger.Error("save sync status failed",
			zap.String("tenant", status.TenantID),
			zap.String("type", string(status.SyncType)),
			zap.Error(err))
	}
	return &StreamResult{Err: msg}
}

// recordConnectFailure marks every runnable stream as errored so the health
// monitor sees the outage without a single row having synced.
func (e *Engine) recordConnectFailure(ctx context.Context, tenant models.Tenant, opts Options, cause error) {
	now := time.Now().UTC()
	msg := cause.Error()
	skipped := skipSet(opts.Skip)
	for _, st := range streams {
		if skipped[st.typ] || !st.enabled(tenant) {
			continue
		}
		status, err := e.Store.GetSyncStatus(ctx, tenant.ID, st.typ)
		if err != nil {
			continue
		}
		if status == nil {
			status = &models.SyncStatus{TenantID: tenant.ID, SyncType: st.typ}
		}
		status.Status = models.SyncStatusError
		status.LastSyncAt = &now
		status.LastErrorAt = &now
		status.LastError = &msg
		status.FailureCount++
		if err := e.Store.SaveSyncStatus(ctx, status); err != nil && e.Logger != nil {
			e.Logger.Error("save sync status failed",
				zap.String("tenant", tenant.ID), zap.Error(err))
		}
	}
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func statsSeq(raw []byte) int {
	if len(raw) == 0 {
		return 0
	}
	var cs cycleStats
	if err := json.Unmarshal(raw, &cs); err != nil {
		return 0
	}
	return cs.Seq
}

func marshalStats(cs cycleStats) []byte {
	b, err := json.Marshal(cs)
	if err != nil {
		return []byte(fmt.Sprintf(`{"seq":%d}`, cs.Seq))
	}
	return b
}
