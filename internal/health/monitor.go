package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"backupwiz/internal/models"
	"backupwiz/internal/notify"
)

// Store is the slice of the repository the monitor reads and the alert ledger
// it writes.
type Store interface {
	ListActiveTenants(ctx context.Context) ([]models.Tenant, error)
	ListSyncStatuses(ctx context.Context, tenantID string) ([]models.SyncStatus, error)
	LastAlertAt(ctx context.Context, tenantID string, syncType models.SyncType) (*time.Time, error)
	InsertAlertLog(ctx context.Context, item *models.AlertLog) error
}

const (
	LevelOK       = "ok"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// levelRank orders levels for worst-wins rollups.
func levelRank(level string) int {
	switch level {
	case LevelCritical:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

func worse(a, b string) string {
	if levelRank(b) > levelRank(a) {
		return b
	}
	return a
}

// Threshold is how stale a stream's last success may be before it degrades.
type Threshold struct {
	Warning  time.Duration
	Critical time.Duration
}

// thresholds reflect how often each stream's data changes: chat is near
// real-time, extension directories barely move.
var thresholds = map[models.SyncType]Threshold{
	models.SyncMessages:      {Warning: 10 * time.Minute, Critical: 15 * time.Minute},
	models.SyncConversations: {Warning: 10 * time.Minute, Critical: 15 * time.Minute},
	models.SyncCallLogs:      {Warning: 30 * time.Minute, Critical: 45 * time.Minute},
	models.SyncRecordings:    {Warning: 30 * time.Minute, Critical: 45 * time.Minute},
	models.SyncVoicemails:    {Warning: 30 * time.Minute, Critical: 45 * time.Minute},
	models.SyncFaxes:         {Warning: 60 * time.Minute, Critical: 90 * time.Minute},
	models.SyncMeetings:      {Warning: 60 * time.Minute, Critical: 90 * time.Minute},
	models.SyncExtensions:    {Warning: 90 * time.Minute, Critical: 120 * time.Minute},
}

type StreamHealth struct {
	SyncType      models.SyncType `json:"sync_type"`
	Level         string          `json:"level"`
	Reason        string          `json:"reason,omitempty"`
	LastSuccessAt *time.Time      `json:"last_success_at"`
	LastError     *string         `json:"last_error,omitempty"`
	FailureCount  int             `json:"failure_count,omitempty"`
	StaleFor      string          `json:"stale_for,omitempty"`
}

type TenantHealth struct {
	TenantID   string         `json:"tenant_id"`
	TenantName string         `json:"tenant_name"`
	Level      string         `json:"level"`
	Streams    []StreamHealth `json:"streams"`
}

type Report struct {
	Level       string         `json:"level"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tenants     []TenantHealth `json:"tenants"`
}

// Monitor evaluates every active tenant's sync streams against the staleness
// thresholds and dispatches rate-limited alerts for critical ones.
type Monitor struct {
	Store    Store
	Notifier notify.Notifier
	Logger   *zap.Logger

	// AlertWindow is the minimum gap between two alerts for the same
	// (tenant, sync type). Zero disables rate limiting.
	AlertWindow time.Duration

	// Now is swappable for tests.
	Now func() time.Time
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// Report evaluates all active tenants without side effects.
func (m *Monitor) Report(ctx context.Context) (Report, error) {
	now := m.now()
	report := Report{Level: LevelOK, GeneratedAt: now}

	tenants, err := m.Store.ListActiveTenants(ctx)
	if err != nil {
		return report, err
	}

	for _, tenant := range tenants {
		th, err := m.evaluateTenant(ctx, tenant, now)
		if err != nil {
			return report, err
		}
		report.Tenants = append(report.Tenants, th)
		report.Level = worse(report.Level, th.Level)
	}
	return report, nil
}

func (m *Monitor) evaluateTenant(ctx context.Context, tenant models.Tenant, now time.Time) (TenantHealth, error) {
	th := TenantHealth{TenantID: tenant.ID, TenantName: tenant.Name, Level: LevelOK}

	statuses, err := m.Store.ListSyncStatuses(ctx, tenant.ID)
	if err != nil {
		return th, err
	}
	byType := make(map[models.SyncType]models.SyncStatus, len(statuses))
	for _, s := range statuses {
		byType[s.SyncType] = s
	}

	for _, syncType := range models.AllSyncTypes {
		if !streamEnabled(tenant, syncType) {
			continue
		}
		status, ok := byType[syncType]
		var sh StreamHealth
		if !ok {
			sh = StreamHealth{
				SyncType: syncType,
				Level:    LevelCritical,
				Reason:   "never synced",
			}
		} else {
			sh = evaluateStream(status, now)
		}
		th.Streams = append(th.Streams, sh)
		th.Level = worse(th.Level, sh.Level)
	}
	return th, nil
}

func streamEnabled(tenant models.Tenant, syncType models.SyncType) bool {
	switch syncType {
	case models.SyncMessages, models.SyncConversations:
		return tenant.ChatEnabled
	case models.SyncCallLogs:
		return tenant.CallLogEnabled
	case models.SyncRecordings:
		return tenant.RecordingsEnabled
	case models.SyncVoicemails:
		return tenant.VoicemailsEnabled
	case models.SyncFaxes:
		return tenant.FaxesEnabled
	case models.SyncMeetings:
		return tenant.MeetingsEnabled
	default:
		return true
	}
}

func evaluateStream(status models.SyncStatus, now time.Time) StreamHealth {
	sh := StreamHealth{
		SyncType:      status.SyncType,
		Level:         LevelOK,
		LastSuccessAt: status.LastSuccessAt,
		LastError:     status.LastError,
		FailureCount:  status.FailureCount,
	}

	if status.LastSuccessAt == nil {
		sh.Level = LevelCritical
		sh.Reason = "never succeeded"
		return sh
	}
	if status.Status == models.SyncStatusError {
		sh.Level = LevelCritical
		sh.Reason = "last cycle failed"
		return sh
	}

	stale := now.Sub(*status.LastSuccessAt)
	sh.StaleFor = stale.Truncate(time.Second).String()
	t, ok := thresholds[status.SyncType]
	if !ok {
		return sh
	}
	switch {
	case stale >= t.Critical:
		sh.Level = LevelCritical
		sh.Reason = fmt.Sprintf("no successful sync for %s", sh.StaleFor)
	case stale >= t.Warning:
		sh.Level = LevelWarning
		sh.Reason = fmt.Sprintf("no successful sync for %s", sh.StaleFor)
	}
	return sh
}

// Run evaluates all tenants and dispatches one alert per critical stream,
// rate limited through the alert ledger. Dispatch failures are logged and do
// not abort the pass.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	report, err := m.Report(ctx)
	if err != nil {
		return report, err
	}
	if m.Notifier == nil {
		return report, nil
	}

	now := m.now()
	for _, tenant := range report.Tenants {
		for _, sh := range tenant.Streams {
			if sh.Level != LevelCritical {
				continue
			}
			if err := m.dispatch(ctx, tenant, sh, now); err != nil && m.Logger != nil {
				m.Logger.Warn("alert dispatch failed",
					zap.String("tenant", tenant.TenantID),
					zap.String("type", string(sh.SyncType)),
					zap.Error(err))
			}
		}
	}
	return report, nil
}

func (m *Monitor) dispatch(ctx context.Context, tenant TenantHealth, sh StreamHealth, now time.Time) error {
	if m.AlertWindow > 0 {
		last, err := m.Store.LastAlertAt(ctx, tenant.TenantID, sh.SyncType)
		if err != nil {
			return err
		}
		if last != nil && now.Sub(*last) < m.AlertWindow {
			return nil
		}
	}

	message := fmt.Sprintf("%s sync for %s is %s: %s",
		sh.SyncType, tenant.TenantName, sh.Level, sh.Reason)

	if err := m.Notifier.Send(ctx, notify.Alert{
		TenantID:    tenant.TenantID,
		TenantName:  tenant.TenantName,
		SyncType:    string(sh.SyncType),
		Level:       sh.Level,
		Description: message,
		At:          now,
	}); err != nil {
		return err
	}

	// Ledger write happens after a successful send so a failed webhook does
	// not suppress the retry on the next pass.
	return m.Store.InsertAlertLog(ctx, &models.AlertLog{
		TenantID: tenant.TenantID,
		SyncType: sh.SyncType,
		Level:    sh.Level,
		Message:  message,
		SentAt:   now,
	})
}
