package sync

import (
	"context"
	"fmt"
	"mime"
	"path"

	"go.uber.org/zap"

	"backupwiz/internal/blobstore"
	"backupwiz/internal/models"
	"backupwiz/internal/transfer"
)

// MediaStats summarizes one cycle's blob transfers across all categories.
type MediaStats struct {
	Uploaded int   `json:"uploaded"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Bytes    int64 `json:"bytes"`
}

func (m *MediaStats) add(o MediaStats) {
	m.Uploaded += o.Uploaded
	m.Skipped += o.Skipped
	m.Failed += o.Failed
	m.Bytes += o.Bytes
}

type mediaCategory struct {
	name    string
	path    func(models.Tenant) *string
	enabled func(models.Tenant) bool
	// tracked categories get a media_files row per blob for the linker.
	tracked bool
}

var mediaCategories = []mediaCategory{
	{
		name:    "chat",
		path:    func(t models.Tenant) *string { return t.ChatFilesPath },
		enabled: func(t models.Tenant) bool { return t.ChatEnabled },
		tracked: true,
	},
	{
		name:    "recordings",
		path:    func(t models.Tenant) *string { return t.RecordingsPath },
		enabled: func(t models.Tenant) bool { return t.RecordingsEnabled },
	},
	{
		name:    "voicemails",
		path:    func(t models.Tenant) *string { return t.VoicemailsPath },
		enabled: func(t models.Tenant) bool { return t.VoicemailsEnabled },
	},
	{
		name:    "faxes",
		path:    func(t models.Tenant) *string { return t.FaxesPath },
		enabled: func(t models.Tenant) bool { return t.FaxesEnabled },
	},
	{
		name:    "meetings",
		path:    func(t models.Tenant) *string { return t.MeetingsPath },
		enabled: func(t models.Tenant) bool { return t.MeetingsEnabled },
	},
}

// ingestMedia walks each configured media directory over SFTP and uploads any
// blob the object store does not already have. Blobs are immutable on the
// source (hash-named or recording files that never change after close), so
// existence is the only check needed.
func (e *Engine) ingestMedia(ctx context.Context, sess Session, tenant models.Tenant) (MediaStats, error) {
	var total MediaStats
	var firstErr error

	for _, cat := range mediaCategories {
		if !cat.enabled(tenant) {
			continue
		}
		dir := cat.path(tenant)
		if dir == nil || *dir == "" {
			continue
		}
		stats, err := e.ingestDir(ctx, sess.Media(), tenant, cat, *dir)
		total.add(stats)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", cat.name, err)
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	return total, firstErr
}

func (e *Engine) ingestDir(ctx context.Context, media MediaFetcher, tenant models.Tenant, cat mediaCategory, dir string) (MediaStats, error) {
	var stats MediaStats

	entries, err := media.List(ctx, dir)
	if err != nil {
		return stats, fmt.Errorf("list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.Dir {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		key := blobstore.Key(tenant.ID, cat.name, entry.Name)

		exists, err := e.Blobs.Exists(ctx, key)
		if err != nil {
			stats.Failed++
			continue
		}
		if exists {
			stats.Skipped++
		} else {
			if err := e.uploadBlob(ctx, media, transfer.Join(dir, entry.Name), key, entry.Size); err != nil {
				stats.Failed++
				if e.Logger != nil {
					e.Logger.Warn("blob upload failed",
						zap.String("tenant", tenant.ID),
						zap.String("key", key),
						zap.Error(err))
				}
				continue
			}
			stats.Uploaded++
			stats.Bytes += entry.Size
		}

		if cat.tracked {
			// Row insert is idempotent on (tenant_id, storage_key); blobs
			// already uploaded on an earlier cycle still get their row if a
			// crash lost it.
			ct := contentTypeFor(entry.Name)
			if err := e.Store.CreateMediaFile(ctx, &models.MediaFile{
				TenantID:    tenant.ID,
				FileName:    entry.Name,
				StorageKey:  key,
				SizeBytes:   entry.Size,
				ContentType: &ct,
			}); err != nil {
				stats.Failed++
			}
		}
	}
	return stats, nil
}

func (e *Engine) uploadBlob(ctx context.Context, media MediaFetcher, remotePath, key string, size int64) error {
	r, n, err := media.Fetch(ctx, remotePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	if n > 0 {
		size = n
	}
	return e.Blobs.Put(ctx, key, r, size, contentTypeFor(remotePath))
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
