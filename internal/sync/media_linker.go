package sync

import (
	"context"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"backupwiz/internal/models"
	"backupwiz/internal/source"
)

// LinkStats summarizes one linking pass over a tenant's orphaned media rows.
type LinkStats struct {
	Linked         int `json:"linked"`
	NoMapping      int `json:"no_mapping"`
	MessageMissing int `json:"message_missing"`
	Failed         int `json:"failed"`
}

// linkMedia resolves orphaned chat media rows against the source file-mapping
// table: hash-named blob -> original filename + owning message. Unresolved
// rows stay orphaned and are retried next cycle; the mapping row often lands
// a cycle or two after the blob does.
func (e *Engine) linkMedia(ctx context.Context, src SourceConn, tenantID string) (LinkStats, error) {
	var stats LinkStats

	orphans, err := e.Store.ListUnlinkedMediaFiles(ctx, tenantID)
	if err != nil {
		return stats, err
	}
	if len(orphans) == 0 {
		return stats, nil
	}

	mappings, err := src.FileMappings(ctx)
	if err != nil {
		return stats, err
	}

	// The mapping table stores the hash name sometimes with and sometimes
	// without its extension; index both forms.
	byHash := make(map[string]source.FileMapping, len(mappings)*2)
	for _, m := range mappings {
		byHash[m.HashName] = m
		if stem := strings.TrimSuffix(m.HashName, path.Ext(m.HashName)); stem != m.HashName {
			byHash[stem] = m
		}
	}

	type match struct {
		file    models.MediaFile
		mapping source.FileMapping
	}
	var matches []match
	seen := make(map[string]bool)
	for _, f := range orphans {
		base := path.Base(f.StorageKey)
		m, ok := byHash[base]
		if !ok {
			m, ok = byHash[strings.TrimSuffix(base, path.Ext(base))]
		}
		if !ok {
			stats.NoMapping++
			continue
		}
		matches = append(matches, match{file: f, mapping: m})
		if !seen[m.MessageID] {
			seen[m.MessageID] = true
		}
	}
	if len(matches) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	messages, err := e.Store.FindMessagesBySourceIDs(ctx, tenantID, ids)
	if err != nil {
		return stats, err
	}
	bySourceID := make(map[string]models.Message, len(messages))
	for _, m := range messages {
		bySourceID[m.SourceID] = m
	}

	now := time.Now().UTC()
	for _, mt := range matches {
		msg, ok := bySourceID[mt.mapping.MessageID]
		if !ok {
			// Message not synced yet. Non-fatal, retried next cycle.
			stats.MessageMissing++
			continue
		}
		if err := e.Store.LinkMediaFile(ctx, mt.file.ID, msg.ID, mt.mapping.PublicName, mt.mapping.MessageID, now); err != nil {
			stats.Failed++
			if e.Logger != nil {
				e.Logger.Warn("media link failed",
					zap.String("tenant", tenantID),
					zap.String("key", mt.file.StorageKey),
					zap.Error(err))
			}
			continue
		}
		if e.Blobs != nil {
			// Tag the blob with its recovered display name. Best effort; the
			// database row is the source of truth for downloads.
			if err := e.Blobs.SetDisplayName(ctx, mt.file.StorageKey, mt.mapping.PublicName); err != nil && e.Logger != nil {
				e.Logger.Warn("blob display-name tag failed",
					zap.String("tenant", tenantID),
					zap.String("key", mt.file.StorageKey),
					zap.Error(err))
			}
		}
		stats.Linked++
	}

	return stats, nil
}
