package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Alert is what the health monitor dispatches when a sync stream degrades to
// critical.
type Alert struct {
	TenantID    string    `json:"tenant_id"`
	TenantName  string    `json:"tenant_name"`
	SyncType    string    `json:"sync_type"`
	Level       string    `json:"level"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// WebhookNotifier posts alerts to the dashboard backend, which fans them out
// to tenant admins by email.
type WebhookNotifier struct {
	URL  string
	HTTP *http.Client
}

func (n *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	url := strings.TrimSpace(n.URL)
	if url == "" {
		return errors.New("webhook url is empty")
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
