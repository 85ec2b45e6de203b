// Package notify delivers round outcomes to the caller-supplied evaluation
// endpoint. Delivery is best-effort; callers log failures and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

type Notifier struct {
	http *http.Client
}

func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Notifier{http: &http.Client{Timeout: timeout}}
}

// Send posts the outcome JSON to url. An empty url is a no-op: the caller
// did not ask to be notified.
func (n *Notifier) Send(ctx context.Context, url string, outcome domain.RoundOutcome) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
