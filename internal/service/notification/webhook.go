package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/circuitbreaker"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

// Webhook POSTs a Payload to a fixed URL.
type Webhook struct {
	url     string
	client  *http.Client
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewWebhook(url string, timeout time.Duration, m *metrics.Metrics) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "lab-webhook",
			MaxRequests:      1,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		}),
		metrics: m,
	}
}

func (w *Webhook) CaseSent(ctx context.Context, c *model.Case, lab *model.Lab) error {
	body, err := json.Marshal(NewPayload(c, lab))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	err = w.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook responded %d", resp.StatusCode)
		}
		return nil
	})
	w.record(err)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	return nil
}

func (w *Webhook) record(err error) {
	if w.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	w.metrics.Notifications.WithLabelValues("webhook", status).Inc()
}
