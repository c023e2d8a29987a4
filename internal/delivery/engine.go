// Package delivery executes webhook delivery attempts and drives the retry
// state machine: pending -> delivered | retrying -> delivered | failed.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/config"
	"github.com/solardesk/webhookd/internal/metrics"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/signing"
	"github.com/solardesk/webhookd/internal/storage"
)

const (
	userAgent       = "SolarDesk-Webhooks/1.0"
	maxResponseBody = 1000
)

type Engine struct {
	store      storage.Storage
	client     *http.Client
	maxRetries int
	schedule   []time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewEngine(cfg config.DeliveryConfig, store storage.Storage, log zerolog.Logger) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	schedule := cfg.RetrySchedule
	if len(schedule) == 0 {
		schedule = DefaultRetrySchedule
	}
	return &Engine{
		store:      store,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		schedule:   schedule,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type sendResult struct {
	StatusCode int
	Body       string
	Err        string
}

// Attempt executes one delivery attempt and persists the resulting state
// transition. It never returns an error: every outcome, including transport
// failures, is captured on the delivery record.
func (e *Engine) Attempt(ctx context.Context, d models.Delivery) {
	if d.Status.Terminal() {
		return
	}

	ep, err := e.store.GetEndpoint(ctx, d.EndpointID)
	if err != nil {
		// Store read failure: leave the record untouched for a later sweep.
		e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to load endpoint")
		return
	}
	if ep == nil {
		// No destination and no secret to sign with; retrying cannot help.
		e.resolve(ctx, &d, sendResult{Err: "endpoint not found"}, true)
		return
	}

	signature, err := signing.Sign(ep.Secret, d.Payload)
	if err != nil {
		e.resolve(ctx, &d, sendResult{Err: fmt.Sprintf("sign payload: %v", err)}, true)
		return
	}

	start := time.Now()
	result := e.send(ctx, ep.URL, signature, d.Payload)
	metrics.AttemptDuration.Observe(time.Since(start).Seconds())

	e.resolve(ctx, &d, result, false)
}

func (e *Engine) send(ctx context.Context, url, signature string, payload []byte) sendResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return sendResult{Err: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", e.now().Format(time.RFC3339))

	resp, err := e.client.Do(req)
	if err != nil {
		return sendResult{Err: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return sendResult{StatusCode: resp.StatusCode, Body: string(body)}
}

// resolve applies the attempt outcome to the record and persists it. fatal
// marks errors that cannot be fixed by retrying (missing endpoint, unusable
// secret).
func (e *Engine) resolve(ctx context.Context, d *models.Delivery, result sendResult, fatal bool) {
	now := e.now()
	d.ResponseStatus = result.StatusCode
	d.ResponseBody = result.Body

	switch {
	case result.Err == "" && IsSuccess(result.StatusCode):
		d.Status = models.DeliveryDelivered
		d.ErrorMessage = ""
		d.NextRetryAt = nil
		d.DeliveredAt = &now
		metrics.AttemptsTotal.WithLabelValues("delivered").Inc()
		e.log.Info().
			Str("delivery_id", d.ID).
			Str("endpoint_id", d.EndpointID).
			Int("status_code", result.StatusCode).
			Msg("delivery succeeded")

	case fatal || d.RetryCount >= e.maxRetries:
		d.Status = models.DeliveryFailed
		d.ErrorMessage = errorMessage(result)
		d.NextRetryAt = nil
		metrics.AttemptsTotal.WithLabelValues("failed").Inc()
		e.log.Warn().
			Str("delivery_id", d.ID).
			Int("retry_count", d.RetryCount).
			Str("error", d.ErrorMessage).
			Msg("delivery permanently failed")

	default:
		d.RetryCount++
		d.Status = models.DeliveryRetrying
		d.ErrorMessage = errorMessage(result)
		next := now.Add(RetryDelay(d.RetryCount, e.schedule))
		d.NextRetryAt = &next
		metrics.AttemptsTotal.WithLabelValues("retrying").Inc()
		e.log.Info().
			Str("delivery_id", d.ID).
			Int("retry_count", d.RetryCount).
			Time("next_retry", next).
			Msg("delivery scheduled for retry")
	}

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery")
	}
}

func errorMessage(result sendResult) string {
	if result.Err != "" {
		return result.Err
	}
	return fmt.Sprintf("endpoint responded with status %d", result.StatusCode)
}
