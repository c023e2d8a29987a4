// Package dispatch fans domain events out to subscribed endpoints. Record
// creation is synchronous; the HTTP attempts run on their own goroutines so
// a slow or failing endpoint can never fail the business operation that
// triggered the event.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/delivery"
	"github.com/solardesk/webhookd/internal/metrics"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/registry"
	"github.com/solardesk/webhookd/internal/storage"
)

type Dispatcher struct {
	registry *registry.Registry
	store    storage.Storage
	engine   *delivery.Engine
	log      zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func New(reg *registry.Registry, store storage.Storage, engine *delivery.Engine, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		store:    store,
		engine:   engine,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send notifies every active endpoint of the tenant subscribed to the event.
// Absence of subscribers is not an error. The returned deliveries are in
// state pending; their first attempts are already in flight. Attempt
// outcomes are only ever visible through delivery history, never here.
func (d *Dispatcher) Send(ctx context.Context, tenantID string, event models.EventType, data any, metadata map[string]string) ([]models.Delivery, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("unknown event type %q", event)
	}

	endpoints, err := d.registry.ListActiveFor(ctx, tenantID, event)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	envelope, err := json.Marshal(models.Envelope{
		Event:     event,
		TenantID:  tenantID,
		Timestamp: d.now(),
		Data:      raw,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	now := d.now()
	deliveries := make([]models.Delivery, 0, len(endpoints))
	for _, ep := range endpoints {
		rec := models.Delivery{
			ID:         models.NewID("dlv"),
			TenantID:   tenantID,
			EndpointID: ep.ID,
			EventType:  event,
			Payload:    envelope,
			Status:     models.DeliveryPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := d.store.CreateDelivery(ctx, &rec); err != nil {
			// One endpoint's trouble never blocks the others.
			d.log.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("endpoint_id", ep.ID).
				Msg("failed to create delivery")
			continue
		}
		metrics.DispatchedTotal.Inc()
		deliveries = append(deliveries, rec)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			// Detached from the caller's cancellation: once dispatched, an
			// attempt runs to completion and records its outcome.
			d.engine.Attempt(context.WithoutCancel(ctx), rec)
		}()
	}

	d.log.Info().
		Str("tenant_id", tenantID).
		Str("event", string(event)).
		Int("deliveries", len(deliveries)).
		Msg("event dispatched")
	return deliveries, nil
}

// Wait blocks until all in-flight first attempts have completed. Used at
// shutdown so outcomes are persisted before the store closes.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
