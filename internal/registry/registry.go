// Package registry owns webhook endpoint configuration: validation, secret
// generation, and the subscription read path used by the dispatcher.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/storage"
)

var ErrNotFound = fmt.Errorf("endpoint not found")

type Registry struct {
	store storage.Storage
	log   zerolog.Logger
	now   func() time.Time
}

func New(store storage.Storage, log zerolog.Logger) *Registry {
	return &Registry{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register validates and persists a new endpoint for the tenant. A signing
// secret is generated when none is supplied; the endpoint starts active.
func (r *Registry) Register(ctx context.Context, tenantID, rawURL string, events []models.EventType, secret string) (*models.Endpoint, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if err := validateEvents(events); err != nil {
		return nil, err
	}
	if secret == "" {
		secret = models.NewSecret()
	}

	now := r.now()
	ep := &models.Endpoint{
		ID:        models.NewID("ep"),
		TenantID:  tenantID,
		URL:       rawURL,
		Secret:    secret,
		Events:    events,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, fmt.Errorf("create endpoint: %w", err)
	}

	r.log.Info().
		Str("endpoint_id", ep.ID).
		Str("tenant_id", tenantID).
		Str("url", rawURL).
		Msg("endpoint registered")
	return ep, nil
}

// Update applies a partial update. Nil fields are left unchanged; changed
// fields are re-validated. The secret is never touched here.
type Update struct {
	URL    *string
	Events []models.EventType
	Active *bool
}

func (r *Registry) Update(ctx context.Context, endpointID string, upd Update) (*models.Endpoint, error) {
	ep, err := r.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("get endpoint: %w", err)
	}
	if ep == nil {
		return nil, ErrNotFound
	}

	if upd.URL != nil {
		if err := validateURL(*upd.URL); err != nil {
			return nil, err
		}
		ep.URL = *upd.URL
	}
	if upd.Events != nil {
		if err := validateEvents(upd.Events); err != nil {
			return nil, err
		}
		ep.Events = upd.Events
	}
	if upd.Active != nil {
		ep.Active = *upd.Active
	}
	ep.UpdatedAt = r.now()

	if err := r.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, fmt.Errorf("update endpoint: %w", err)
	}
	return ep, nil
}

// Delete hard-deletes the endpoint. Delivery history is untouched.
func (r *Registry) Delete(ctx context.Context, endpointID string) error {
	ep, err := r.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return fmt.Errorf("get endpoint: %w", err)
	}
	if ep == nil {
		return ErrNotFound
	}
	if err := r.store.DeleteEndpoint(ctx, endpointID); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	r.log.Info().Str("endpoint_id", endpointID).Msg("endpoint deleted")
	return nil
}

func (r *Registry) Get(ctx context.Context, endpointID string) (*models.Endpoint, error) {
	return r.store.GetEndpoint(ctx, endpointID)
}

func (r *Registry) List(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	return r.store.ListEndpoints(ctx, tenantID)
}

// ListActiveFor returns the tenant's active endpoints subscribed to the event.
func (r *Registry) ListActiveFor(ctx context.Context, tenantID string, event models.EventType) ([]models.Endpoint, error) {
	return r.store.ListActiveEndpoints(ctx, tenantID, event)
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute HTTP or HTTPS URL")
	}
	return nil
}

func validateEvents(events []models.EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}
	for _, e := range events {
		if !e.Valid() {
			return fmt.Errorf("unknown event type %q", e)
		}
	}
	return nil
}
