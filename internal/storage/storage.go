package storage

import (
	"context"
	"time"

	"github.com/solardesk/webhookd/internal/models"
)

type Storage interface {
	// Endpoints
	CreateEndpoint(ctx context.Context, ep *models.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error)
	// ListActiveEndpoints returns the tenant's active endpoints subscribed to
	// the event type. This is the dispatcher's only read path.
	ListActiveEndpoints(ctx context.Context, tenantID string, event models.EventType) ([]models.Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error

	// Deliveries
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, tenantID string, limit, offset int) ([]models.Delivery, error)
	// UpdateDelivery persists an attempt outcome. Rows already in a terminal
	// status are left untouched.
	UpdateDelivery(ctx context.Context, d *models.Delivery) error
	// GetDueRetries returns up to limit deliveries with status=retrying and
	// next_retry_at at or before now, oldest first.
	GetDueRetries(ctx context.Context, now time.Time, limit int) ([]models.Delivery, error)

	// Stats
	GetStats(ctx context.Context, tenantID string) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type Stats struct {
	TotalDeliveries int64   `json:"total_deliveries"`
	DeliveredCount  int64   `json:"delivered_count"`
	FailedCount     int64   `json:"failed_count"`
	PendingCount    int64   `json:"pending_count"`
	SuccessRate     float64 `json:"success_rate"`
	TotalEndpoints  int64   `json:"total_endpoints"`
	ActiveEndpoints int64   `json:"active_endpoints"`
}
