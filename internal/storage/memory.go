package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/solardesk/webhookd/internal/models"
)

// Memory is an in-memory Storage used by tests. It applies the same
// non-terminal update guard as the SQLite implementation.
type Memory struct {
	mu         sync.Mutex
	endpoints  map[string]models.Endpoint
	deliveries map[string]models.Delivery
}

func NewMemory() *Memory {
	return &Memory{
		endpoints:  make(map[string]models.Endpoint),
		deliveries: make(map[string]models.Delivery),
	}
}

func (m *Memory) Migrate(ctx context.Context) error { return nil }
func (m *Memory) Close() error                      { return nil }

func (m *Memory) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[ep.ID] = *ep
	return nil
}

func (m *Memory) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	if !ok {
		return nil, nil
	}
	return &ep, nil
}

func (m *Memory) ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Endpoint
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListActiveEndpoints(ctx context.Context, tenantID string, event models.EventType) ([]models.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Endpoint
	for _, ep := range m.endpoints {
		if ep.TenantID == tenantID && ep.Active && ep.SubscribedTo(event) {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[ep.ID]; !ok {
		return nil
	}
	updated := *ep
	updated.UpdatedAt = time.Now().UTC()
	m.endpoints[ep.ID] = updated
	return nil
}

func (m *Memory) DeleteEndpoint(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.endpoints, id)
	return nil
}

func (m *Memory) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = *d
	return nil
}

func (m *Memory) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) ListDeliveries(ctx context.Context, tenantID string, limit, offset int) ([]models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var all []models.Delivery
	for _, d := range m.deliveries {
		if d.TenantID == tenantID {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.deliveries[d.ID]
	if !ok || existing.Status.Terminal() {
		return nil
	}
	updated := *d
	updated.UpdatedAt = time.Now().UTC()
	m.deliveries[d.ID] = updated
	return nil
}

func (m *Memory) GetDueRetries(ctx context.Context, now time.Time, limit int) ([]models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Delivery
	for _, d := range m.deliveries {
		if d.Status == models.DeliveryRetrying && d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Before(*due[j].NextRetryAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) GetStats(ctx context.Context, tenantID string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &Stats{}
	for _, d := range m.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		stats.TotalDeliveries++
		switch d.Status {
		case models.DeliveryDelivered:
			stats.DeliveredCount++
		case models.DeliveryFailed:
			stats.FailedCount++
		default:
			stats.PendingCount++
		}
	}
	for _, ep := range m.endpoints {
		if ep.TenantID != tenantID {
			continue
		}
		stats.TotalEndpoints++
		if ep.Active {
			stats.ActiveEndpoints++
		}
	}
	if stats.TotalDeliveries > 0 {
		stats.SuccessRate = float64(stats.DeliveredCount) / float64(stats.TotalDeliveries) * 100
	}
	return stats, nil
}
