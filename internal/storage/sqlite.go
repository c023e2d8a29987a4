package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/solardesk/webhookd/internal/models"
)

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS webhook_endpoints (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			events TEXT NOT NULL DEFAULT '[]',
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			endpoint_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			response_status INTEGER NOT NULL DEFAULT 0,
			response_body TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0,
			next_retry_at DATETIME,
			delivered_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_tenant ON webhook_endpoints(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_tenant ON webhook_deliveries(tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_endpoint ON webhook_deliveries(endpoint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_retrying ON webhook_deliveries(status, next_retry_at) WHERE status = 'retrying'`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- Endpoints ---

func (s *SQLiteStorage) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	events, _ := json.Marshal(ep.Events)
	active := 0
	if ep.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_endpoints (id, tenant_id, url, secret, events, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.TenantID, ep.URL, ep.Secret, string(events), active, ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanEndpoint(row interface{ Scan(...interface{}) error }) (*models.Endpoint, error) {
	var ep models.Endpoint
	var events string
	var active int
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &events, &active, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(events), &ep.Events)
	ep.Active = active == 1
	return &ep, nil
}

func (s *SQLiteStorage) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, url, secret, events, active, created_at, updated_at FROM webhook_endpoints WHERE id = ?`, id)
	ep, err := s.scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ep, err
}

func (s *SQLiteStorage) ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, url, secret, events, active, created_at, updated_at
		 FROM webhook_endpoints WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

func (s *SQLiteStorage) ListActiveEndpoints(ctx context.Context, tenantID string, event models.EventType) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, url, secret, events, active, created_at, updated_at
		 FROM webhook_endpoints WHERE tenant_id = ? AND active = 1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		if ep.SubscribedTo(event) {
			endpoints = append(endpoints, *ep)
		}
	}
	return endpoints, rows.Err()
}

func (s *SQLiteStorage) UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	events, _ := json.Marshal(ep.Events)
	active := 0
	if ep.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_endpoints SET url = ?, events = ?, active = ?, updated_at = ? WHERE id = ?`,
		ep.URL, string(events), active, time.Now().UTC(), ep.ID,
	)
	return err
}

func (s *SQLiteStorage) DeleteEndpoint(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_endpoints WHERE id = ?`, id)
	return err
}

// --- Deliveries ---

func (s *SQLiteStorage) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, tenant_id, endpoint_id, event_type, payload, status,
		 response_status, response_body, error_message, retry_count, next_retry_at, delivered_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TenantID, d.EndpointID, d.EventType, string(d.Payload), d.Status,
		d.ResponseStatus, d.ResponseBody, d.ErrorMessage, d.RetryCount, d.NextRetryAt, d.DeliveredAt, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *SQLiteStorage) scanDelivery(row interface{ Scan(...interface{}) error }) (*models.Delivery, error) {
	var d models.Delivery
	var payload string
	err := row.Scan(&d.ID, &d.TenantID, &d.EndpointID, &d.EventType, &payload, &d.Status,
		&d.ResponseStatus, &d.ResponseBody, &d.ErrorMessage, &d.RetryCount, &d.NextRetryAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	return &d, nil
}

const deliveryColumns = `id, tenant_id, endpoint_id, event_type, payload, status,
	response_status, response_body, error_message, retry_count, next_retry_at, delivered_at, created_at, updated_at`

func (s *SQLiteStorage) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = ?`, id)
	d, err := s.scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStorage) ListDeliveries(ctx context.Context, tenantID string, limit, offset int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries
		 WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		d, err := s.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

func (s *SQLiteStorage) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	// The status guard keeps terminal rows immutable even if a stale attempt
	// tries to write after the record has been resolved.
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status = ?, response_status = ?, response_body = ?, error_message = ?,
		 retry_count = ?, next_retry_at = ?, delivered_at = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN ('delivered', 'failed')`,
		d.Status, d.ResponseStatus, d.ResponseBody, d.ErrorMessage,
		d.RetryCount, d.NextRetryAt, d.DeliveredAt, time.Now().UTC(), d.ID,
	)
	return err
}

func (s *SQLiteStorage) GetDueRetries(ctx context.Context, now time.Time, limit int) ([]models.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries
		 WHERE status = 'retrying' AND next_retry_at <= ?
		 ORDER BY next_retry_at ASC LIMIT ?`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		d, err := s.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// --- Stats ---

func (s *SQLiteStorage) GetStats(ctx context.Context, tenantID string) (*Stats, error) {
	stats := &Stats{}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE tenant_id = ?`, tenantID).Scan(&stats.TotalDeliveries)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE tenant_id = ? AND status = 'delivered'`, tenantID).Scan(&stats.DeliveredCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE tenant_id = ? AND status = 'failed'`, tenantID).Scan(&stats.FailedCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE tenant_id = ? AND status IN ('pending', 'retrying')`, tenantID).Scan(&stats.PendingCount)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_endpoints WHERE tenant_id = ?`, tenantID).Scan(&stats.TotalEndpoints)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_endpoints WHERE tenant_id = ? AND active = 1`, tenantID).Scan(&stats.ActiveEndpoints)

	if stats.TotalDeliveries > 0 {
		stats.SuccessRate = float64(stats.DeliveredCount) / float64(stats.TotalDeliveries) * 100
	}

	return stats, nil
}
