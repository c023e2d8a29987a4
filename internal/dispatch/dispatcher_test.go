package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/config"
	"github.com/solardesk/webhookd/internal/delivery"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/registry"
	"github.com/solardesk/webhookd/internal/signing"
	"github.com/solardesk/webhookd/internal/storage"
)

func newTestStack() (*Dispatcher, *registry.Registry, *storage.Memory) {
	store := storage.NewMemory()
	log := zerolog.Nop()
	reg := registry.New(store, log)
	engine := delivery.NewEngine(config.DeliveryConfig{Timeout: 5 * time.Second}, store, log)
	return New(reg, store, engine, log), reg, store
}

func TestSendDeliversToSubscribedEndpoint(t *testing.T) {
	var received []byte
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		signature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	d, reg, store := newTestStack()
	ctx := context.Background()
	ep, err := reg.Register(ctx, "t1", srv.URL, []models.EventType{models.EventLeadCreated}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	lead := models.Lead{ID: "lead_1", Name: "Dana Osei", Email: "dana@example.com"}
	created, err := d.LeadCreated(ctx, "t1", lead, map[string]string{"source": "import"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(created))
	}
	if created[0].Status != models.DeliveryPending || created[0].RetryCount != 0 {
		t.Fatalf("new delivery not pending: %+v", created[0])
	}
	d.Wait()

	got, err := store.GetDelivery(ctx, created[0].ID)
	if err != nil || got == nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.DeliveryDelivered || got.ResponseStatus != 200 {
		t.Fatalf("expected delivered with 200, got %s/%d (%s)", got.Status, got.ResponseStatus, got.ErrorMessage)
	}

	var env models.Envelope
	if err := json.Unmarshal(received, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != models.EventLeadCreated || env.TenantID != "t1" {
		t.Fatalf("envelope header wrong: %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Fatal("envelope timestamp missing")
	}
	if env.Metadata["source"] != "import" {
		t.Fatalf("metadata not carried: %v", env.Metadata)
	}
	var gotLead models.Lead
	if err := json.Unmarshal(env.Data, &gotLead); err != nil || gotLead != lead {
		t.Fatalf("typed data did not round trip: %+v (%v)", gotLead, err)
	}
	if !signing.Verify(ep.Secret, received, signature) {
		t.Fatal("signature does not verify with the endpoint secret")
	}
}

func TestSendFailureSchedulesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", 500)
	}))
	defer srv.Close()

	d, reg, store := newTestStack()
	ctx := context.Background()
	if _, err := reg.Register(ctx, "t1", srv.URL, []models.EventType{models.EventInvoicePaid}, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	created, err := d.InvoicePaid(ctx, "t1", models.Invoice{ID: "inv_1", Amount: 980}, nil)
	if err != nil {
		t.Fatalf("send must not surface delivery failures: %v", err)
	}
	d.Wait()

	got, _ := store.GetDelivery(ctx, created[0].ID)
	if got.Status != models.DeliveryRetrying || got.RetryCount != 1 {
		t.Fatalf("expected retrying/1, got %s/%d", got.Status, got.RetryCount)
	}
	if got.NextRetryAt == nil {
		t.Fatal("next_retry_at not scheduled")
	}
}

func TestSendNoSubscribersIsSilentNoop(t *testing.T) {
	d, reg, store := newTestStack()
	ctx := context.Background()

	// Subscribed to a different event type only.
	if _, err := reg.Register(ctx, "t1", "https://example.com/hook", []models.EventType{models.EventLeadCreated}, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	created, err := d.Send(ctx, "t1", models.EventInvoicePaid, models.Invoice{ID: "inv_1"}, nil)
	if err != nil {
		t.Fatalf("absence of subscribers must not be an error: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("expected zero deliveries, got %d", len(created))
	}
	rows, _ := store.ListDeliveries(ctx, "t1", 10, 0)
	if len(rows) != 0 {
		t.Fatalf("delivery rows created for unsubscribed event: %d", len(rows))
	}
}

func TestSendSkipsInactiveEndpoints(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	d, reg, store := newTestStack()
	ctx := context.Background()
	ep, err := reg.Register(ctx, "t1", srv.URL, []models.EventType{models.EventLeadCreated}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	inactive := false
	if _, err := reg.Update(ctx, ep.ID, registry.Update{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	created, err := d.LeadCreated(ctx, "t1", models.Lead{ID: "lead_1"}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	d.Wait()

	if len(created) != 0 || hits.Load() != 0 {
		t.Fatalf("inactive endpoint received deliveries: rows=%d hits=%d", len(created), hits.Load())
	}
	rows, _ := store.ListDeliveries(ctx, "t1", 10, 0)
	if len(rows) != 0 {
		t.Fatalf("delivery rows created for inactive endpoint: %d", len(rows))
	}
}

func TestSendEndpointsAreIndependent(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", 503)
	}))
	defer broken.Close()

	d, reg, store := newTestStack()
	ctx := context.Background()
	events := []models.EventType{models.EventContractSigned}
	healthy, _ := reg.Register(ctx, "t1", ok.URL, events, "")
	failing, _ := reg.Register(ctx, "t1", broken.URL, events, "")

	created, err := d.ContractSigned(ctx, "t1", models.Contract{ID: "c1", TotalValue: 18500}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected a delivery row per endpoint, got %d", len(created))
	}
	d.Wait()

	byEndpoint := map[string]models.DeliveryStatus{}
	for _, rec := range created {
		got, _ := store.GetDelivery(ctx, rec.ID)
		byEndpoint[got.EndpointID] = got.Status
	}
	if byEndpoint[healthy.ID] != models.DeliveryDelivered {
		t.Fatalf("healthy endpoint: %s", byEndpoint[healthy.ID])
	}
	if byEndpoint[failing.ID] != models.DeliveryRetrying {
		t.Fatalf("failing endpoint must not block the healthy one: %s", byEndpoint[failing.ID])
	}
}

func TestSendUnknownEventRejected(t *testing.T) {
	d, _, _ := newTestStack()
	if _, err := d.Send(context.Background(), "t1", "panel.cleaned", nil, nil); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
