package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/solardesk/webhookd/internal/models"
	"github.com/solardesk/webhookd/internal/storage"
)

func newTestRegistry() *Registry {
	return New(storage.NewMemory(), zerolog.Nop())
}

func TestRegisterGeneratesSecret(t *testing.T) {
	r := newTestRegistry()
	ep, err := r.Register(context.Background(), "t1", "https://example.com/hook", []models.EventType{models.EventLeadCreated}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(ep.Secret) != 32 {
		t.Fatalf("expected 32-char secret, got %d chars", len(ep.Secret))
	}
	for _, c := range ep.Secret {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			t.Fatalf("secret contains non-alphanumeric char %q", c)
		}
	}
	if !ep.Active {
		t.Fatal("new endpoint should be active")
	}
}

func TestRegisterKeepsSuppliedSecret(t *testing.T) {
	r := newTestRegistry()
	ep, err := r.Register(context.Background(), "t1", "https://example.com/hook", []models.EventType{models.EventInvoicePaid}, "mysecret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ep.Secret != "mysecret" {
		t.Fatalf("supplied secret not kept: %q", ep.Secret)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	events := []models.EventType{models.EventLeadCreated}

	cases := []struct {
		name   string
		url    string
		events []models.EventType
	}{
		{"empty url", "", events},
		{"relative url", "/hooks/lead", events},
		{"bad scheme", "ftp://example.com/hook", events},
		{"no host", "https://", events},
		{"empty events", "https://example.com/hook", nil},
		{"unknown event", "https://example.com/hook", []models.EventType{"panel.cleaned"}},
	}
	for _, tc := range cases {
		if _, err := r.Register(ctx, "t1", tc.url, tc.events, ""); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestUpdatePartialAndRevalidation(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	ep, err := r.Register(ctx, "t1", "https://example.com/hook", []models.EventType{models.EventLeadCreated}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	badURL := "not-a-url"
	if _, err := r.Update(ctx, ep.ID, Update{URL: &badURL}); err == nil {
		t.Fatal("expected error for invalid updated url")
	}
	if _, err := r.Update(ctx, ep.ID, Update{Events: []models.EventType{"nope"}}); err == nil {
		t.Fatal("expected error for unknown updated event")
	}

	inactive := false
	newURL := "https://example.com/hook2"
	got, err := r.Update(ctx, ep.ID, Update{URL: &newURL, Active: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.URL != newURL || got.Active {
		t.Fatalf("partial update not applied: %+v", got)
	}
	if len(got.Events) != 1 || got.Events[0] != models.EventLeadCreated {
		t.Fatalf("events changed by unrelated update: %v", got.Events)
	}
	if got.Secret != ep.Secret {
		t.Fatal("update must not touch the secret")
	}
}

func TestUpdateMissingEndpoint(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Update(context.Background(), "ep_missing", Update{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(context.Background(), "ep_missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveForFilters(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	subscribed, _ := r.Register(ctx, "t1", "https://a.example.com", []models.EventType{models.EventLeadCreated}, "")
	r.Register(ctx, "t1", "https://b.example.com", []models.EventType{models.EventInvoicePaid}, "")
	other, _ := r.Register(ctx, "t1", "https://c.example.com", []models.EventType{models.EventLeadCreated}, "")
	inactive := false
	if _, err := r.Update(ctx, other.ID, Update{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	r.Register(ctx, "t2", "https://d.example.com", []models.EventType{models.EventLeadCreated}, "")

	got, err := r.ListActiveFor(ctx, "t1", models.EventLeadCreated)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != subscribed.ID {
		t.Fatalf("expected only the active subscribed endpoint, got %+v", got)
	}
}

func TestDeleteKeepsDeliveryHistory(t *testing.T) {
	store := storage.NewMemory()
	r := New(store, zerolog.Nop())
	ctx := context.Background()

	ep, err := r.Register(ctx, "t1", "https://example.com/hook", []models.EventType{models.EventLeadCreated}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	d := &models.Delivery{
		ID:         models.NewID("dlv"),
		TenantID:   "t1",
		EndpointID: ep.ID,
		EventType:  models.EventLeadCreated,
		Status:     models.DeliveryDelivered,
	}
	if err := store.CreateDelivery(ctx, d); err != nil {
		t.Fatalf("create delivery: %v", err)
	}

	if err := r.Delete(ctx, ep.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.GetDelivery(ctx, d.ID)
	if err != nil || got == nil {
		t.Fatalf("delivery history must survive endpoint deletion: %v %v", got, err)
	}
}
