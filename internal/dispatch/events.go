package dispatch

import (
	"context"

	"github.com/solardesk/webhookd/internal/models"
)

// Typed wrappers over Send, one per event variant. They carry no logic of
// their own beyond pairing the event type with its payload struct.

func (d *Dispatcher) LeadCreated(ctx context.Context, tenantID string, lead models.Lead, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventLeadCreated, lead, metadata)
}

func (d *Dispatcher) LeadUpdated(ctx context.Context, tenantID string, lead models.Lead, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventLeadUpdated, lead, metadata)
}

func (d *Dispatcher) ContractSent(ctx context.Context, tenantID string, contract models.Contract, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventContractSent, contract, metadata)
}

func (d *Dispatcher) ContractSigned(ctx context.Context, tenantID string, contract models.Contract, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventContractSigned, contract, metadata)
}

func (d *Dispatcher) InvoiceCreated(ctx context.Context, tenantID string, invoice models.Invoice, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventInvoiceCreated, invoice, metadata)
}

func (d *Dispatcher) InvoicePaid(ctx context.Context, tenantID string, invoice models.Invoice, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventInvoicePaid, invoice, metadata)
}

func (d *Dispatcher) ProjectScheduled(ctx context.Context, tenantID string, project models.Project, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventProjectScheduled, project, metadata)
}

func (d *Dispatcher) ProjectCompleted(ctx context.Context, tenantID string, project models.Project, metadata map[string]string) ([]models.Delivery, error) {
	return d.Send(ctx, tenantID, models.EventProjectCompleted, project, metadata)
}
