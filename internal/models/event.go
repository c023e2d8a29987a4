package models

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of domain events the CRM emits. Anything
// outside this set is rejected at endpoint registration and at emit time.
type EventType string

const (
	EventLeadCreated      EventType = "lead.created"
	EventLeadUpdated      EventType = "lead.updated"
	EventContractSent     EventType = "contract.sent"
	EventContractSigned   EventType = "contract.signed"
	EventInvoiceCreated   EventType = "invoice.created"
	EventInvoicePaid      EventType = "invoice.paid"
	EventProjectScheduled EventType = "project.scheduled"
	EventProjectCompleted EventType = "project.completed"
)

var knownEventTypes = map[EventType]struct{}{
	EventLeadCreated:      {},
	EventLeadUpdated:      {},
	EventContractSent:     {},
	EventContractSigned:   {},
	EventInvoiceCreated:   {},
	EventInvoicePaid:      {},
	EventProjectScheduled: {},
	EventProjectCompleted: {},
}

func (e EventType) Valid() bool {
	_, ok := knownEventTypes[e]
	return ok
}

func KnownEventTypes() []EventType {
	return []EventType{
		EventLeadCreated,
		EventLeadUpdated,
		EventContractSent,
		EventContractSigned,
		EventInvoiceCreated,
		EventInvoicePaid,
		EventProjectScheduled,
		EventProjectCompleted,
	}
}

// Envelope is the JSON structure actually transmitted and signed.
type Envelope struct {
	Event     EventType         `json:"event"`
	TenantID  string            `json:"tenant_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Typed payloads carried in the envelope's data field, one per event family.

type Lead struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Source string `json:"source,omitempty"`
	Status string `json:"status,omitempty"`
}

type Contract struct {
	ID         string  `json:"id"`
	LeadID     string  `json:"lead_id,omitempty"`
	TotalValue float64 `json:"total_value"`
	SystemKW   float64 `json:"system_kw,omitempty"`
	SignedBy   string  `json:"signed_by,omitempty"`
}

type Invoice struct {
	ID         string  `json:"id"`
	ContractID string  `json:"contract_id,omitempty"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency,omitempty"`
	DueDate    string  `json:"due_date,omitempty"`
}

type Project struct {
	ID           string `json:"id"`
	ContractID   string `json:"contract_id,omitempty"`
	Site         string `json:"site,omitempty"`
	ScheduledFor string `json:"scheduled_for,omitempty"`
	Installer    string `json:"installer,omitempty"`
}
