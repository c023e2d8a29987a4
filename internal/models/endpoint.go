package models

import "time"

type Endpoint struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	URL       string      `json:"url"`
	Secret    string      `json:"secret,omitempty"`
	Events    []EventType `json:"events"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SubscribedTo reports whether the endpoint's subscription list contains the
// event type. Exact membership; an empty list matches nothing.
func (e *Endpoint) SubscribedTo(event EventType) bool {
	for _, sub := range e.Events {
		if sub == event {
			return true
		}
	}
	return false
}
