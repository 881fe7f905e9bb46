package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventRentalCreated   = "rental_created"
	EventRentalConfirmed = "rental_confirmed"
	EventRentalActivated = "rental_activated"
	EventRentalReturned  = "rental_returned"
	EventRentalCancelled = "rental_cancelled"
	EventDressChanged    = "dress_changed"
)

// RentalEventPayload is the rental snapshot handed to subscribers.
type RentalEventPayload struct {
	RentalID      string    `json:"rental_id"`
	DressID       string    `json:"dress_id"`
	DressName     string    `json:"dress_name,omitempty"`
	ClientID      string    `json:"client_id"`
	Status        string    `json:"status"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	TotalPrice    int64     `json:"total_price"`
	DepositAmount int64     `json:"deposit_amount"`
	RefundAmount  *int64    `json:"refund_amount,omitempty"`
	ChangedAt     time.Time `json:"changed_at"`
}

// DressEventPayload names the dress touched by a catalog change.
type DressEventPayload struct {
	DressID   string    `json:"dress_id"`
	Action    string    `json:"action"` // created, updated, deleted
	ChangedAt time.Time `json:"changed_at"`
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type EventHandler func(event *Event) error

// EventBus is an in-process pub/sub. Handlers run synchronously on the publisher's goroutine.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type and joins their errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
