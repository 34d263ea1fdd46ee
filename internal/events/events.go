package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingRequested    = "booking_requested"
	EventBookingTransitioned = "booking_transitioned"
	EventSlotToggled         = "slot_toggled"
	EventShopToggled         = "shop_toggled"
)

// BookingEventPayload is published after a booking change commits. The
// durable copy of the change is the outbox row; this one only wakes local
// consumers early.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	BarberID   int64     `json:"barber_id"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	Action     string    `json:"action,omitempty"`
	SlotStart  time.Time `json:"slot_start"`
	ActorID    int64     `json:"actor_id,omitempty"`
}

type SlotEventPayload struct {
	BarberID  int64     `json:"barber_id"`
	SlotStart time.Time `json:"slot_start"`
	Status    string    `json:"status"`
}

type ShopEventPayload struct {
	ShopID  int64 `json:"shop_id"`
	OwnerID int64 `json:"owner_id"`
	IsOpen  bool  `json:"is_open"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for one or more event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// on the caller's goroutine and must not block; the first error is returned
// after every handler has run.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON serializes the payload and publishes an event.
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
