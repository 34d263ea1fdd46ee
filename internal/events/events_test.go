package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(func(event *Event) error {
		received = event
		callCount++
		return nil
	}, EventBookingRequested)

	slot := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	err := bus.PublishJSON(EventBookingRequested, BookingEventPayload{BookingID: 7, BarberID: 3, SlotStart: slot})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingRequested, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.True(t, decoded.SlotStart.Equal(slot))
}

func TestEventBusMultipleTypes(t *testing.T) {
	bus := NewEventBus()
	var count int

	bus.Subscribe(func(_ *Event) error { count++; return nil }, EventBookingRequested, EventBookingTransitioned)

	require.NoError(t, bus.Publish(&Event{Type: EventBookingRequested}))
	require.NoError(t, bus.Publish(&Event{Type: EventBookingTransitioned}))
	require.NoError(t, bus.Publish(&Event{Type: EventSlotToggled}))

	assert.Equal(t, 2, count)
}

func TestEventBusHandlerError(t *testing.T) {
	bus := NewEventBus()
	var secondCalled bool

	bus.Subscribe(func(_ *Event) error { return errors.New("boom") }, EventShopToggled)
	bus.Subscribe(func(_ *Event) error { secondCalled = true; return nil }, EventShopToggled)

	err := bus.PublishJSON(EventShopToggled, ShopEventPayload{ShopID: 1})
	assert.EqualError(t, err, "boom")
	assert.True(t, secondCalled, "a failing handler must not starve the rest")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.Publish(&Event{Type: "unknown"}))
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventSlotToggled, SlotEventPayload{}))
}
