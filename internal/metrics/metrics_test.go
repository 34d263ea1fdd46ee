package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/bookings", http.StatusCreated)
		IncGRPC("/barberbook.booking.v1.BookingService/RequestBooking", "OK")
		ObserveRelayLag(120 * time.Millisecond)
	})

	before := testutil.ToFloat64(bookingRequests.WithLabelValues("slot_conflict"))
	IncBookingRequest("slot_conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingRequests.WithLabelValues("slot_conflict")))

	before = testutil.ToFloat64(transitions.WithLabelValues("accept", "ok"))
	IncTransition("accept", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("accept", "ok")))

	IncRelayPublished()
	IncRelayRetried()
	IncRelayFailed()
	CacheHit()
	CacheMiss()
	assert.Equal(t, float64(1), testutil.ToFloat64(scheduleCache.WithLabelValues("hit")))
}

func TestHandler(t *testing.T) {
	Register()
	IncRelayPublished()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "barberbook_relay_events_total")
}
