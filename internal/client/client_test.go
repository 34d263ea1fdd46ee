package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientScheduleCache(t *testing.T) {
	var scheduleHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/barbers/5/schedule", func(w http.ResponseWriter, r *http.Request) {
		scheduleHits.Add(1)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "extra", r.Header.Get("x-api-extra"))
		assert.Equal(t, "9", r.Header.Get("x-user-id"))
		writeJSON(w, http.StatusOK, models.DaySchedule{BarberID: 5, Date: r.URL.Query().Get("date"), Slots: []models.Slot{{Status: models.SlotFree}}})
	})
	mux.HandleFunc("/api/v1/barbers/5/slots/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/barbers/5/slots/2030-01-07T10:00:00Z/toggle", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"status": "unavailable"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewClient(srv.URL+"/", "key", "extra", 9)
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		day, err := c.GetBarberSchedule(ctx, 5, "2030-01-07")
		require.NoError(t, err)
		assert.Equal(t, "2030-01-07", day.Date)
	}
	assert.Equal(t, int32(1), scheduleHits.Load())
	assert.True(t, mr.Exists(scheduleCacheKey(5)))

	st, err := c.ToggleSlot(ctx, 5, time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.SlotUnavailable, st)
	assert.False(t, mr.Exists(scheduleCacheKey(5)))

	_, err = c.GetBarberSchedule(ctx, 5, "2030-01-07")
	require.NoError(t, err)
	assert.Equal(t, int32(2), scheduleHits.Load())

	t.Run("TodayIsNotCached", func(t *testing.T) {
		before := scheduleHits.Load()
		_, err := c.GetBarberSchedule(ctx, 5, "")
		require.NoError(t, err)
		_, err = c.GetBarberSchedule(ctx, 5, "")
		require.NoError(t, err)
		assert.Equal(t, before+2, scheduleHits.Load())
	})
}

func TestClientErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "slot is no longer free", "code": "slot_conflict"})
	})
	mux.HandleFunc("/api/v1/bookings/3", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := NewClient(srv.URL, "", "", 1)
	ctx := context.Background()

	_, err := c.RequestBooking(ctx, models.BookingRequest{BarberID: 2, ShopID: 3, ServiceIDs: []int64{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSlotConflict)
	assert.True(t, domain.IsConflict(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = c.GetBooking(ctx, 3)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Empty(t, apiErr.Code)
	assert.NoError(t, errors.Unwrap(err))
}

func TestClientQueries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/barbers/2/bookings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "requested,accepted", r.URL.Query().Get("status"))
		assert.Equal(t, "2030-01-07", r.URL.Query().Get("date"))
		writeJSON(w, http.StatusOK, map[string]any{"bookings": []models.Booking{{ID: 4}}})
	})
	mux.HandleFunc("/api/v1/customers/me/bookings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{"bookings": []models.Booking{}})
	})
	mux.HandleFunc("/api/v1/bookings/4/actions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reject", body["action"])
		assert.Equal(t, "sick", body["reason"])
		assert.NotContains(t, body, "receipt")
		writeJSON(w, http.StatusOK, models.Booking{ID: 4, BarberID: 2, Status: models.StatusRejected})
	})
	mux.HandleFunc("/api/v1/shops/3/open", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		writeJSON(w, http.StatusOK, models.Shop{ID: 3, IsOpen: false})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := NewClient(srv.URL, "", "", 2)
	ctx := context.Background()

	list, err := c.ListBarberBookings(ctx, 2, []models.BookingStatus{models.StatusRequested, models.StatusAccepted}, "2030-01-07")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	mine, err := c.AsActor(7).ListCustomerBookings(ctx, []models.BookingStatus{models.StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, mine)

	b, err := c.ManageBooking(ctx, 4, models.ActionReject, "sick", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, b.Status)

	shop, err := c.SetShopOpen(ctx, 3, false)
	require.NoError(t, err)
	assert.False(t, shop.IsOpen)
}
