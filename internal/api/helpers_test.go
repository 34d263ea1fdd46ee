package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/events"
	"barberbook/internal/export"
	"barberbook/internal/models"
	"barberbook/internal/service"
	"barberbook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var bookingCfg = config.BookingConfig{
	DefaultWorkStart:      "09:00",
	DefaultWorkEnd:        "18:00",
	DefaultSlotMinutes:    30,
	DefaultTimezone:       "UTC",
	NearbyRadiusKm:        10,
	NearbyLimit:           10,
	MinOnboardingServices: 3,
}

type testEnv struct {
	db    *database.DB
	bus   *events.EventBus
	hub   *worker.LocalHub
	relay *worker.Relay
	svc   *Services

	barber, customer, customer2, stranger int64
	shop, haircut, beard                   int64
	slot                                   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	hub := worker.NewLocalHub(&logger)
	e := &testEnv{
		db:    db,
		bus:   bus,
		hub:   hub,
		relay: worker.NewRelay(db, hub, nil, config.RelayConfig{}, &logger),
		svc: &Services{
			Bookings: service.NewBookingService(db, bus, &logger),
			Schedule: service.NewScheduleService(db, nil, bus, &logger),
			Catalog:  service.NewCatalogService(db, bus, bookingCfg, &logger),
			Stats:    service.NewStatsService(db, &logger),
			Changes:  hub,
			Exporter: export.NewExporter(config.ExportConfig{Path: t.TempDir()}, &logger),
		},
		slot: time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC),
	}

	ctx := context.Background()
	mk := func(name string) int64 {
		u := &models.User{FullName: name}
		require.NoError(t, e.svc.Catalog.CreateUser(ctx, u))
		return u.ID
	}
	e.barber, e.customer, e.customer2, e.stranger = mk("Sam"), mk("Ann"), mk("Bob"), mk("Eve")

	shop, err := e.svc.Catalog.CompleteOnboarding(ctx, e.barber, models.Onboarding{
		Shop: models.Shop{Name: "Sharp", Latitude: 52.52, Longitude: 13.40},
		Services: []models.Service{
			{Name: "Haircut", Price: decimal.NewFromInt(20), DurationMinutes: 30},
			{Name: "Beard", Price: decimal.NewFromInt(15), DurationMinutes: 20},
			{Name: "Wash", Price: decimal.NewFromInt(10), DurationMinutes: 10},
		},
	})
	require.NoError(t, err)
	e.shop = shop.ID

	services, err := db.ListServices(ctx, e.shop, true)
	require.NoError(t, err)
	e.haircut, e.beard = services[0].ID, services[1].ID
	return e
}

func (e *testEnv) httpHandler(cfg config.APIConfig) http.Handler {
	logger := zerolog.New(io.Discard)
	return NewHTTPServer(cfg, e.svc, NewRateLimiter(cfg.RateLimit), &logger).Handler()
}

type request struct {
	method  string
	path    string
	actor   int64
	body    any
	headers map[string]string
}

func serve(t *testing.T, h http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.actor != 0 {
		req.Header.Set("x-user-id", strconv.FormatInt(r.actor, 10))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
