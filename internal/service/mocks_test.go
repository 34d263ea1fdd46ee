package service

import (
	"context"
	"testing"
	"time"

	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

var _ domain.Repository = (*mockRepo)(nil)

func (m *mockRepo) CreateBookingRequest(ctx context.Context, req *models.BookingRequest) (*models.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) TransitionBooking(ctx context.Context, id int64, fn domain.TransitionFunc) (*models.Booking, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockRepo) GetBarber(ctx context.Context, id int64) (*models.Barber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Barber), args.Error(1)
}
func (m *mockRepo) ListSlotOccupants(ctx context.Context, id int64, from, to time.Time) ([]models.SlotOccupant, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SlotOccupant), args.Error(1)
}
func (m *mockRepo) ListSlotBlocks(ctx context.Context, id int64, from, to time.Time) ([]time.Time, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}
func (m *mockRepo) ToggleSlotBlock(ctx context.Context, id int64, slot time.Time) (bool, error) {
	args := m.Called(ctx, id, slot)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockRepo) CompleteOnboarding(ctx context.Context, ob *models.Onboarding) (*models.Shop, error) {
	args := m.Called(ctx, ob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}
func (m *mockRepo) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Shop), args.Error(1)
}
func (m *mockRepo) ListShops(ctx context.Context) ([]models.Shop, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Shop), args.Error(1)
}
func (m *mockRepo) SetShopOpen(ctx context.Context, id int64, open bool) error {
	return m.Called(ctx, id, open).Error(0)
}
func (m *mockRepo) CreateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}
func (m *mockRepo) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockRepo) UpdateService(ctx context.Context, id int64, p models.ServicePatch) (*models.Service, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockRepo) DeactivateService(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) ListServices(ctx context.Context, shopID int64, activeOnly bool) ([]models.Service, error) {
	args := m.Called(ctx, shopID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Service), args.Error(1)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

// env is a real in-memory database with one shop, its barber and two customers.
type env struct {
	db        *database.DB
	barber    int64
	customer  int64
	stranger  int64
	shop      int64
	haircut   int64
	beard     int64
	slot      time.Time
	nextSlot  time.Time
	dayString string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	mk := func(name string) int64 {
		u := &models.User{FullName: name}
		require.NoError(t, db.CreateUser(ctx, u))
		return u.ID
	}
	e := &env{db: db, barber: mk("Sam"), customer: mk("Ann"), stranger: mk("Eve")}

	shop, err := db.CompleteOnboarding(ctx, &models.Onboarding{
		BarberID:    e.barber,
		Shop:        models.Shop{Name: "Sharp"},
		WorkStart:   "09:00",
		WorkEnd:     "12:00",
		SlotMinutes: 30,
		Timezone:    "Europe/Berlin",
		Services: []models.Service{
			{Name: "Haircut", Price: decimal.RequireFromString("60"), DurationMinutes: 30},
			{Name: "Beard", Price: decimal.RequireFromString("39"), DurationMinutes: 20},
			{Name: "Wash", Price: decimal.RequireFromString("10"), DurationMinutes: 10},
		},
	})
	require.NoError(t, err)
	e.shop = shop.ID

	services, err := db.ListServices(ctx, e.shop, true)
	require.NoError(t, err)
	e.haircut, e.beard = services[0].ID, services[1].ID

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	e.slot = time.Date(2030, 1, 7, 10, 0, 0, 0, berlin)
	e.nextSlot = e.slot.Add(30 * time.Minute)
	e.dayString = "2030-01-07"
	return e
}

func (e *env) request(services ...int64) models.BookingRequest {
	return models.BookingRequest{BarberID: e.barber, ShopID: e.shop, SlotStart: e.slot, ServiceIDs: services}
}
