package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	customer  int64
	customer2 int64
	barber    int64
	barber2   int64
	shop      int64
	shop2     int64
	haircut   int64
	beard     int64
	wash      int64 // deactivated
	foreign   int64 // belongs to shop2
}

var slotAt = time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, db *DB) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	mkUser := func(name string) int64 {
		u := &models.User{FullName: name, Role: models.RoleCustomer}
		require.NoError(t, db.CreateUser(ctx, u))
		return u.ID
	}
	f.customer = mkUser("Ann")
	f.customer2 = mkUser("Bob")
	f.barber = mkUser("Sam")
	f.barber2 = mkUser("Tom")

	shop, err := db.CompleteOnboarding(ctx, &models.Onboarding{
		BarberID:    f.barber,
		Shop:        models.Shop{Name: "Sharp", Latitude: 55.75, Longitude: 37.61},
		WorkStart:   "09:00",
		WorkEnd:     "18:00",
		SlotMinutes: 30,
		Timezone:    "UTC",
		Services: []models.Service{
			{Name: "Haircut", Price: price("20"), DurationMinutes: 30},
			{Name: "Beard", Price: price("15"), DurationMinutes: 20},
			{Name: "Wash", Price: price("10"), DurationMinutes: 10},
		},
	})
	require.NoError(t, err)
	f.shop = shop.ID

	services, err := db.ListServices(ctx, f.shop, false)
	require.NoError(t, err)
	require.Len(t, services, 3)
	f.haircut, f.beard, f.wash = services[0].ID, services[1].ID, services[2].ID
	require.NoError(t, db.DeactivateService(ctx, f.wash))

	shop2, err := db.CompleteOnboarding(ctx, &models.Onboarding{
		BarberID:    f.barber2,
		Shop:        models.Shop{Name: "Fade", Latitude: 59.93, Longitude: 30.31},
		WorkStart:   "10:00",
		WorkEnd:     "20:00",
		SlotMinutes: 60,
		Timezone:    "UTC",
		Services: []models.Service{
			{Name: "Buzz", Price: price("12"), DurationMinutes: 15},
			{Name: "Fade", Price: price("25"), DurationMinutes: 45},
			{Name: "Shave", Price: price("18"), DurationMinutes: 30},
		},
	})
	require.NoError(t, err)
	f.shop2 = shop2.ID
	services2, err := db.ListServices(ctx, f.shop2, true)
	require.NoError(t, err)
	f.foreign = services2[0].ID

	return f
}

func (f fixture) request(services ...int64) *models.BookingRequest {
	return &models.BookingRequest{
		CustomerID: f.customer,
		BarberID:   f.barber,
		ShopID:     f.shop,
		SlotStart:  slotAt,
		ServiceIDs: services,
	}
}

func TestCompleteOnboarding(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	b, err := db.GetBarber(ctx, f.barber)
	require.NoError(t, err)
	assert.Equal(t, f.shop, b.ShopID)
	assert.Equal(t, "Sam", b.FullName)
	assert.Equal(t, 30, b.SlotMinutes)
	assert.True(t, b.IsActive)

	u, err := db.GetUser(ctx, f.barber)
	require.NoError(t, err)
	assert.Equal(t, models.RoleBarber, u.Role)

	_, err = db.CompleteOnboarding(ctx, &models.Onboarding{BarberID: f.barber, Shop: models.Shop{Name: "Again"}, WorkStart: "09:00", WorkEnd: "10:00", SlotMinutes: 30, Timezone: "UTC"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = db.GetBarber(ctx, f.customer)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindUserByName(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	u, err := db.FindUserByName(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, f.barber, u.ID)

	_, err = db.FindUserByName(ctx, "Nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServices(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	active, err := db.ListServices(ctx, f.shop, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	newPrice := price("22.50")
	svc, err := db.UpdateService(ctx, f.haircut, models.ServicePatch{Price: &newPrice})
	require.NoError(t, err)
	assert.True(t, newPrice.Equal(svc.Price))
	assert.Equal(t, "Haircut", svc.Name)

	_, err = db.UpdateService(ctx, 999, models.ServicePatch{Price: &newPrice})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, db.SetShopOpen(ctx, 999, false), domain.ErrNotFound)
}

func TestCreateBookingRequest(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	b, err := db.CreateBookingRequest(ctx, f.request(f.haircut, f.beard))
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, b.Status)
	assert.Equal(t, "35", b.Price.String())
	assert.Equal(t, models.PaymentCash, b.PaymentMethod)
	require.Len(t, b.Services, 2)

	// later catalog edits never reach the snapshot
	newPrice := price("99")
	_, err = db.UpdateService(ctx, f.haircut, models.ServicePatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.CustomerName)
	assert.True(t, got.SlotStart.Equal(slotAt))
	assert.Equal(t, "35", got.Price.String())
	require.Len(t, got.Services, 2)
	assert.Equal(t, "Haircut", got.Services[0].ServiceName)
	assert.Equal(t, "20", got.Services[0].PriceAtBooking.String())
	assert.Equal(t, "15", got.Services[1].PriceAtBooking.String())
	assert.False(t, got.FinalPrice.Valid)

	pending, err := db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.EventInsert, pending[0].EventType)
	assert.Equal(t, f.barber, pending[0].BarberID)
}

func TestCreateBookingRequestFailures(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *models.BookingRequest)
		wantErr error
	}{
		{"no services", func(r *models.BookingRequest) { r.ServiceIDs = nil }, domain.ErrInvalidServices},
		{"duplicate service", func(r *models.BookingRequest) { r.ServiceIDs = []int64{f.haircut, f.haircut} }, domain.ErrInvalidServices},
		{"inactive service", func(r *models.BookingRequest) { r.ServiceIDs = []int64{f.haircut, f.wash} }, domain.ErrInvalidServices},
		{"foreign service", func(r *models.BookingRequest) { r.ServiceIDs = []int64{f.foreign} }, domain.ErrInvalidServices},
		{"unknown service", func(r *models.BookingRequest) { r.ServiceIDs = []int64{4242} }, domain.ErrInvalidServices},
		{"barber of another shop", func(r *models.BookingRequest) { r.BarberID = f.barber2 }, domain.ErrNotFound},
		{"unknown shop", func(r *models.BookingRequest) { r.ShopID = 4242 }, domain.ErrNotFound},
		{"unknown customer", func(r *models.BookingRequest) { r.CustomerID = 4242 }, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(f.haircut)
			tt.mutate(req)
			_, err := db.CreateBookingRequest(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("shop closed", func(t *testing.T) {
		require.NoError(t, db.SetShopOpen(ctx, f.shop, false))
		defer db.SetShopOpen(ctx, f.shop, true)

		_, err := db.CreateBookingRequest(ctx, f.request(f.haircut))
		assert.ErrorIs(t, err, domain.ErrShopClosed)
	})

	pending, err := db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "failed requests must leave nothing behind")
}

func TestSlotConflicts(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	first, err := db.CreateBookingRequest(ctx, f.request(f.haircut))
	require.NoError(t, err)

	second := f.request(f.beard)
	second.CustomerID = f.customer2
	_, err = db.CreateBookingRequest(ctx, second)
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	reason := "changed plans"
	role := models.RoleCustomer
	_, err = db.TransitionBooking(ctx, first.ID, func(b *models.Booking) (*models.BookingUpdate, error) {
		return &models.BookingUpdate{Status: models.StatusCancelled, Reason: &reason, CancelledBy: &role}, nil
	})
	require.NoError(t, err)

	// cancellation frees the slot immediately
	_, err = db.CreateBookingRequest(ctx, second)
	assert.NoError(t, err)
}

func TestCompletedBookingKeepsSlot(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	first, err := db.CreateBookingRequest(ctx, f.request(f.haircut))
	require.NoError(t, err)
	for _, upd := range []*models.BookingUpdate{
		{Status: models.StatusAccepted},
		{Status: models.StatusCompleted, FinalPrice: decimal.NewNullDecimal(price("20"))},
	} {
		_, err = db.TransitionBooking(ctx, first.ID, func(*models.Booking) (*models.BookingUpdate, error) {
			return upd, nil
		})
		require.NoError(t, err)
	}

	_, err = db.ToggleSlotBlock(ctx, f.barber, slotAt)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	second := f.request(f.beard)
	second.CustomerID = f.customer2
	_, err = db.CreateBookingRequest(ctx, second)
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	occupants, err := db.ListSlotOccupants(ctx, f.barber, slotAt, slotAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, occupants, 1)
	assert.Equal(t, first.ID, occupants[0].BookingID)
	assert.Equal(t, models.StatusCompleted, occupants[0].Status)
}

func TestToggleSlotBlock(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	blocked, err := db.ToggleSlotBlock(ctx, f.barber, slotAt)
	require.NoError(t, err)
	assert.True(t, blocked)

	_, err = db.CreateBookingRequest(ctx, f.request(f.haircut))
	assert.ErrorIs(t, err, domain.ErrSlotConflict)

	blocks, err := db.ListSlotBlocks(ctx, f.barber, slotAt.Add(-time.Hour), slotAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Equal(slotAt))

	blocked, err = db.ToggleSlotBlock(ctx, f.barber, slotAt)
	require.NoError(t, err)
	assert.False(t, blocked)

	_, err = db.CreateBookingRequest(ctx, f.request(f.haircut))
	require.NoError(t, err)

	_, err = db.ToggleSlotBlock(ctx, f.barber, slotAt)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTransitionBooking(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	b, err := db.CreateBookingRequest(ctx, f.request(f.haircut, f.beard))
	require.NoError(t, err)

	t.Run("DecisionErrorRollsBack", func(t *testing.T) {
		_, err := db.TransitionBooking(ctx, b.ID, func(*models.Booking) (*models.BookingUpdate, error) {
			return nil, domain.ErrNotAuthorized
		})
		assert.ErrorIs(t, err, domain.ErrNotAuthorized)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRequested, got.Status)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("Noop", func(t *testing.T) {
		got, err := db.TransitionBooking(ctx, b.ID, func(*models.Booking) (*models.BookingUpdate, error) {
			return &models.BookingUpdate{Noop: true}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("AcceptThenComplete", func(t *testing.T) {
		got, err := db.TransitionBooking(ctx, b.ID, func(cur *models.Booking) (*models.BookingUpdate, error) {
			require.Len(t, cur.Services, 2)
			return &models.BookingUpdate{Status: models.StatusAccepted}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)
		assert.Equal(t, int64(2), got.Version)

		receipt := &models.Receipt{
			Items:         []models.LineItem{{Name: "Haircut", Price: price("20")}, {Name: "Beard", Price: price("15")}},
			Subtotal:      price("35"),
			AfterDiscount: price("35"),
			Total:         price("35"),
		}
		got, err = db.TransitionBooking(ctx, b.ID, func(*models.Booking) (*models.BookingUpdate, error) {
			return &models.BookingUpdate{
				Status:     models.StatusCompleted,
				Receipt:    receipt,
				FinalPrice: decimal.NewNullDecimal(price("35")),
			}, nil
		})
		require.NoError(t, err)

		stored, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, stored.Status)
		require.True(t, stored.FinalPrice.Valid)
		assert.Equal(t, "35", stored.FinalPrice.Decimal.String())
		require.NotNil(t, stored.Receipt)
		assert.Len(t, stored.Receipt.Items, 2)
		assert.Equal(t, got.Version, stored.Version)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.TransitionBooking(ctx, 4242, func(*models.Booking) (*models.BookingUpdate, error) {
			return &models.BookingUpdate{Status: models.StatusAccepted}, nil
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	pending, err := db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, models.EventUpdate, pending[2].EventType)
}

func TestListSlotOccupants(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	kept, err := db.CreateBookingRequest(ctx, f.request(f.haircut))
	require.NoError(t, err)

	later := f.request(f.beard)
	later.SlotStart = slotAt.Add(30 * time.Minute)
	dropped, err := db.CreateBookingRequest(ctx, later)
	require.NoError(t, err)

	reason := "sick"
	barber := models.RoleBarber
	_, err = db.TransitionBooking(ctx, dropped.ID, func(*models.Booking) (*models.BookingUpdate, error) {
		return &models.BookingUpdate{Status: models.StatusRejected, Reason: &reason, CancelledBy: &barber}, nil
	})
	require.NoError(t, err)

	occ, err := db.ListSlotOccupants(ctx, f.barber, slotAt.Add(-time.Hour), slotAt.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, kept.ID, occ[0].BookingID)
	assert.Equal(t, "Ann", occ[0].CustomerName)
}

func TestListBookings(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := f.request(f.haircut)
		req.SlotStart = slotAt.Add(time.Duration(i) * time.Hour)
		_, err := db.CreateBookingRequest(ctx, req)
		require.NoError(t, err)
	}

	all, err := db.ListBookings(ctx, models.BookingFilter{CustomerID: &f.customer, Newest: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].SlotStart.After(all[1].SlotStart))
	assert.Len(t, all[0].Services, 1)

	from := slotAt.Add(30 * time.Minute)
	some, err := db.ListBookings(ctx, models.BookingFilter{
		BarberID: &f.barber,
		Statuses: []models.BookingStatus{models.StatusRequested},
		From:     &from,
		Limit:    1,
	})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.True(t, some[0].SlotStart.Equal(slotAt.Add(time.Hour)))

	none, err := db.ListBookings(ctx, models.BookingFilter{CustomerID: &f.customer2})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConcurrentRequestsForOneSlot(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(t.TempDir()+"/race.db", &logger)
	require.NoError(t, err)
	defer db.Close()
	f := seed(t, db)
	ctx := context.Background()

	const workers = 10
	customers := make([]int64, workers)
	for i := range customers {
		u := &models.User{FullName: "racer"}
		require.NoError(t, db.CreateUser(ctx, u))
		customers[i] = u.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, id := range customers {
		wg.Add(1)
		go func(customer int64) {
			defer wg.Done()
			req := f.request(f.haircut)
			req.CustomerID = customer
			_, err := db.CreateBookingRequest(ctx, req)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)

	occ, err := db.ListSlotOccupants(ctx, f.barber, slotAt, slotAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, occ, 1)
}

func TestOutboxLifecycle(t *testing.T) {
	db := setupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	_, err := db.CreateBookingRequest(ctx, f.request(f.haircut))
	require.NoError(t, err)

	pending, err := db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	ev := pending[0]
	assert.Contains(t, ev.Payload, `"status":"requested"`)

	next := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxStatus(ctx, ev.ID, models.OutboxRetry, "redis down", &next))

	pending, err = db.GetPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "retry is not due yet")

	require.NoError(t, db.UpdateOutboxStatus(ctx, ev.ID, models.OutboxFailed, "gave up", nil))
	failed, err := db.GetFailedOutbox(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].RetryCount)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "gave up", *failed[0].LastError)

	require.NoError(t, db.UpdateOutboxStatus(ctx, ev.ID, models.OutboxCompleted, "", nil))
	n, err := db.PurgeOutbox(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
