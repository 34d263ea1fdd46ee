package domain

import (
	"context"
	"time"

	"barberbook/internal/models"
)

// TransitionFunc decides how a booking changes. It runs inside the write
// transaction against the freshly loaded row.
type TransitionFunc func(b *models.Booking) (*models.BookingUpdate, error)

type BookingRepository interface {
	CreateBookingRequest(ctx context.Context, req *models.BookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	TransitionBooking(ctx context.Context, id int64, fn TransitionFunc) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type ScheduleRepository interface {
	GetBarber(ctx context.Context, userID int64) (*models.Barber, error)
	ListSlotOccupants(ctx context.Context, barberID int64, from, to time.Time) ([]models.SlotOccupant, error)
	ListSlotBlocks(ctx context.Context, barberID int64, from, to time.Time) ([]time.Time, error)
	ToggleSlotBlock(ctx context.Context, barberID int64, slotStart time.Time) (bool, error)
}

type CatalogRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CompleteOnboarding(ctx context.Context, ob *models.Onboarding) (*models.Shop, error)
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	ListShops(ctx context.Context) ([]models.Shop, error)
	SetShopOpen(ctx context.Context, id int64, open bool) error
	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, id int64, patch models.ServicePatch) (*models.Service, error)
	DeactivateService(ctx context.Context, id int64) error
	ListServices(ctx context.Context, shopID int64, activeOnly bool) ([]models.Service, error)
}

type Repository interface {
	BookingRepository
	ScheduleRepository
	CatalogRepository
}

// ScheduleCache is the relaxed-consistency read path for day schedules.
type ScheduleCache interface {
	Get(ctx context.Context, barberID int64, date string) ([]models.Slot, bool, error)
	Set(ctx context.Context, barberID int64, date string, slots []models.Slot) error
	Invalidate(ctx context.Context, barberID int64, date string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ChangeSubscriber streams booking change hints for one barber until ctx ends.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, barberID int64) (<-chan models.BookingChange, error)
}
