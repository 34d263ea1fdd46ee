package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Shop is owned by a single barber. IsOpen gates new booking requests only.
type Shop struct {
	ID             int64     `json:"id"`
	OwnerID        int64     `json:"owner_id"`
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	IsOpen         bool      `json:"is_open"`
	CreatedAt      time.Time `json:"created_at"`
	DistanceMeters float64   `json:"distance_meters,omitempty"`
}

// Barber carries the working-hours configuration the calendar is derived from.
type Barber struct {
	UserID      int64  `json:"user_id"`
	ShopID      int64  `json:"shop_id"`
	FullName    string `json:"full_name,omitempty"`
	WorkStart   string `json:"work_start"`
	WorkEnd     string `json:"work_end"`
	SlotMinutes int    `json:"slot_minutes"`
	Timezone    string `json:"timezone"`
	IsActive    bool   `json:"is_active"`
}

func (b *Barber) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("barber %d timezone %q: %w", b.UserID, b.Timezone, err)
	}
	return loc, nil
}

type Service struct {
	ID              int64           `json:"id"`
	ShopID          int64           `json:"shop_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
	IsActive        bool            `json:"is_active"`
}

// ServicePatch lists the editable fields of a service; nil means unchanged.
type ServicePatch struct {
	Name            *string          `json:"name,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
}

// Onboarding creates a barber's shop, profile and first services in one go.
type Onboarding struct {
	BarberID    int64     `json:"barber_id"`
	Shop        Shop      `json:"shop"`
	WorkStart   string    `json:"work_start,omitempty"`
	WorkEnd     string    `json:"work_end,omitempty"`
	SlotMinutes int       `json:"slot_minutes,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	Services    []Service `json:"services"`
}
