package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BarberStats struct {
	BarberID  int64           `json:"barber_id"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Revenue   decimal.Decimal `json:"revenue"`
	Completed int             `json:"completed"`
}

type EarningsPeriod string

const (
	PeriodToday EarningsPeriod = "today"
	PeriodWeek  EarningsPeriod = "week"
	PeriodMonth EarningsPeriod = "month"
	PeriodAll   EarningsPeriod = "all"
)

func ParseEarningsPeriod(raw string) (EarningsPeriod, bool) {
	p := EarningsPeriod(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case "":
		return PeriodAll, true
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, true
	default:
		return "", false
	}
}

// Since returns the lower bound of the period in loc, or nil for PeriodAll.
func (p EarningsPeriod) Since(now time.Time, loc *time.Location) *time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	var since time.Time
	switch p {
	case PeriodToday:
		since = midnight
	case PeriodWeek:
		since = midnight.AddDate(0, 0, -6)
	case PeriodMonth:
		since = midnight.AddDate(0, -1, 0)
	default:
		return nil
	}
	return &since
}

type Earnings struct {
	BarberID int64           `json:"barber_id"`
	Period   EarningsPeriod  `json:"period"`
	Total    decimal.Decimal `json:"total"`
	Bookings []Booking       `json:"bookings"`
}
