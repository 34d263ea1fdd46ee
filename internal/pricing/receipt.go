// Package pricing turns line items, a discount and a tax rate into a Receipt.
package pricing

import (
	"fmt"
	"strings"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute builds a receipt without intermediate rounding. The discount is
// clamped so the post-discount amount never drops below zero.
func Compute(items []models.LineItem, discount, taxRate decimal.Decimal, inclusive bool) (*models.Receipt, error) {
	if discount.IsNegative() {
		return nil, fmt.Errorf("%w: negative discount", domain.ErrInvalidReceipt)
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("%w: negative tax rate", domain.ErrInvalidReceipt)
	}

	subtotal := decimal.Zero
	lines := make([]models.LineItem, 0, len(items))
	for i, it := range items {
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: item %d has a negative price", domain.ErrInvalidReceipt, i)
		}
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", domain.ErrInvalidReceipt, i)
		}
		subtotal = subtotal.Add(it.Price)
		lines = append(lines, models.LineItem{Name: name, Price: it.Price})
	}

	afterDiscount := decimal.Max(decimal.Zero, subtotal.Sub(discount))

	tax := decimal.Zero
	total := afterDiscount
	if taxRate.IsPositive() {
		if inclusive {
			net := afterDiscount.DivRound(decimal.NewFromInt(1).Add(taxRate.Div(hundred)), 16)
			tax = afterDiscount.Sub(net)
		} else {
			tax = afterDiscount.Mul(taxRate).Div(hundred)
			total = afterDiscount.Add(tax)
		}
	}

	return &models.Receipt{
		Items:          lines,
		Subtotal:       subtotal,
		Discount:       discount,
		AfterDiscount:  afterDiscount,
		TaxRate:        taxRate,
		IsTaxInclusive: inclusive,
		TaxAmount:      tax,
		Total:          total,
	}, nil
}

// FromInput computes a receipt for a booking. Booked services are the default
// line items; a legacy booking without snapshots falls back to a single line
// at the booking price.
func FromInput(b *models.Booking, in models.ReceiptInput) (*models.Receipt, error) {
	items := in.Items
	if items == nil {
		items = DefaultItems(b)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no line items", domain.ErrInvalidReceipt)
	}
	return Compute(items, in.Discount, in.TaxRate, in.IsTaxInclusive)
}

func DefaultItems(b *models.Booking) []models.LineItem {
	if len(b.Services) == 0 {
		return []models.LineItem{{Name: "Service", Price: b.Price}}
	}
	items := make([]models.LineItem, 0, len(b.Services))
	for _, s := range b.Services {
		items = append(items, models.LineItem{Name: s.ServiceName, Price: s.PriceAtBooking})
	}
	return items
}

// Charged is the amount actually taken, rounded to cents.
func Charged(r *models.Receipt) decimal.Decimal {
	return r.Total.Round(2)
}

// Settle returns a copy of a computed receipt with the derived amounts
// rounded to cents. Line items, the discount and the tax rate stay as entered.
func Settle(r *models.Receipt) *models.Receipt {
	out := *r
	out.Items = append([]models.LineItem(nil), r.Items...)
	out.Subtotal = r.Subtotal.Round(2)
	out.AfterDiscount = r.AfterDiscount.Round(2)
	out.TaxAmount = r.TaxAmount.Round(2)
	out.Total = Charged(r)
	return &out
}
