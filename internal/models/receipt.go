package models

import "github.com/shopspring/decimal"

type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Receipt is the audit record of what was charged at completion.
// Values are kept unrounded; callers round for display.
type Receipt struct {
	Items          []LineItem      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	AfterDiscount  decimal.Decimal `json:"after_discount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	IsTaxInclusive bool            `json:"is_tax_inclusive"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// ReceiptInput is what the barber submits when completing a booking.
// A nil Items slice means "use the booked services".
type ReceiptInput struct {
	Items          []LineItem      `json:"items,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	IsTaxInclusive bool            `json:"is_tax_inclusive"`
}
