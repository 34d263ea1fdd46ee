package service

import (
	"testing"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	barberID   = int64(10)
	customerID = int64(20)
	outsiderID = int64(30)
)

func booking(status models.BookingStatus) *models.Booking {
	return &models.Booking{
		ID:         1,
		BarberID:   barberID,
		CustomerID: customerID,
		Status:     status,
		Price:      decimal.RequireFromString("99"),
		Services: []models.BookingService{
			{ServiceName: "Haircut", PriceAtBooking: decimal.RequireFromString("60")},
			{ServiceName: "Beard", PriceAtBooking: decimal.RequireFromString("39")},
		},
	}
}

func TestDecideTransitions(t *testing.T) {
	receipt := &models.ReceiptInput{}

	tests := []struct {
		name    string
		status  models.BookingStatus
		actor   int64
		action  models.Action
		want    models.BookingStatus
		wantErr error
	}{
		{"barber accepts request", models.StatusRequested, barberID, models.ActionAccept, models.StatusAccepted, nil},
		{"barber rejects request", models.StatusRequested, barberID, models.ActionReject, models.StatusRejected, nil},
		{"customer cancels request", models.StatusRequested, customerID, models.ActionCancel, models.StatusCancelled, nil},
		{"barber cancels accepted", models.StatusAccepted, barberID, models.ActionCancel, models.StatusCancelled, nil},
		{"customer cancels accepted", models.StatusAccepted, customerID, models.ActionCancel, models.StatusCancelled, nil},
		{"barber completes accepted", models.StatusAccepted, barberID, models.ActionComplete, models.StatusCompleted, nil},

		{"customer cannot accept", models.StatusRequested, customerID, models.ActionAccept, "", domain.ErrNotAuthorized},
		{"customer cannot reject", models.StatusRequested, customerID, models.ActionReject, "", domain.ErrNotAuthorized},
		{"customer cannot complete", models.StatusAccepted, customerID, models.ActionComplete, "", domain.ErrNotAuthorized},
		{"outsider cannot cancel", models.StatusRequested, outsiderID, models.ActionCancel, "", domain.ErrNotAuthorized},

		{"complete needs acceptance", models.StatusRequested, barberID, models.ActionComplete, "", domain.ErrInvalidTransition},
		{"reject after accept", models.StatusAccepted, barberID, models.ActionReject, "", domain.ErrInvalidTransition},
		{"cancel twice", models.StatusCancelled, customerID, models.ActionCancel, "", domain.ErrInvalidTransition},
		{"reject twice", models.StatusRejected, barberID, models.ActionReject, "", domain.ErrInvalidTransition},
		{"cancel completed", models.StatusCompleted, barberID, models.ActionCancel, "", domain.ErrInvalidTransition},
		{"accept rejected", models.StatusRejected, barberID, models.ActionAccept, "", domain.ErrInvalidTransition},
		{"complete twice", models.StatusCompleted, barberID, models.ActionComplete, "", domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ManageCommand{ActorID: tt.actor, BookingID: 1, Action: tt.action, Reason: "busy day", Receipt: receipt}
			require.NoError(t, cmd.validate())

			upd, err := decide(booking(tt.status), cmd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, upd)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, upd.Status)
			assert.False(t, upd.Noop)
		})
	}
}

func TestDecideRecordsCancellation(t *testing.T) {
	cmd := ManageCommand{ActorID: customerID, Action: models.ActionCancel, Reason: "  sick  "}
	require.NoError(t, cmd.validate())

	upd, err := decide(booking(models.StatusAccepted), cmd)
	require.NoError(t, err)
	require.NotNil(t, upd.Reason)
	assert.Equal(t, "sick", *upd.Reason)
	require.NotNil(t, upd.CancelledBy)
	assert.Equal(t, models.RoleCustomer, *upd.CancelledBy)
	assert.False(t, upd.FinalPrice.Valid, "cancellation has no monetary effect")
}

func TestDecideAcceptIsIdempotent(t *testing.T) {
	upd, err := decide(booking(models.StatusAccepted), ManageCommand{ActorID: barberID, Action: models.ActionAccept})
	require.NoError(t, err)
	assert.True(t, upd.Noop)
}

func TestDecideComplete(t *testing.T) {
	t.Run("DefaultItemsInclusiveTax", func(t *testing.T) {
		cmd := ManageCommand{
			ActorID: barberID,
			Action:  models.ActionComplete,
			Receipt: &models.ReceiptInput{TaxRate: decimal.NewFromInt(10), IsTaxInclusive: true},
		}
		upd, err := decide(booking(models.StatusAccepted), cmd)
		require.NoError(t, err)
		require.NotNil(t, upd.Receipt)
		assert.Len(t, upd.Receipt.Items, 2)
		assert.Equal(t, "99.00", upd.Receipt.Total.StringFixed(2))
		assert.Equal(t, "9.00", upd.Receipt.TaxAmount.StringFixed(2))
		require.True(t, upd.FinalPrice.Valid)
		assert.Equal(t, "99", upd.FinalPrice.Decimal.String())
	})

	t.Run("OverriddenItemsExclusiveTax", func(t *testing.T) {
		cmd := ManageCommand{
			ActorID: barberID,
			Action:  models.ActionComplete,
			Receipt: &models.ReceiptInput{
				Items:    []models.LineItem{{Name: "Haircut", Price: decimal.RequireFromString("60")}, {Name: "Wax", Price: decimal.RequireFromString("5.555")}},
				Discount: decimal.RequireFromString("5"),
				TaxRate:  decimal.RequireFromString("20"),
			},
		}
		upd, err := decide(booking(models.StatusAccepted), cmd)
		require.NoError(t, err)
		// (65.555 - 5) * 1.2 = 72.666
		assert.Equal(t, "72.67", upd.Receipt.Total.String())
		assert.Equal(t, "12.11", upd.Receipt.TaxAmount.String())
		assert.Equal(t, "72.67", upd.FinalPrice.Decimal.String())
	})

	t.Run("NegativeDiscount", func(t *testing.T) {
		cmd := ManageCommand{
			ActorID: barberID,
			Action:  models.ActionComplete,
			Receipt: &models.ReceiptInput{Discount: decimal.NewFromInt(-1)},
		}
		_, err := decide(booking(models.StatusAccepted), cmd)
		assert.ErrorIs(t, err, domain.ErrInvalidReceipt)
	})
}

func TestManageCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     ManageCommand
		wantErr error
	}{
		{"unknown action", ManageCommand{Action: "archive"}, domain.ErrInvalidInput},
		{"reject without reason", ManageCommand{Action: models.ActionReject}, domain.ErrReasonRequired},
		{"cancel with blank reason", ManageCommand{Action: models.ActionCancel, Reason: "   "}, domain.ErrReasonRequired},
		{"complete without receipt", ManageCommand{Action: models.ActionComplete}, domain.ErrInvalidReceipt},
		{"accept needs nothing", ManageCommand{Action: models.ActionAccept}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
