package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

const bookingColumns = `b.id, b.customer_id, COALESCE(u.full_name, ''), b.barber_id, b.shop_id, b.slot_start,
    b.status, b.price, b.final_price, b.payment_method, b.cancellation_reason, b.cancelled_by,
    b.receipt_data, b.version, b.created_at, b.updated_at`

const bookingFrom = `bookings b LEFT JOIN users u ON u.id = b.customer_id`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var (
		b           models.Booking
		slot        string
		status      string
		reason      sql.NullString
		cancelledBy sql.NullString
		receipt     sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CustomerName, &b.BarberID, &b.ShopID, &slot,
		&status, &b.Price, &b.FinalPrice, &b.PaymentMethod, &reason, &cancelledBy,
		&receipt, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.SlotStart, err = parseSlotKey(slot); err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	if reason.Valid {
		b.CancellationReason = &reason.String
	}
	if cancelledBy.Valid {
		role := models.Role(cancelledBy.String)
		b.CancelledBy = &role
	}
	if receipt.Valid && receipt.String != "" {
		var r models.Receipt
		if err := json.Unmarshal([]byte(receipt.String), &r); err != nil {
			return nil, fmt.Errorf("failed to decode receipt of booking %d: %w", b.ID, err)
		}
		b.Receipt = &r
	}
	return &b, nil
}

// CreateBookingRequest validates and inserts a requested booking in one
// immediate transaction. The partial unique index on live slots is the last
// line against double booking.
func (db *DB) CreateBookingRequest(ctx context.Context, req *models.BookingRequest) (*models.Booking, error) {
	if len(req.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", domain.ErrInvalidServices)
	}
	seen := make(map[int64]struct{}, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: service %d listed twice", domain.ErrInvalidServices, id)
		}
		seen[id] = struct{}{}
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentCash
	}
	key := slotKey(req.SlotStart)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var customerName string
	if err := tx.QueryRowContext(ctx, `SELECT full_name FROM users WHERE id = ?`, req.CustomerID).Scan(&customerName); err != nil {
		return nil, notFound(err, fmt.Sprintf("customer %d", req.CustomerID))
	}

	var isOpen bool
	if err := tx.QueryRowContext(ctx, `SELECT is_open FROM shops WHERE id = ?`, req.ShopID).Scan(&isOpen); err != nil {
		return nil, notFound(err, fmt.Sprintf("shop %d", req.ShopID))
	}

	var (
		barberShop int64
		active     bool
	)
	err = tx.QueryRowContext(ctx, `SELECT shop_id, is_active FROM barbers WHERE user_id = ?`, req.BarberID).Scan(&barberShop, &active)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("barber %d", req.BarberID))
	}
	if !active || barberShop != req.ShopID {
		return nil, fmt.Errorf("barber %d in shop %d: %w", req.BarberID, req.ShopID, domain.ErrNotFound)
	}

	if !isOpen {
		return nil, fmt.Errorf("shop %d: %w", req.ShopID, domain.ErrShopClosed)
	}

	snapshots, total, err := snapshotServices(ctx, tx, req.ShopID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	var blocked int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM slot_blocks WHERE barber_id = ? AND slot_start = ?`, req.BarberID, key).Scan(&blocked)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot block: %w", err)
	}
	if blocked > 0 {
		return nil, fmt.Errorf("slot %s is blocked: %w", key, domain.ErrSlotConflict)
	}

	now := db.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (customer_id, barber_id, shop_id, slot_start, status, price, payment_method, version, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		req.CustomerID, req.BarberID, req.ShopID, key, string(models.StatusRequested), total, paymentMethod, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slot %s is taken: %w", key, domain.ErrSlotConflict)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := range snapshots {
		snapshots[i].BookingID = id
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, service_id, service_name, price_at_booking) VALUES (?, ?, ?, ?)`,
			id, snapshots[i].ServiceID, snapshots[i].ServiceName, snapshots[i].PriceAtBooking,
		); err != nil {
			return nil, fmt.Errorf("failed to snapshot service %d: %w", snapshots[i].ServiceID, err)
		}
	}

	booking := &models.Booking{
		ID:            id,
		CustomerID:    req.CustomerID,
		CustomerName:  customerName,
		BarberID:      req.BarberID,
		ShopID:        req.ShopID,
		SlotStart:     req.SlotStart.UTC(),
		Status:        models.StatusRequested,
		Price:         total,
		PaymentMethod: paymentMethod,
		Services:      snapshots,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := insertOutbox(ctx, tx, models.EventInsert, booking, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return booking, nil
}

// snapshotServices checks every id is an active service of shopID and
// captures its current name and price.
func snapshotServices(ctx context.Context, q querier, shopID int64, ids []int64) ([]models.BookingService, decimal.Decimal, error) {
	query, args, err := psql.Select(serviceColumns).From("services").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to build select: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to load services: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]*models.Service, len(ids))
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to scan service: %w", err)
		}
		found[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	out := make([]models.BookingService, 0, len(ids))
	for _, id := range ids {
		s, ok := found[id]
		switch {
		case !ok:
			return nil, decimal.Zero, fmt.Errorf("%w: service %d does not exist", domain.ErrInvalidServices, id)
		case !s.IsActive:
			return nil, decimal.Zero, fmt.Errorf("%w: service %d is inactive", domain.ErrInvalidServices, id)
		case s.ShopID != shopID:
			return nil, decimal.Zero, fmt.Errorf("%w: service %d belongs to another shop", domain.ErrInvalidServices, id)
		}
		total = total.Add(s.Price)
		out = append(out, models.BookingService{ServiceID: s.ID, ServiceName: s.Name, PriceAtBooking: s.Price})
	}
	return out, total, nil
}

func getBooking(ctx context.Context, q querier, id int64) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM `+bookingFrom+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("booking %d", id))
	}
	services, err := loadBookingServices(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	b.Services = services[id]
	return b, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db, id)
}

func loadBookingServices(ctx context.Context, q querier, ids []int64) (map[int64][]models.BookingService, error) {
	out := make(map[int64][]models.BookingService, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := psql.Select("booking_id", "service_id", "service_name", "price_at_booking").
		From("booking_services").
		Where(sq.Eq{"booking_id": ids}).
		OrderBy("booking_id", "rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.BookingService
		if err := rows.Scan(&s.BookingID, &s.ServiceID, &s.ServiceName, &s.PriceAtBooking); err != nil {
			return nil, fmt.Errorf("failed to scan booking service: %w", err)
		}
		out[s.BookingID] = append(out[s.BookingID], s)
	}
	return out, rows.Err()
}

// TransitionBooking loads the booking inside a write transaction, lets fn
// decide the change and applies it with a conditional update. The change and
// its outbox row commit together or not at all.
func (db *DB) TransitionBooking(ctx context.Context, id int64, fn domain.TransitionFunc) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := getBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	upd, err := fn(b)
	if err != nil {
		return nil, err
	}
	if upd == nil || upd.Noop {
		return b, nil
	}

	if upd.Status == models.StatusAccepted {
		var taken int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE barber_id = ? AND slot_start = ? AND status IN ('accepted', 'completed') AND id <> ?`,
			b.BarberID, slotKey(b.SlotStart), b.ID,
		).Scan(&taken)
		if err != nil {
			return nil, fmt.Errorf("failed to re-check slot: %w", err)
		}
		if taken > 0 {
			return nil, fmt.Errorf("booking %d: %w", b.ID, domain.ErrSlotConflict)
		}
	}

	var receipt, cancelledBy sql.NullString
	if upd.Receipt != nil {
		raw, err := json.Marshal(upd.Receipt)
		if err != nil {
			return nil, fmt.Errorf("failed to encode receipt: %w", err)
		}
		receipt = sql.NullString{String: string(raw), Valid: true}
	}
	if upd.CancelledBy != nil {
		cancelledBy = sql.NullString{String: string(*upd.CancelledBy), Valid: true}
	}
	var reason sql.NullString
	if upd.Reason != nil {
		reason = sql.NullString{String: *upd.Reason, Valid: true}
	}

	now := db.now()
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET
            status = ?,
            cancellation_reason = COALESCE(?, cancellation_reason),
            cancelled_by = COALESCE(?, cancelled_by),
            final_price = COALESCE(?, final_price),
            receipt_data = COALESCE(?, receipt_data),
            version = version + 1,
            updated_at = ?
         WHERE id = ? AND status = ? AND version = ?`,
		string(upd.Status), reason, cancelledBy, upd.FinalPrice, receipt, now,
		b.ID, string(b.Status), b.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, fmt.Errorf("booking %d changed concurrently: %w", b.ID, domain.ErrInvalidTransition)
	}

	b.Status = upd.Status
	if upd.Reason != nil {
		b.CancellationReason = upd.Reason
	}
	if upd.CancelledBy != nil {
		b.CancelledBy = upd.CancelledBy
	}
	if upd.FinalPrice.Valid {
		b.FinalPrice = upd.FinalPrice
	}
	if upd.Receipt != nil {
		b.Receipt = upd.Receipt
	}
	b.Version++
	b.UpdatedAt = now

	if err := insertOutbox(ctx, tx, models.EventUpdate, b, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return b, nil
}

// ListBookings applies the optional filters and attaches service snapshots.
func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	sel := psql.Select(bookingColumns).From(bookingFrom)
	if f.CustomerID != nil {
		sel = sel.Where(sq.Eq{"b.customer_id": *f.CustomerID})
	}
	if f.BarberID != nil {
		sel = sel.Where(sq.Eq{"b.barber_id": *f.BarberID})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		sel = sel.Where(sq.Eq{"b.status": statuses})
	}
	if f.From != nil {
		sel = sel.Where(sq.GtOrEq{"b.slot_start": slotKey(*f.From)})
	}
	if f.To != nil {
		sel = sel.Where(sq.Lt{"b.slot_start": slotKey(*f.To)})
	}
	if f.Newest {
		sel = sel.OrderBy("b.slot_start DESC", "b.id DESC")
	} else {
		sel = sel.OrderBy("b.slot_start ASC", "b.id ASC")
	}
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	bookings, err := db.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
	}
	services, err := loadBookingServices(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Services = services[bookings[i].ID]
	}
	return bookings, nil
}

// queryBookings drains rows before returning so the connection is free for
// follow-up queries.
func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func insertOutbox(ctx context.Context, q querier, eventType string, b *models.Booking, now time.Time) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO outbox (event_type, barber_id, booking_id, payload, status, retry_count, created_at)
         VALUES (?, ?, ?, ?, ?, 0, ?)`,
		eventType, b.BarberID, b.ID, string(payload), models.OutboxPending, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
