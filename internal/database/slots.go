package database

import (
	"context"
	"fmt"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
)

// ListSlotOccupants returns bookings that occupy a slot in [from, to):
// requested, accepted and completed ones.
func (db *DB) ListSlotOccupants(ctx context.Context, barberID int64, from, to time.Time) ([]models.SlotOccupant, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT b.slot_start, b.id, b.status, COALESCE(u.full_name, '')
         FROM bookings b LEFT JOIN users u ON u.id = b.customer_id
         WHERE b.barber_id = ? AND b.slot_start >= ? AND b.slot_start < ?
           AND b.status IN ('requested', 'accepted', 'completed')
         ORDER BY b.slot_start`,
		barberID, slotKey(from), slotKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slot occupants: %w", err)
	}
	defer rows.Close()

	var out []models.SlotOccupant
	for rows.Next() {
		var (
			o      models.SlotOccupant
			raw    string
			status string
		)
		if err := rows.Scan(&raw, &o.BookingID, &status, &o.CustomerName); err != nil {
			return nil, fmt.Errorf("failed to scan slot occupant: %w", err)
		}
		if o.SlotStart, err = parseSlotKey(raw); err != nil {
			return nil, err
		}
		o.Status = models.BookingStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (db *DB) ListSlotBlocks(ctx context.Context, barberID int64, from, to time.Time) ([]time.Time, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT slot_start FROM slot_blocks
         WHERE barber_id = ? AND slot_start >= ? AND slot_start < ?
         ORDER BY slot_start`,
		barberID, slotKey(from), slotKey(to),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slot blocks: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan slot block: %w", err)
		}
		t, err := parseSlotKey(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ToggleSlotBlock flips a slot between free and unavailable and reports
// whether it is now blocked. A slot held by any booking cannot be toggled.
func (db *DB) ToggleSlotBlock(ctx context.Context, barberID int64, slotStart time.Time) (bool, error) {
	key := slotKey(slotStart)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var occupied int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
         WHERE barber_id = ? AND slot_start = ? AND status IN ('requested', 'accepted', 'completed')`,
		barberID, key,
	).Scan(&occupied)
	if err != nil {
		return false, fmt.Errorf("failed to check slot occupancy: %w", err)
	}
	if occupied > 0 {
		return false, fmt.Errorf("slot %s: %w", key, domain.ErrInvalidState)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM slot_blocks WHERE barber_id = ? AND slot_start = ?`, barberID, key)
	if err != nil {
		return false, fmt.Errorf("failed to unblock slot: %w", err)
	}
	removed, _ := res.RowsAffected()

	blocked := removed == 0
	if blocked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO slot_blocks (barber_id, slot_start, created_at) VALUES (?, ?, ?)`,
			barberID, key, db.now(),
		); err != nil {
			return false, fmt.Errorf("failed to block slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return blocked, nil
}
