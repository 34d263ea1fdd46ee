package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"barberbook/internal/domain"
	"barberbook/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	user.CreatedAt = db.now()

	res, err := db.ExecContext(ctx,
		`INSERT INTO users (full_name, phone, role, created_at) VALUES (?, ?, ?, ?)`,
		user.FullName, user.Phone, string(user.Role), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var (
		u     models.User
		phone sql.NullString
		role  string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, full_name, phone, role, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.FullName, &phone, &role, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	u.Phone = phone.String
	u.Role = models.Role(role)
	return &u, nil
}

// FindUserByName returns the oldest user with exactly this name.
func (db *DB) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE full_name = ? ORDER BY id LIMIT 1`, name).Scan(&id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %q", name))
	}
	return db.GetUser(ctx, id)
}

// CompleteOnboarding turns a user into a barber with a shop and services.
func (db *DB) CompleteOnboarding(ctx context.Context, ob *models.Onboarding) (*models.Shop, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, ob.BarberID).Scan(&exists); err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", ob.BarberID))
	}

	now := db.now()
	shop := ob.Shop
	shop.OwnerID = ob.BarberID
	shop.IsOpen = true
	shop.CreatedAt = now

	res, err := tx.ExecContext(ctx,
		`INSERT INTO shops (owner_id, name, address, latitude, longitude, is_open, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shop.OwnerID, shop.Name, shop.Address, shop.Latitude, shop.Longitude, shop.IsOpen, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: barber %d already has a shop", domain.ErrInvalidInput, ob.BarberID)
		}
		return nil, fmt.Errorf("failed to create shop: %w", err)
	}
	if shop.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO barbers (user_id, shop_id, work_start, work_end, slot_minutes, timezone, is_active)
         VALUES (?, ?, ?, ?, ?, ?, 1)`,
		ob.BarberID, shop.ID, ob.WorkStart, ob.WorkEnd, ob.SlotMinutes, ob.Timezone,
	); err != nil {
		return nil, fmt.Errorf("failed to create barber profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(models.RoleBarber), ob.BarberID); err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}

	for i := range ob.Services {
		svc := &ob.Services[i]
		svc.ShopID = shop.ID
		svc.IsActive = true
		if err := insertService(ctx, tx, svc, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &shop, nil
}

func (db *DB) GetBarber(ctx context.Context, userID int64) (*models.Barber, error) {
	var b models.Barber
	err := db.QueryRowContext(ctx,
		`SELECT b.user_id, b.shop_id, u.full_name, b.work_start, b.work_end, b.slot_minutes, b.timezone, b.is_active
         FROM barbers b JOIN users u ON u.id = b.user_id
         WHERE b.user_id = ?`, userID,
	).Scan(&b.UserID, &b.ShopID, &b.FullName, &b.WorkStart, &b.WorkEnd, &b.SlotMinutes, &b.Timezone, &b.IsActive)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("barber %d", userID))
	}
	return &b, nil
}

const shopColumns = `id, owner_id, name, address, latitude, longitude, is_open, created_at`

func scanShop(row interface{ Scan(...any) error }) (*models.Shop, error) {
	var (
		s       models.Shop
		address sql.NullString
	)
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &address, &s.Latitude, &s.Longitude, &s.IsOpen, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Address = address.String
	return &s, nil
}

func (db *DB) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	s, err := scanShop(db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("shop %d", id))
	}
	return s, nil
}

func (db *DB) ListShops(ctx context.Context) ([]models.Shop, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	defer rows.Close()

	var shops []models.Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, *s)
	}
	return shops, rows.Err()
}

func (db *DB) SetShopOpen(ctx context.Context, id int64, open bool) error {
	res, err := db.ExecContext(ctx, `UPDATE shops SET is_open = ? WHERE id = ?`, open, id)
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("shop %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func insertService(ctx context.Context, q querier, svc *models.Service, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO services (shop_id, name, price, duration_minutes, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.ShopID, strings.TrimSpace(svc.Name), svc.Price, svc.DurationMinutes, svc.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if svc.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	svc.IsActive = true
	return insertService(ctx, db, svc, db.now())
}

const serviceColumns = "id, shop_id, name, price, duration_minutes, is_active"

func scanService(row interface{ Scan(...any) error }) (*models.Service, error) {
	var s models.Service
	if err := row.Scan(&s.ID, &s.ShopID, &s.Name, &s.Price, &s.DurationMinutes, &s.IsActive); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	s, err := scanService(db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("service %d", id))
	}
	return s, nil
}

// UpdateService edits the catalog entry only; booked snapshots keep their price.
func (db *DB) UpdateService(ctx context.Context, id int64, patch models.ServicePatch) (*models.Service, error) {
	update := psql.Update("services").Set("updated_at", db.now()).Where("id = ?", id)
	if patch.Name != nil {
		update = update.Set("name", strings.TrimSpace(*patch.Name))
	}
	if patch.Price != nil {
		update = update.Set("price", *patch.Price)
	}
	if patch.DurationMinutes != nil {
		update = update.Set("duration_minutes", *patch.DurationMinutes)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}
	return db.GetService(ctx, id)
}

// DeactivateService soft-deletes a service so historical bookings keep their reference.
func (db *DB) DeactivateService(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ? WHERE id = ?`, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) ListServices(ctx context.Context, shopID int64, activeOnly bool) ([]models.Service, error) {
	sel := psql.Select(serviceColumns).From("services").Where("shop_id = ?", shopID).OrderBy("id")
	if activeOnly {
		sel = sel.Where("is_active = 1")
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
