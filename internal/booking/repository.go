package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrBookingNotFound = errors.New("booking not found")

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Insert(ctx context.Context, b Booking) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, package_id, booking_date, number_of_people, total_amount, status,
		                      special_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, b.ID, b.UserID, b.PackageID, b.BookingDate.Time, b.NumberOfPeople, b.TotalAmount, b.Status,
		b.SpecialRequests, b.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return nil
}

const viewSelect = `
	SELECT b.id, p.title, b.booking_date, b.number_of_people, b.total_amount, b.status,
	       b.special_requests, b.created_at`

func scanView(row interface{ Scan(dest ...any) error }, extra ...any) (View, error) {
	var v View
	var bookingDate time.Time
	var requests sql.NullString
	dest := append([]any{&v.ID, &v.PackageTitle, &bookingDate, &v.NumberOfPeople, &v.TotalAmount, &v.Status,
		&requests, &v.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return View{}, err
	}
	v.BookingDate = Date{Time: bookingDate}
	if requests.Valid {
		v.SpecialRequests = &requests.String
	}
	return v, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, viewSelect+`
		FROM bookings b
		JOIN packages p ON b.package_id = p.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	views := make([]View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return views, nil
}

// GetForUser only finds bookings owned by userID.
func (r *Repository) GetForUser(ctx context.Context, id, userID uuid.UUID) (View, error) {
	v, err := scanView(r.db.QueryRowContext(ctx, viewSelect+`
		FROM bookings b
		JOIN packages p ON b.package_id = p.id
		WHERE b.id = $1 AND b.user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return View{}, ErrBookingNotFound
		}
		return View{}, fmt.Errorf("query booking: %w", err)
	}

	return v, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]AdminView, error) {
	rows, err := r.db.QueryContext(ctx, viewSelect+`, u.first_name, u.last_name, u.email
		FROM bookings b
		JOIN packages p ON b.package_id = p.id
		JOIN users u ON b.user_id = u.id
		ORDER BY b.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all bookings: %w", err)
	}
	defer rows.Close()

	views := make([]AdminView, 0)
	for rows.Next() {
		var firstName, lastName, email string
		v, err := scanView(rows, &firstName, &lastName, &email)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		views = append(views, AdminView{View: v, UserName: firstName + " " + lastName, UserEmail: email})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return views, nil
}

// CancelPending moves a pending booking of userID to cancelled. Bookings in
// any other state, or owned by someone else, are reported as not found.
func (r *Repository) CancelPending(ctx context.Context, id, userID uuid.UUID) (Booking, error) {
	return r.updateStatus(ctx, `
		UPDATE bookings
		SET status = 'cancelled', updated_at = $3
		WHERE id = $1 AND user_id = $2 AND status = 'pending'
		RETURNING id, user_id, package_id, total_amount, status
	`, id, userID, r.now().UTC())
}

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) (Booking, error) {
	return r.updateStatus(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, user_id, package_id, total_amount, status
	`, id, status, r.now().UTC())
}

func (r *Repository) updateStatus(ctx context.Context, query string, args ...any) (Booking, error) {
	var b Booking
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.UserID, &b.PackageID, &b.TotalAmount, &b.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrBookingNotFound
		}
		return Booking{}, fmt.Errorf("update booking status: %w", err)
	}

	return b, nil
}
