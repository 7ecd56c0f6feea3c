package legacysync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// BookingSource yields legacy bookings changed since a point in time.
type BookingSource interface {
	Bookings(ctx context.Context, since time.Time) ([]Booking, error)
}

// Reader reads the legacy MySQL bookings table.
type Reader struct {
	db       *sql.DB
	statuses []string
}

// NewReader returns a Reader limited to the given legacy statuses. An
// empty list means confirmed bookings only.
func NewReader(conn *sql.DB, statuses []string) *Reader {
	var cleaned []string
	for _, s := range statuses {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"confirmed"}
	}
	return &Reader{db: conn, statuses: cleaned}
}

func (r *Reader) Bookings(ctx context.Context, since time.Time) ([]Booking, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(r.statuses)), ", ")
	query := `SELECT id, first_name, last_name, email, phone, service, booking_date,
		CAST(booking_time AS CHAR), duration_minutes, status, notes, updated_at
		FROM bookings
		WHERE LOWER(status) IN (` + placeholders + `) AND updated_at >= ?
		ORDER BY updated_at, id`

	args := make([]interface{}, 0, len(r.statuses)+1)
	for _, s := range r.statuses {
		args = append(args, s)
	}
	args = append(args, since)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.FirstName, &b.LastName, &b.Email, &b.Phone, &b.Service,
			&b.BookingDate, &b.BookingTime, &b.DurationMinutes, &b.Status, &b.Notes, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan legacy booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
