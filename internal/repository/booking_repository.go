package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/practice-booking/internal/model"
)

// BookingRepo provides persistence for the `bookings` table.  Rows are
// never deleted: cancellations and outcomes are status transitions.
//
// Two nullable unique keys back the engine's invariants:
//   - slot_key holds "resource|date|start" while the booking occupies the
//     slot and is cleared on cancellation, so at most one active booking
//     can hold a slot and a cancelled slot can be booked again;
//   - free_claim_key holds "client|session_type" for free session types
//     and is never cleared, so each client gets each free type once.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// BookingRecord is the insert shape of a new booking.  SlotKey and
// FreeClaimKey are storage keys computed by the caller.
type BookingRecord struct {
	Booking      model.Booking
	SlotKey      string
	FreeClaimKey *string
}

const bookingColumns = `id, session_type, booking_date, start_time, end_time, duration_minutes,
	status, client_id, price_cents, currency, paid_with_credit, confirmation_token,
	calendar_event_id, meeting_url, reschedule_count, original_date, original_start_time,
	first_rescheduled_at, rescheduled_at, cancelled_at, cancelled_by, cancellation_reason, is_late_cancel,
	credit_refunded, policy_override, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                                 model.Booking
		status                            string
		eventID, meetingURL               sql.NullString
		origDate, origStart               sql.NullString
		firstRescheduledAt, rescheduledAt sql.NullString
		cancelledAt                       sql.NullString
		cancelledBy, cancelReason         sql.NullString
		createdAt, updatedAt              sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.SessionType, &b.Date, &b.StartTime, &b.EndTime, &b.DurationMinutes,
		&status, &b.ClientID, &b.PriceCents, &b.Currency, &b.PaidWithCredit, &b.ConfirmationToken,
		&eventID, &meetingURL, &b.RescheduleCount, &origDate, &origStart,
		&firstRescheduledAt, &rescheduledAt, &cancelledAt, &cancelledBy, &cancelReason, &b.IsLateCancel,
		&b.CreditRefunded, &b.PolicyOverride, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	b.CalendarEventID = nullableString(eventID)
	b.MeetingURL = nullableString(meetingURL)
	b.OriginalDate = nullableString(origDate)
	b.OriginalStartTime = nullableString(origStart)
	b.CancellationReason = nullableString(cancelReason)
	if cancelledBy.Valid {
		a := model.Actor(cancelledBy.String)
		b.CancelledBy = &a
	}
	if b.FirstRescheduledAt, err = nullableTime(firstRescheduledAt); err != nil {
		return nil, err
	}
	if b.RescheduledAt, err = nullableTime(rescheduledAt); err != nil {
		return nil, err
	}
	if b.CancelledAt, err = nullableTime(cancelledAt); err != nil {
		return nil, err
	}
	if t, err := nullableTime(createdAt); err == nil && t != nil {
		b.CreatedAt = *t
	}
	if t, err := nullableTime(updatedAt); err == nil && t != nil {
		b.UpdatedAt = *t
	}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID and timestamps from at.  A unique-key violation on
// the slot or the free claim is reported as ErrDuplicate.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *BookingRecord, at time.Time) error {
	const q = `INSERT INTO bookings (session_type, booking_date, start_time, end_time, duration_minutes,
		status, client_id, price_cents, currency, paid_with_credit, confirmation_token,
		slot_key, free_claim_key, policy_override, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	b := &rec.Booking
	now := at.UTC().Truncate(time.Second)
	result, err := tx.ExecContext(ctx, q,
		b.SessionType, b.Date, b.StartTime, b.EndTime, b.DurationMinutes,
		string(b.Status), b.ClientID, b.PriceCents, b.Currency, b.PaidWithCredit, b.ConfirmationToken,
		rec.SlotKey, nullArg(rec.FreeClaimKey), b.PolicyOverride, formatDBTime(now), formatDBTime(now),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

// GetByID returns a booking by id, or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetByIDTx reads a booking inside a transaction so that the decision
// and the update it leads to observe the same row.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return getBooking(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetByToken returns the booking carrying the confirmation token.
func (r *BookingRepo) GetByToken(ctx context.Context, token string) (*model.Booking, error) {
	return getBooking(ctx, r.db, `SELECT `+bookingColumns+` FROM bookings WHERE confirmation_token = ?`, token)
}

func getBooking(ctx context.Context, q querier, query string, arg any) (*model.Booking, error) {
	return scanBooking(q.QueryRowContext(ctx, query, arg))
}

// ListByClient returns all bookings of a client, newest session first.
func (r *BookingRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings WHERE client_id = ?
		 ORDER BY booking_date DESC, start_time DESC`, clientID)
}

// ListOccupying returns the bookings that occupy time on date: every
// status except cancelled.  excludeID (when non-zero) is left out so a
// booking being rescheduled does not block its own neighbourhood.
func (r *BookingRepo) ListOccupying(ctx context.Context, date string, excludeID uint64) ([]model.Booking, error) {
	return listBookings(ctx, r.db,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE booking_date = ? AND status <> ? AND id <> ?
		 ORDER BY start_time`, date, string(model.StatusCancelled), excludeID)
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasBookedType reports whether the client ever held a booking of the
// session type, regardless of its status.
func (r *BookingRepo) HasBookedType(ctx context.Context, clientID uint64, sessionType string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE client_id = ? AND session_type = ?`,
		clientID, sessionType).Scan(&n)
	return n > 0, err
}

// Cancellation carries the fields written when a booking is cancelled.
type Cancellation struct {
	BookingID      uint64
	At             time.Time
	By             model.Actor
	Reason         *string
	IsLateCancel   bool
	CreditRefunded bool
}

// CancelTx moves a confirmed booking to cancelled and releases its slot.
// The update is conditional on the booking still being confirmed; when it
// is not (for example a concurrent cancellation won), ErrConflict is
// returned and nothing is written.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, c Cancellation) error {
	const q = `UPDATE bookings
		SET status = ?, cancelled_at = ?, cancelled_by = ?, cancellation_reason = ?,
		    is_late_cancel = ?, credit_refunded = ?, slot_key = NULL, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q,
		string(model.StatusCancelled), formatDBTime(c.At), string(c.By), nullArg(c.Reason),
		c.IsLateCancel, c.CreditRefunded, formatDBTime(c.At),
		c.BookingID, string(model.StatusConfirmed))
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// Reschedule carries the new slot for a booking.  ExpectedCount is the
// reschedule_count observed when the decision was made.
type Reschedule struct {
	BookingID     uint64
	ExpectedCount int
	Date          string
	StartTime     string
	EndTime       string
	SlotKey       string
	At            time.Time
}

// RescheduleTx moves a confirmed booking to a new slot in place.  The
// original date and start, and the moment they were given up, are
// captured only when still NULL, so the very first slot survives any
// number of reschedules.  Calendar fields
// are cleared; the caller attaches the new event after commit.
//
// The original_* assignments come first: MySQL evaluates single-table
// SET clauses left to right against already-updated values.
func (r *BookingRepo) RescheduleTx(ctx context.Context, tx *sql.Tx, u Reschedule) error {
	const q = `UPDATE bookings
		SET original_date = COALESCE(original_date, booking_date),
		    original_start_time = COALESCE(original_start_time, start_time),
		    first_rescheduled_at = COALESCE(first_rescheduled_at, ?),
		    booking_date = ?, start_time = ?, end_time = ?, slot_key = ?,
		    reschedule_count = reschedule_count + 1, rescheduled_at = ?,
		    calendar_event_id = NULL, meeting_url = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND reschedule_count = ?`
	res, err := tx.ExecContext(ctx, q,
		formatDBTime(u.At),
		u.Date, u.StartTime, u.EndTime, u.SlotKey, formatDBTime(u.At), formatDBTime(u.At),
		u.BookingID, string(model.StatusConfirmed), u.ExpectedCount)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return expectOneRow(res)
}

// MarkOutcome records completed or no_show for a confirmed booking.
func (r *BookingRepo) MarkOutcome(ctx context.Context, id uint64, status model.BookingStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), formatDBTime(at), id, string(model.StatusConfirmed))
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetCalendarInfo stores the external event id and meeting link.  Either
// may be nil when the calendar did not return one.
func (r *BookingRepo) SetCalendarInfo(ctx context.Context, id uint64, eventID, meetingURL *string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET calendar_event_id = ?, meeting_url = ?, updated_at = ? WHERE id = ?`,
		nullArg(eventID), nullArg(meetingURL), formatDBTime(at), id)
	return err
}

// SetPolicyOverride toggles the admin leniency flag.
func (r *BookingRepo) SetPolicyOverride(ctx context.Context, id uint64, override bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET policy_override = ?, updated_at = ? WHERE id = ?`,
		override, formatDBTime(at), id)
	return err
}

// expectOneRow maps "no row matched the guarded update" to ErrConflict.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}
