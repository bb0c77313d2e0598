package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/practice-booking/internal/model"
)

// CreditRepo persists the prepaid credit ledger.  Balances live in
// `credit_balances` (one row per client) and every movement is appended
// to `credit_transactions`.  Writers always change both in the same
// transaction so the sum of deltas equals the balance.  Writers stamp
// rows with the at argument so the ledger follows the caller's clock.
type CreditRepo struct {
    db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *CreditRepo) DB() *sql.DB { return r.db }

// Balance returns the client's current balance.  A client that never
// held credits has a zero balance, not an error.
func (r *CreditRepo) Balance(ctx context.Context, clientID uint64) (model.CreditBalance, error) {
    return balance(ctx, r.db, clientID)
}

// BalanceTx reads the balance inside tx.
func (r *CreditRepo) BalanceTx(ctx context.Context, tx *sql.Tx, clientID uint64) (model.CreditBalance, error) {
    return balance(ctx, tx, clientID)
}

func balance(ctx context.Context, q querier, clientID uint64) (model.CreditBalance, error) {
    cb := model.CreditBalance{ClientID: clientID}
    var updated sql.NullString
    err := q.QueryRowContext(ctx,
        `SELECT balance, updated_at FROM credit_balances WHERE client_id = ?`, clientID,
    ).Scan(&cb.Balance, &updated)
    if errors.Is(err, sql.ErrNoRows) {
        return cb, nil
    }
    if err != nil {
        return model.CreditBalance{}, err
    }
    if t, err := nullableTime(updated); err == nil && t != nil {
        cb.UpdatedAt = *t
    }
    return cb, nil
}

// DeductTx removes one credit for bookingID.  The decrement is guarded by
// balance >= 1, so two concurrent deductions can never drive the balance
// negative; the loser gets ErrInsufficientCredit.
func (r *CreditRepo) DeductTx(ctx context.Context, tx *sql.Tx, clientID, bookingID uint64, reason string, at time.Time) error {
    now := formatDBTime(at)
    res, err := tx.ExecContext(ctx,
        `UPDATE credit_balances SET balance = balance - 1, updated_at = ?
         WHERE client_id = ? AND balance >= 1`, now, clientID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrInsufficientCredit
    }
    return r.appendTx(ctx, tx, clientID, -1, model.CreditDeduct, &bookingID, reason, now)
}

// RefundTx returns one credit for bookingID.  A booking can be refunded at
// most once: a second refund hits UNIQUE(booking_id, kind) and yields
// ErrDuplicate.
func (r *CreditRepo) RefundTx(ctx context.Context, tx *sql.Tx, clientID, bookingID uint64, reason string, at time.Time) error {
    now := formatDBTime(at)
    if err := r.appendTx(ctx, tx, clientID, 1, model.CreditRefund, &bookingID, reason, now); err != nil {
        return err
    }
    return addBalanceTx(ctx, tx, clientID, 1, now)
}

// ForfeitTx records that the credit for bookingID is kept by the practice.
// The balance does not move; the zero-delta row keeps the audit trail.
func (r *CreditRepo) ForfeitTx(ctx context.Context, tx *sql.Tx, clientID, bookingID uint64, reason string, at time.Time) error {
    return r.appendTx(ctx, tx, clientID, 0, model.CreditForfeit, &bookingID, reason, formatDBTime(at))
}

// GrantTx adds n credits to the client, for example after a pack purchase.
func (r *CreditRepo) GrantTx(ctx context.Context, tx *sql.Tx, clientID uint64, n int, reason string, at time.Time) error {
    now := formatDBTime(at)
    if err := addBalanceTx(ctx, tx, clientID, n, now); err != nil {
        return err
    }
    return r.appendTx(ctx, tx, clientID, n, model.CreditGrant, nil, reason, now)
}

func (r *CreditRepo) appendTx(ctx context.Context, tx *sql.Tx, clientID uint64, delta int, kind model.CreditReason, bookingID *uint64, reason, at string) error {
    var booking any
    if bookingID != nil {
        booking = *bookingID
    }
    _, err := tx.ExecContext(ctx,
        `INSERT INTO credit_transactions (client_id, delta, kind, booking_id, reason, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
        clientID, delta, string(kind), booking, reason, at)
    if err != nil && isDuplicate(err) {
        return ErrDuplicate
    }
    return err
}

// addBalanceTx increments the balance row, creating it on first use.  If a
// concurrent writer creates the row between our UPDATE and INSERT, the
// UPDATE is retried once.
func addBalanceTx(ctx context.Context, tx *sql.Tx, clientID uint64, delta int, at string) error {
    const upd = `UPDATE credit_balances SET balance = balance + ?, updated_at = ? WHERE client_id = ?`
    res, err := tx.ExecContext(ctx, upd, delta, at, clientID)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err != nil {
        return err
    } else if n > 0 {
        return nil
    }
    _, err = tx.ExecContext(ctx,
        `INSERT INTO credit_balances (client_id, balance, updated_at) VALUES (?, ?, ?)`,
        clientID, delta, at)
    if err == nil {
        return nil
    }
    if !isDuplicate(err) {
        return err
    }
    _, err = tx.ExecContext(ctx, upd, delta, at, clientID)
    return err
}

// ListTransactions returns the client's ledger, oldest entry first.
func (r *CreditRepo) ListTransactions(ctx context.Context, clientID uint64) ([]model.CreditTransaction, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, client_id, delta, kind, booking_id, reason, created_at
         FROM credit_transactions WHERE client_id = ? ORDER BY id`, clientID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.CreditTransaction, 0)
    for rows.Next() {
        var (
            t         model.CreditTransaction
            kind      string
            bookingID sql.NullInt64
            created   sql.NullString
        )
        if err := rows.Scan(&t.ID, &t.ClientID, &t.Delta, &kind, &bookingID, &t.Reason, &created); err != nil {
            return nil, err
        }
        t.Kind = model.CreditReason(kind)
        if bookingID.Valid {
            id := uint64(bookingID.Int64)
            t.BookingID = &id
        }
        if ts, err := nullableTime(created); err == nil && ts != nil {
            t.CreatedAt = *ts
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// LedgerSum returns the sum of all deltas recorded for the client.
func (r *CreditRepo) LedgerSum(ctx context.Context, clientID uint64) (int, error) {
    var sum sql.NullInt64
    err := r.db.QueryRowContext(ctx,
        `SELECT SUM(delta) FROM credit_transactions WHERE client_id = ?`, clientID).Scan(&sum)
    if err != nil {
        return 0, err
    }
    return int(sum.Int64), nil
}

// ClientsWithLedger lists every client that has a balance row or a
// ledger entry.  Used by the ledger verification command.
func (r *CreditRepo) ClientsWithLedger(ctx context.Context) ([]uint64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT client_id FROM credit_balances
         UNION SELECT client_id FROM credit_transactions
         ORDER BY client_id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}
