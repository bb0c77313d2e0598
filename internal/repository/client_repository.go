package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/practice-booking/internal/model"
)

// ClientRepo reads and creates rows of the `clients` table.
type ClientRepo struct{ DB *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{DB: db} }

// Create inserts a client and returns its ID.  Emails are normalised to
// lower case; a second client with the same email yields ErrDuplicate.
func (r *ClientRepo) Create(ctx context.Context, email, name string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO clients (email, name, created_at) VALUES (?,?,?)",
		email, strings.TrimSpace(name), formatDBTime(time.Now()))
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a client by id.  ErrNotFound when absent.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (model.Client, error) {
	return r.get(ctx, "SELECT id,email,name,created_at FROM clients WHERE id=? LIMIT 1", id)
}

// GetByEmail fetches a client by normalized email.
func (r *ClientRepo) GetByEmail(ctx context.Context, email string) (model.Client, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(ctx, "SELECT id,email,name,created_at FROM clients WHERE email=? LIMIT 1", email)
}

func (r *ClientRepo) get(ctx context.Context, q string, arg any) (model.Client, error) {
	var (
		c       model.Client
		created sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(&c.ID, &c.Email, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, ErrNotFound
	}
	if err != nil {
		return model.Client{}, err
	}
	if t, err := nullableTime(created); err == nil && t != nil {
		c.CreatedAt = *t
	}
	return c, nil
}
