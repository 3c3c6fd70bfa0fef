package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tharamac2/Tharamac/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
	// GetOrCreateByPhone returns the user for phone, creating it with name and
	// businessName if it does not exist. created reports whether a row was inserted.
	GetOrCreateByPhone(ctx context.Context, phone, name, businessName string) (user model.User, created bool, err error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, businessName string) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, phone_number, name, business_name, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.PhoneNumber,
		&user.Name,
		&user.BusinessName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByPhone retrieves a user by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
	return scanUser(row)
}

// GetOrCreateByPhone inserts with ON CONFLICT DO NOTHING and then selects, so
// concurrent first logins for the same phone end up with one row.
func (r *userRepo) GetOrCreateByPhone(ctx context.Context, phone, name, businessName string) (model.User, bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (phone_number, name, business_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_number) DO NOTHING
	`, phone, name, businessName)
	if err != nil {
		return model.User{}, false, fmt.Errorf("failed to insert user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.User{}, false, fmt.Errorf("rows affected: %w", err)
	}

	user, err := r.GetByPhone(ctx, phone)
	if err != nil {
		return model.User{}, false, err
	}
	return user, n > 0, nil
}

// UpdateProfile sets name and business name. Empty values leave the column unchanged.
func (r *userRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, businessName string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    business_name = COALESCE(NULLIF($3, ''), business_name),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, name, businessName)
	return scanUser(row)
}
