package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, display_name, scans_remaining, scans_today,
	last_scan_date, completed_scans, is_subscribed, stripe_customer_id,
	created_at, updated_at, last_login_at`

// Create creates a new user with the starting scan allowance
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	query := `
		INSERT INTO users (id, email, password_hash, display_name, scans_remaining, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :display_name, :scans_remaining, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, user)
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CommitScan performs the quota commit as one atomic statement. All SET
// expressions see the pre-update row, so the rollover CASE compares
// against the stored last_scan_date, not the value being written.
func (r *UserRepository) CommitScan(ctx context.Context, userID uuid.UUID, today string) error {
	query := `
		UPDATE users SET
			scans_today = CASE WHEN last_scan_date = $2 THEN scans_today + 1 ELSE 1 END,
			last_scan_date = $2,
			scans_remaining = scans_remaining - 1,
			completed_scans = completed_scans + 1,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, userID, today)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// AdjustScansRemaining applies a relative delta to the lifetime allowance
func (r *UserRepository) AdjustScansRemaining(ctx context.Context, userID uuid.UUID, delta int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET scans_remaining = scans_remaining + $2, updated_at = NOW() WHERE id = $1`,
		userID, delta)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetSubscribed flips the subscription-active flag
func (r *UserRepository) SetSubscribed(ctx context.Context, userID uuid.UUID, subscribed bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_subscribed = $2, updated_at = NOW() WHERE id = $1`,
		userID, subscribed)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetSubscribedByCustomer flips the flag for whoever owns the Stripe customer;
// used by webhook events, which only carry the customer ID
func (r *UserRepository) SetSubscribedByCustomer(ctx context.Context, customerID string, subscribed bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_subscribed = $2, updated_at = NOW() WHERE stripe_customer_id = $1`,
		customerID, subscribed)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetStripeCustomer stores the Stripe customer ID for the user
func (r *UserRepository) SetStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, customerID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	return err
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
