package database

import (
	"context"
	"errors"
	"strings"

	"spx-studio/internal/models"

	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username is already taken")
	ErrEmailTaken    = errors.New("email is already registered")
)

const userColumns = `
	id, username, email, password_hash, first_name, last_name, plan,
	storage_used_bytes, ai_credits_used, stripe_customer_id, stripe_subscription_id, created_at`

// prefixed qualifies every column of a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Plan,
		&user.StorageUsedBytes, &user.AICreditsUsed, &user.StripeCustomerID, &user.StripeSubscriptionID, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	user, err := scanUser(q.db.QueryRow(ctx, query, arg.Username, arg.Email, arg.PasswordHash, arg.FirstName, arg.LastName))
	if err != nil {
		if code, constraint := pgErrorCode(err); code == pgUniqueViolation {
			if constraint == "users_email_key" {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(q.db.QueryRow(ctx, query, email))
}

// LockUserForUpdate reads the user row and holds a row lock until the
// surrounding transaction ends. Outside a transaction the lock is released
// immediately.
func (q *Queries) LockUserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	defer observe("users.lock")()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) UpdateUserStorage(ctx context.Context, userID int64, bytesChange int64) error {
	query := `
		UPDATE users
		SET storage_used_bytes = GREATEST(storage_used_bytes + $1, 0)
		WHERE id = $2
	`
	_, err := q.db.Exec(ctx, query, bytesChange, userID)
	return err
}

func (q *Queries) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`
	_, err := q.db.Exec(ctx, query, newPasswordHash, userID)
	return err
}

// IncrementAICredits bumps the generation counter and returns the new value.
func (q *Queries) IncrementAICredits(ctx context.Context, userID int64) (int, error) {
	query := `UPDATE users SET ai_credits_used = ai_credits_used + 1 WHERE id = $1 RETURNING ai_credits_used`
	var used int
	err := q.db.QueryRow(ctx, query, userID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return used, err
}

type UpdateUserPlanParams struct {
	UserID               int64
	Plan                 string
	StripeCustomerID     *string
	StripeSubscriptionID *string
}

func (q *Queries) UpdateUserPlan(ctx context.Context, arg UpdateUserPlanParams) (*models.User, error) {
	query := `
		UPDATE users
		SET plan = $2,
			stripe_customer_id = COALESCE($3, stripe_customer_id),
			stripe_subscription_id = COALESCE($4, stripe_subscription_id)
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(q.db.QueryRow(ctx, query, arg.UserID, arg.Plan, arg.StripeCustomerID, arg.StripeSubscriptionID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
