package models

import "time"

type User struct {
	ID                   int64     `json:"id" db:"id"`
	Username             string    `json:"username" db:"username"`
	Email                string    `json:"email" db:"email"`
	PasswordHash         string    `json:"-" db:"password_hash"`
	FirstName            *string   `json:"first_name,omitempty" db:"first_name"`
	LastName             *string   `json:"last_name,omitempty" db:"last_name"`
	Plan                 string    `json:"plan" db:"plan"`
	StorageUsedBytes     int64     `json:"storage_used_bytes" db:"storage_used_bytes"`
	AICreditsUsed        int       `json:"ai_credits_used" db:"ai_credits_used"`
	StripeCustomerID     *string   `json:"-" db:"stripe_customer_id"`
	StripeSubscriptionID *string   `json:"-" db:"stripe_subscription_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}
