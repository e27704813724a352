package model

import "time"

// User is an account owner. One user owns one mailbox account in v1, so the
// user id doubles as the account id throughout the processing core.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
