package models

import "time"

// User is a platform login identity. A user owns one or more accounts
// (wallets); agents additionally own a float wallet.
type User struct {
	ID                  string     `json:"id" example:"2f0c6a9e-9a1b-4c57-8d9f-0b1f5d2d7c11"`
	Email               string     `json:"email" example:"user@example.com"`
	FirstName           string     `json:"first_name" example:"Amina"`
	LastName            string     `json:"last_name" example:"Okafor"`
	PhoneNumber         string     `json:"phone_number" example:"+2348012345678"`
	AccountID           string     `json:"account_id" example:"WAL4829103756"`
	Role                string     `json:"role"` // user, agent, admin
	KYCStatus           KYCStatus  `json:"kyc_status"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLogin           *time.Time `json:"last_login"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
