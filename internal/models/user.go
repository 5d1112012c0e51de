package models

import "time"

// User is the directory record for an account. The directory is the
// authoritative source for an account's last-known phone; the ownership
// ledger is kept eventually consistent with it via explicit sync calls.
type User struct {
	ID              int64     `json:"id"`
	Identity        string    `json:"identity"`
	AltIdentity     string    `json:"altIdentity,omitempty"`
	Username        string    `json:"username,omitempty"`
	DisplayName     string    `json:"displayName,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	NormalizedPhone string    `json:"normalizedPhone,omitempty"`
	PushToken       string    `json:"pushToken,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasPushToken reports whether a push relay attempt can be made for the user.
func (u *User) HasPushToken() bool {
	return u != nil && u.PushToken != ""
}
