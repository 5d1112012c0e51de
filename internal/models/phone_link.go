package models

import "time"

// PhoneLink is a time-ranged binding between a normalized phone number and the
// account that owns it. For any normalized phone at most one link is current;
// the store enforces that with a partial unique index.
type PhoneLink struct {
	ID              int64      `json:"id"`
	AccountID       string     `json:"accountId"`
	NormalizedPhone string     `json:"normalizedPhone"`
	DisplayPhone    string     `json:"displayPhone"`
	IsCurrent       bool       `json:"isCurrent"`
	ValidFrom       time.Time  `json:"validFrom"`
	ValidTo         *time.Time `json:"validTo,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
