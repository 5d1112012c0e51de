package models

import "time"

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
	ClaimStatusBlocked  ClaimStatus = "blocked"
)

type ClaimAction string

const (
	ClaimActionApprove ClaimAction = "approve"
	ClaimActionReject  ClaimAction = "reject"
	ClaimActionBlock   ClaimAction = "block"
)

// PhoneClaim is a request by one account to take over a phone number that is
// currently owned by another. A blocked claim is terminal for the same
// (phone, requester, target) triple; rejected claims may be re-filed and carry
// their reject count forward into the next attempt.
type PhoneClaim struct {
	ID              int64       `json:"id"`
	NormalizedPhone string      `json:"normalizedPhone"`
	RequesterID     string      `json:"requesterId"`
	TargetID        string      `json:"targetId"`
	Status          ClaimStatus `json:"status"`
	RejectCount     int         `json:"rejectCount"`
	BlockedByTarget bool        `json:"blockedByTarget"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}
