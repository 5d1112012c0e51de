package models

import (
	"strings"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusPushed    DeliveryStatus = "pushed"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
)

var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusFailed:    0,
	DeliveryStatusAccepted:  1,
	DeliveryStatusPushed:    2,
	DeliveryStatusDelivered: 3,
	DeliveryStatusRead:      4,
}

// Rank returns the monotonic ordering position of a delivery status.
// Unknown statuses rank below failed so they can never overwrite anything.
func (s DeliveryStatus) Rank() int {
	if r, ok := deliveryStatusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether a receipt carrying status next may be applied
// on top of s. Re-asserting the same status is allowed; regressing is not.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	return next.Rank() >= s.Rank()
}

// MessageDelivery tracks the push/ack lifecycle of a single relayed chat
// message. Records are transient: expires_at is recomputed on every mutation
// and expired rows are swept by a background job.
type MessageDelivery struct {
	ID              int64          `json:"id"`
	MessageID       string         `json:"messageId"`
	ConversationID  string         `json:"conversationId"`
	SenderID        string         `json:"senderId"`
	ReceiverID      string         `json:"receiverId"`
	Body            string         `json:"body"`
	OriginTimestamp time.Time      `json:"originTimestamp"`
	Status          DeliveryStatus `json:"status"`
	LastError       string         `json:"lastError,omitempty"`
	RetryCount      int            `json:"retryCount"`
	DeliveredAt     *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt          *time.Time     `json:"readAt,omitempty"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// ConversationParticipants splits a conversation ID of the form "idA_idB"
// into its two participant identities.
func ConversationParticipants(conversationID string) (string, string, bool) {
	parts := strings.SplitN(conversationID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsConversationParticipant reports whether accountID is one of the two
// identities encoded in the conversation ID.
func IsConversationParticipant(conversationID, accountID string) bool {
	a, b, ok := ConversationParticipants(conversationID)
	return ok && (a == accountID || b == accountID)
}
