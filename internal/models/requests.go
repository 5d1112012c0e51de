package models

import "time"

// Typed request/response bodies for the HTTP surface. Every accepted field is
// explicit; payloads are validated before they reach business logic.

// UpdatePhoneRequest asks to set the authenticated caller's phone number and
// sync the ownership ledger.
type UpdatePhoneRequest struct {
	Phone string `json:"phone"`
}

type UpdatePhoneResponse struct {
	Phone           string `json:"phone"`
	NormalizedPhone string `json:"normalizedPhone"`
}

type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// RequestClaimRequest files a transfer claim against the current owner of the
// given phone number.
type RequestClaimRequest struct {
	Phone string `json:"phone"`
}

type RequestClaimResponse struct {
	Claim      *PhoneClaim `json:"claim"`
	OfferBlock bool        `json:"offerBlock"`
}

// RespondClaimRequest resolves a pending claim. Approve requires at least one
// of the two approval proofs.
type RespondClaimRequest struct {
	Action            ClaimAction `json:"action"`
	PinApproved       bool        `json:"pinApproved,omitempty"`
	BiometricApproved bool        `json:"biometricApproved,omitempty"`
}

type RespondClaimResponse struct {
	Claim                     *PhoneClaim `json:"claim"`
	PreviousOwnerMustSetPhone bool        `json:"previousOwnerMustSetPhone,omitempty"`
}

// SendMessageRequest relays one chat message to a receiver. MessageID and
// Timestamp are optional; missing values are generated server-side.
type SendMessageRequest struct {
	ConversationID string     `json:"conversationId"`
	ReceiverID     string     `json:"receiverId"`
	Body           string     `json:"body"`
	MessageID      string     `json:"messageId,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

type SendMessageResponse struct {
	MessageID string         `json:"messageId"`
	Status    DeliveryStatus `json:"status"`
	Queued    bool           `json:"queued,omitempty"`
}

// ReceiptRequest records a receiver-submitted delivery receipt. Only
// "delivered" and "read" are accepted from clients.
type ReceiptRequest struct {
	Status DeliveryStatus `json:"status"`
}

type ReceiptResponse struct {
	MessageID string         `json:"messageId"`
	Status    DeliveryStatus `json:"status"`
}

type PendingSyncResponse struct {
	Deliveries []MessageDelivery `json:"deliveries"`
}
