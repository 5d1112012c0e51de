package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	"github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

// ValidatePhoneNumber validates raw phone number input before normalization
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(strings.TrimSpace(phone), "+")

	if len(cleaned) > 24 {
		return errors.New(errors.ErrCodeInvalidInput, "phone number too long")
	}

	digits := 0
	for _, char := range cleaned {
		// ASCII digits only, matching what normalization keeps.
		if char >= '0' && char <= '9' {
			digits++
			continue
		}
		if char == ' ' || char == '-' || char == '(' || char == ')' || char == '.' {
			continue
		}
		return errors.New(errors.ErrCodeInvalidInput, "phone number contains invalid characters")
	}

	if digits < constants.MinPhoneDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must have at least %d digits", constants.MinPhoneDigits))
	}

	return nil
}

// ValidateMessageID validates message ID format and length
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}

	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return errors.New(errors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateMessageBody validates message text length bounds
func ValidateMessageBody(body string) error {
	if body == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message body cannot be empty")
	}

	if len(body) > constants.MaxMessageBodyLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message body too long (max %d bytes)", constants.MaxMessageBodyLength))
	}

	return nil
}

// ValidateUsername validates username format and length
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New(errors.ErrCodeInvalidInput, "username cannot be empty")
	}

	if len(username) > constants.MaxUsernameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("username too long (max %d characters)", constants.MaxUsernameLength))
	}

	for _, char := range username {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '.' {
			return errors.New(errors.ErrCodeInvalidInput,
				"username must contain only letters, numbers, underscores, and dots")
		}
	}

	return nil
}

// ValidateClaimAction validates the action field of a claim response
func ValidateClaimAction(action models.ClaimAction) error {
	switch action {
	case models.ClaimActionApprove, models.ClaimActionReject, models.ClaimActionBlock:
		return nil
	default:
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid claim action: %q", action))
	}
}

// ValidateReceiptStatus checks that a client-submitted receipt carries one of
// the two statuses receivers are allowed to assert
func ValidateReceiptStatus(status models.DeliveryStatus) error {
	switch status {
	case models.DeliveryStatusDelivered, models.DeliveryStatusRead:
		return nil
	default:
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid receipt status: %q", status))
	}
}

// ValidateConversationID checks the "idA_idB" participant encoding
func ValidateConversationID(conversationID string) error {
	if conversationID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "conversation ID cannot be empty")
	}
	if _, _, ok := models.ConversationParticipants(conversationID); !ok {
		return errors.New(errors.ErrCodeInvalidInput, "conversation ID must encode two participants")
	}
	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}
	return nil
}
