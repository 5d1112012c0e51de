package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/internal/phone"
	"github.com/Vast-Academy/account-android-app-backend/internal/privacy"
	"github.com/Vast-Academy/account-android-app-backend/internal/validation"
	"github.com/Vast-Academy/account-android-app-backend/pkg/push"
)

// DeliveryDatabaseService defines the storage operations delivery tracking needs.
type DeliveryDatabaseService interface {
	InsertDelivery(ctx context.Context, delivery *models.MessageDelivery) error
	GetDeliveryByMessageID(ctx context.Context, messageID string) (*models.MessageDelivery, error)
	UpdateDeliveryPushResult(ctx context.Context, messageID string, status models.DeliveryStatus, lastError string, retryIncrement int, expiresAt time.Time) error
	UpdateDeliveryReceipt(ctx context.Context, messageID string, status models.DeliveryStatus, deliveredAt, readAt *time.Time, expiresAt time.Time) error
	ListPendingSync(ctx context.Context, conversationID, receiverID string, since time.Time, limit int) ([]models.MessageDelivery, error)
	GetUserByIdentity(ctx context.Context, identity string) (*models.User, error)
	GetUserByAltIdentity(ctx context.Context, altIdentity string) (*models.User, error)
	GetUserByPhoneSuffix(ctx context.Context, suffix string) (*models.User, error)
}

// DeliveryService tracks the push/ack lifecycle of relayed chat messages.
// The push relay is best effort: a failed relay leaves a durable accepted
// record behind and is never surfaced to the sender as a failure.
type DeliveryService struct {
	db          DeliveryDatabaseService
	push        push.Sender
	pushTimeout time.Duration
	logger      *logrus.Logger
}

func NewDeliveryService(db DeliveryDatabaseService, pushClient push.Sender, pushTimeout time.Duration, logger *logrus.Logger) *DeliveryService {
	if pushTimeout <= 0 {
		pushTimeout = time.Duration(constants.DefaultPushTimeoutSec) * time.Second
	}
	return &DeliveryService{
		db:          db,
		push:        pushClient,
		pushTimeout: pushTimeout,
		logger:      logger,
	}
}

// Send persists an accepted delivery record and then attempts the push relay.
// The accepted write always happens before the relay attempt so a crash
// mid-relay leaves a durable record behind. Resending an existing message ID
// returns its current state instead of writing anything.
func (s *DeliveryService) Send(ctx context.Context, senderID string, req models.SendMessageRequest) (*models.SendMessageResponse, error) {
	if err := validation.ValidateConversationID(req.ConversationID); err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageBody(req.Body); err != nil {
		return nil, err
	}
	if req.MessageID != "" {
		if err := validation.ValidateMessageID(req.MessageID); err != nil {
			return nil, err
		}
	}
	if req.ReceiverID == "" {
		return nil, apperrors.NewValidationError("receiverId", "receiver is required")
	}

	receiver, err := s.resolveReceiver(ctx, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, apperrors.NewNotFoundError("receiver", privacy.MaskIdentity(req.ReceiverID))
	}
	if receiver.Identity == senderID {
		return nil, apperrors.NewValidationError("receiverId", "cannot send a message to yourself")
	}

	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	// Retries with the same message ID are answered from the existing record,
	// but only for the sender who owns it; anyone else would be reading
	// another user's delivery state.
	if existing, err := s.db.GetDeliveryByMessageID(ctx, messageID); err != nil {
		return nil, err
	} else if existing != nil {
		if existing.SenderID != senderID {
			return nil, apperrors.NewConflictError("message", "message id already in use")
		}
		return &models.SendMessageResponse{
			MessageID: existing.MessageID,
			Status:    existing.Status,
			Queued:    existing.Status == models.DeliveryStatusAccepted,
		}, nil
	}

	now := time.Now().UTC()
	originTimestamp := now
	if req.Timestamp != nil {
		originTimestamp = req.Timestamp.UTC()
	}

	delivery := &models.MessageDelivery{
		MessageID:       messageID,
		ConversationID:  req.ConversationID,
		SenderID:        senderID,
		ReceiverID:      receiver.Identity,
		Body:            req.Body,
		OriginTimestamp: originTimestamp,
		Status:          models.DeliveryStatusAccepted,
		ExpiresAt:       deliveryExpiry(models.DeliveryStatusAccepted, now),
	}
	if err := s.db.InsertDelivery(ctx, delivery); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			existing, getErr := s.db.GetDeliveryByMessageID(ctx, messageID)
			if getErr == nil && existing != nil {
				if existing.SenderID != senderID {
					return nil, apperrors.NewConflictError("message", "message id already in use")
				}
				return &models.SendMessageResponse{
					MessageID: existing.MessageID,
					Status:    existing.Status,
					Queued:    existing.Status == models.DeliveryStatusAccepted,
				}, nil
			}
		}
		return nil, err
	}

	metrics.IncrementCounter("messages_accepted_total", nil, "Messages durably accepted for delivery")

	if !receiver.HasPushToken() {
		s.logger.WithFields(logrus.Fields{
			"messageId": messageID,
			"receiver":  privacy.MaskIdentity(receiver.Identity),
		}).Info("Receiver has no push token, message queued")
		return &models.SendMessageResponse{
			MessageID: messageID,
			Status:    models.DeliveryStatusAccepted,
			Queued:    true,
		}, nil
	}

	status := s.relayPush(ctx, delivery, receiver)
	return &models.SendMessageResponse{
		MessageID: messageID,
		Status:    status,
		Queued:    status == models.DeliveryStatusAccepted,
	}, nil
}

// relayPush attempts one push and records the outcome. A relay failure keeps
// the record accepted with the error retained; the sender never sees it.
func (s *DeliveryService) relayPush(ctx context.Context, delivery *models.MessageDelivery, receiver *models.User) models.DeliveryStatus {
	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	now := time.Now().UTC()
	err := s.push.Send(pushCtx, receiver.PushToken, push.Payload{
		Title: "New message",
		Body:  truncateForPush(delivery.Body),
		Data: map[string]string{
			"messageId":      delivery.MessageID,
			"conversationId": delivery.ConversationID,
			"senderId":       delivery.SenderID,
		},
	})
	if err != nil {
		metrics.IncrementCounter("push_relay_failures_total", nil, "Push relay attempts that failed")
		s.logger.WithError(err).WithFields(logrus.Fields{
			"messageId": delivery.MessageID,
			"receiver":  privacy.MaskIdentity(receiver.Identity),
		}).Warn("Push relay failed, message remains queued")

		if updateErr := s.db.UpdateDeliveryPushResult(ctx, delivery.MessageID,
			models.DeliveryStatusAccepted, err.Error(), 1,
			deliveryExpiry(models.DeliveryStatusAccepted, now)); updateErr != nil {
			s.logger.WithError(updateErr).Error("Failed to record push failure")
		}
		return models.DeliveryStatusAccepted
	}

	metrics.IncrementCounter("messages_pushed_total", nil, "Messages relayed to the push gateway")
	if updateErr := s.db.UpdateDeliveryPushResult(ctx, delivery.MessageID,
		models.DeliveryStatusPushed, "", 0,
		deliveryExpiry(models.DeliveryStatusPushed, now)); updateErr != nil {
		s.logger.WithError(updateErr).Error("Failed to record push success")
		return models.DeliveryStatusAccepted
	}
	return models.DeliveryStatusPushed
}

// SubmitReceipt applies a receiver-submitted delivered/read receipt. Receipts
// advance status monotonically; a receipt for a rank the record already passed
// is ignored without error. A read receipt backfills the delivered timestamp.
func (s *DeliveryService) SubmitReceipt(ctx context.Context, callerID, messageID string, status models.DeliveryStatus) (*models.MessageDelivery, error) {
	if err := validation.ValidateReceiptStatus(status); err != nil {
		return nil, err
	}

	delivery, err := s.db.GetDeliveryByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, apperrors.NewNotFoundError("message", messageID)
	}
	if delivery.ReceiverID != callerID {
		return nil, apperrors.NewAuthorizationError("submit a receipt for this message")
	}

	if !delivery.Status.CanAdvanceTo(status) {
		return delivery, nil
	}

	now := time.Now().UTC()
	deliveredAt := delivery.DeliveredAt
	readAt := delivery.ReadAt
	if deliveredAt == nil {
		deliveredAt = &now
	}
	if status == models.DeliveryStatusRead && readAt == nil {
		readAt = &now
	}

	expiresAt := deliveryExpiry(status, now)
	if err := s.db.UpdateDeliveryReceipt(ctx, messageID, status, deliveredAt, readAt, expiresAt); err != nil {
		return nil, err
	}

	metrics.IncrementCounter("receipts_applied_total",
		map[string]string{"status": string(status)}, "Delivery receipts applied")

	delivery.Status = status
	delivery.DeliveredAt = deliveredAt
	delivery.ReadAt = readAt
	delivery.LastError = ""
	delivery.ExpiresAt = expiresAt

	s.notifySender(delivery, status)

	return delivery, nil
}

// notifySender relays the receipt back to the sender's device. Fire and
// forget: failure only gets logged, the receipt itself is already persisted.
func (s *DeliveryService) notifySender(delivery *models.MessageDelivery, status models.DeliveryStatus) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
		defer cancel()

		sender, err := s.db.GetUserByIdentity(ctx, delivery.SenderID)
		if err != nil || sender == nil || !sender.HasPushToken() {
			return
		}

		err = s.push.Send(ctx, sender.PushToken, push.Payload{
			Data: map[string]string{
				"type":           "receipt",
				"messageId":      delivery.MessageID,
				"conversationId": delivery.ConversationID,
				"status":         string(status),
			},
		})
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"messageId": delivery.MessageID,
				"sender":    privacy.MaskIdentity(delivery.SenderID),
			}).Debug("Receipt relay to sender failed")
		}
	}()
}

// PendingSync returns the caller's unsynced deliveries for a conversation:
// non-failed rows addressed to the caller, newer than the cursor, oldest
// first, in a bounded page. The caller must be one of the two participants
// encoded in the conversation ID.
func (s *DeliveryService) PendingSync(ctx context.Context, callerID, conversationID string, since time.Time, limit int) ([]models.MessageDelivery, error) {
	if err := validation.ValidateConversationID(conversationID); err != nil {
		return nil, err
	}
	if !models.IsConversationParticipant(conversationID, callerID) {
		return nil, apperrors.NewAuthorizationError("sync this conversation")
	}

	if limit <= 0 {
		limit = constants.DefaultSyncPageSize
	}
	if limit > constants.MaxSyncPageSize {
		limit = constants.MaxSyncPageSize
	}

	return s.db.ListPendingSync(ctx, conversationID, callerID, since, limit)
}

// resolveReceiver tries the primary identity first, then the alternate
// identity scheme, then a phone-suffix match.
func (s *DeliveryService) resolveReceiver(ctx context.Context, receiverID string) (*models.User, error) {
	user, err := s.db.GetUserByIdentity(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = s.db.GetUserByAltIdentity(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	if suffix := phone.LookupKey(receiverID); suffix != "" {
		user, err = s.db.GetUserByPhoneSuffix(ctx, suffix)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	return nil, nil
}

// deliveryExpiry computes the record's expiry from its new status. Synced
// records vanish quickly; unacknowledged ones linger long enough for offline
// catch-up; anything unrecognized gets the long fallback.
func deliveryExpiry(status models.DeliveryStatus, now time.Time) time.Time {
	switch status {
	case models.DeliveryStatusDelivered, models.DeliveryStatusRead:
		return now.Add(constants.DeliveryExpirySynced)
	case models.DeliveryStatusAccepted, models.DeliveryStatusPushed, models.DeliveryStatusFailed:
		return now.Add(constants.DeliveryExpiryPending)
	default:
		return now.Add(constants.DeliveryExpiryFallback)
	}
}

// truncateForPush bounds the notification preview, cutting on a rune boundary
// so multi-byte text never gets torn.
func truncateForPush(body string) string {
	const maxPreview = 120
	if len(body) <= maxPreview {
		return body
	}
	cut := maxPreview
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
