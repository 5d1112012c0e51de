package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

func TestSend(t *testing.T) {
	ctx := context.Background()

	receiver := func() *models.User {
		return &models.User{Identity: "acct-2", PushToken: "token-2"}
	}

	t.Run("accepted then pushed on relay success", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(receiver(), nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(nil, nil)
		store.On("InsertDelivery", ctx, mock.MatchedBy(func(d *models.MessageDelivery) bool {
			return d.Status == models.DeliveryStatusAccepted && d.SenderID == "acct-1" && d.ReceiverID == "acct-2"
		})).Return(nil)
		sender.On("Send", mock.Anything, "token-2", mock.Anything).Return(nil)
		store.On("UpdateDeliveryPushResult", ctx, "msg-1", models.DeliveryStatusPushed, "", 0, mock.Anything).Return(nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		resp, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusPushed, resp.Status)
		assert.False(t, resp.Queued)
		store.AssertExpectations(t)
	})

	t.Run("relay failure stays accepted and sender still succeeds", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(receiver(), nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(nil, nil)
		store.On("InsertDelivery", ctx, mock.Anything).Return(nil)
		sender.On("Send", mock.Anything, "token-2", mock.Anything).Return(errors.New("gateway down"))
		store.On("UpdateDeliveryPushResult", ctx, "msg-1",
			models.DeliveryStatusAccepted, "gateway down", 1, mock.Anything).Return(nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		resp, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusAccepted, resp.Status)
		assert.True(t, resp.Queued)
	})

	t.Run("no push token means queued without relay", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(&models.User{Identity: "acct-2"}, nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(nil, nil)
		store.On("InsertDelivery", ctx, mock.Anything).Return(nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		resp, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.NoError(t, err)
		assert.True(t, resp.Queued)
		assert.Equal(t, models.DeliveryStatusAccepted, resp.Status)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("generates message id when absent", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(&models.User{Identity: "acct-2"}, nil)
		store.On("GetDeliveryByMessageID", ctx, mock.Anything).Return(nil, nil)
		store.On("InsertDelivery", ctx, mock.Anything).Return(nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		resp, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.MessageID)
	})

	t.Run("resend of known message id answers from the record", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(receiver(), nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").
			Return(&models.MessageDelivery{MessageID: "msg-1", SenderID: "acct-1", Status: models.DeliveryStatusPushed}, nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		resp, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusPushed, resp.Status)
		store.AssertNotCalled(t, "InsertDelivery", mock.Anything, mock.Anything)
	})

	t.Run("another sender's message id conflicts", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "acct-2").Return(receiver(), nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").
			Return(&models.MessageDelivery{MessageID: "msg-1", SenderID: "acct-3", Status: models.DeliveryStatusPushed}, nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		_, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-2",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		store.AssertNotCalled(t, "InsertDelivery", mock.Anything, mock.Anything)
	})

	t.Run("receiver resolved through alt identity then phone suffix", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetUserByIdentity", ctx, "+919876543210").Return(nil, nil)
		store.On("GetUserByAltIdentity", ctx, "+919876543210").Return(nil, nil)
		store.On("GetUserByPhoneSuffix", ctx, "9876543210").Return(&models.User{Identity: "acct-2"}, nil)
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(nil, nil)
		store.On("InsertDelivery", ctx, mock.MatchedBy(func(d *models.MessageDelivery) bool {
			return d.ReceiverID == "acct-2"
		})).Return(nil)

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		_, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "+919876543210",
			Body:           "hello",
			MessageID:      "msg-1",
		})
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("unresolvable receiver", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByIdentity", ctx, "ghost").Return(nil, nil)
		store.On("GetUserByAltIdentity", ctx, "ghost").Return(nil, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "ghost",
			Body:           "hello",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("self send rejected", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByIdentity", ctx, "acct-1").Return(&models.User{Identity: "acct-1"}, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.Send(ctx, "acct-1", models.SendMessageRequest{
			ConversationID: "acct-1_acct-2",
			ReceiverID:     "acct-1",
			Body:           "hello",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
	})
}

func TestSubmitReceipt(t *testing.T) {
	ctx := context.Background()

	pushedDelivery := func() *models.MessageDelivery {
		return &models.MessageDelivery{
			MessageID:      "msg-1",
			ConversationID: "acct-1_acct-2",
			SenderID:       "acct-1",
			ReceiverID:     "acct-2",
			Status:         models.DeliveryStatusPushed,
		}
	}

	t.Run("delivered receipt sets timestamp", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(pushedDelivery(), nil)
		store.On("UpdateDeliveryReceipt", ctx, "msg-1", models.DeliveryStatusDelivered,
			mock.Anything, (*time.Time)(nil), mock.Anything).Return(nil)
		store.On("GetUserByIdentity", mock.Anything, "acct-1").Return(nil, nil).Maybe()

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		delivery, err := svc.SubmitReceipt(ctx, "acct-2", "msg-1", models.DeliveryStatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusDelivered, delivery.Status)
		require.NotNil(t, delivery.DeliveredAt)
		assert.Nil(t, delivery.ReadAt)
	})

	t.Run("read receipt backfills delivered timestamp", func(t *testing.T) {
		store := &mockStore{}
		sender := &mockPushSender{}
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(pushedDelivery(), nil)
		store.On("UpdateDeliveryReceipt", ctx, "msg-1", models.DeliveryStatusRead,
			mock.Anything, mock.Anything, mock.Anything).Return(nil)
		store.On("GetUserByIdentity", mock.Anything, "acct-1").Return(nil, nil).Maybe()

		svc := NewDeliveryService(store, sender, time.Second, testLogger())
		delivery, err := svc.SubmitReceipt(ctx, "acct-2", "msg-1", models.DeliveryStatusRead)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusRead, delivery.Status)
		require.NotNil(t, delivery.DeliveredAt)
		require.NotNil(t, delivery.ReadAt)
	})

	t.Run("regressing receipt is ignored without error", func(t *testing.T) {
		read := pushedDelivery()
		read.Status = models.DeliveryStatusRead
		now := time.Now()
		read.DeliveredAt = &now
		read.ReadAt = &now

		store := &mockStore{}
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(read, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		delivery, err := svc.SubmitReceipt(ctx, "acct-2", "msg-1", models.DeliveryStatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusRead, delivery.Status)
		store.AssertNotCalled(t, "UpdateDeliveryReceipt",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("only the receiver may submit", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetDeliveryByMessageID", ctx, "msg-1").Return(pushedDelivery(), nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.SubmitReceipt(ctx, "acct-1", "msg-1", models.DeliveryStatusDelivered)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))
	})

	t.Run("only delivered and read are accepted", func(t *testing.T) {
		svc := NewDeliveryService(&mockStore{}, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.SubmitReceipt(ctx, "acct-2", "msg-1", models.DeliveryStatusFailed)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
	})

	t.Run("unknown message", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetDeliveryByMessageID", ctx, "msg-x").Return(nil, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.SubmitReceipt(ctx, "acct-2", "msg-x", models.DeliveryStatusDelivered)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestPendingSync(t *testing.T) {
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	t.Run("participant gets bounded page", func(t *testing.T) {
		store := &mockStore{}
		store.On("ListPendingSync", ctx, "acct-1_acct-2", "acct-2", since, 100).
			Return([]models.MessageDelivery{{MessageID: "msg-1"}}, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		deliveries, err := svc.PendingSync(ctx, "acct-2", "acct-1_acct-2", since, 0)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
	})

	t.Run("limit is clamped to the maximum", func(t *testing.T) {
		store := &mockStore{}
		store.On("ListPendingSync", ctx, "acct-1_acct-2", "acct-2", since, 500).
			Return([]models.MessageDelivery{}, nil)

		svc := NewDeliveryService(store, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.PendingSync(ctx, "acct-2", "acct-1_acct-2", since, 10000)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("non participant is refused", func(t *testing.T) {
		svc := NewDeliveryService(&mockStore{}, &mockPushSender{}, time.Second, testLogger())
		_, err := svc.PendingSync(ctx, "acct-3", "acct-1_acct-2", since, 10)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))
	})
}

func TestDeliveryExpiry(t *testing.T) {
	now := time.Now().UTC()

	delivered := deliveryExpiry(models.DeliveryStatusDelivered, now)
	pending := deliveryExpiry(models.DeliveryStatusAccepted, now)
	unknown := deliveryExpiry(models.DeliveryStatus("mystery"), now)

	assert.True(t, delivered.Before(pending))
	assert.True(t, pending.Before(unknown))
	assert.Equal(t, deliveryExpiry(models.DeliveryStatusRead, now), delivered)
	assert.Equal(t, deliveryExpiry(models.DeliveryStatusPushed, now), pending)
	assert.Equal(t, deliveryExpiry(models.DeliveryStatusFailed, now), pending)
}

func TestTruncateForPush(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncateForPush(short))

	long := strings.Repeat("a", 500)
	assert.Len(t, truncateForPush(long), 120)

	// Multi-byte text must never be cut mid-rune.
	multiByte := strings.Repeat("世界", 100)
	preview := truncateForPush(multiByte)
	assert.True(t, utf8.ValidString(preview))
	assert.LessOrEqual(t, len(preview), 120)
	assert.NotEmpty(t, preview)
}
