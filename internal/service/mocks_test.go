package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/pkg/push"
)

type mockStore struct {
	mock.Mock
}

// users

func (m *mockStore) GetUserByIdentity(ctx context.Context, identity string) (*models.User, error) {
	args := m.Called(ctx, identity)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetUserByAltIdentity(ctx context.Context, altIdentity string) (*models.User, error) {
	args := m.Called(ctx, altIdentity)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetUserByNormalizedPhone(ctx context.Context, lookupKey string) (*models.User, error) {
	args := m.Called(ctx, lookupKey)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetUserByPhoneSuffix(ctx context.Context, suffix string) (*models.User, error) {
	args := m.Called(ctx, suffix)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateUserPhone(ctx context.Context, identity, phone, normalizedPhone string) error {
	args := m.Called(ctx, identity, phone, normalizedPhone)
	return args.Error(0)
}

// phone links

func (m *mockStore) GetCurrentLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error) {
	args := m.Called(ctx, lookupKey)
	if l := args.Get(0); l != nil {
		return l.(*models.PhoneLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetLastClosedLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error) {
	args := m.Called(ctx, lookupKey)
	if l := args.Get(0); l != nil {
		return l.(*models.PhoneLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CloseCurrentLinkForAccount(ctx context.Context, accountID, lookupKey string) error {
	args := m.Called(ctx, accountID, lookupKey)
	return args.Error(0)
}

func (m *mockStore) UpsertCurrentLink(ctx context.Context, accountID, lookupKey, displayPhone string) (*models.PhoneLink, error) {
	args := m.Called(ctx, accountID, lookupKey, displayPhone)
	if l := args.Get(0); l != nil {
		return l.(*models.PhoneLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CountOtherCurrentLinks(ctx context.Context, lookupKey, excludingAccountID string) (int, error) {
	args := m.Called(ctx, lookupKey, excludingAccountID)
	return args.Int(0), args.Error(1)
}

// claims

func (m *mockStore) CreateClaim(ctx context.Context, claim *models.PhoneClaim) error {
	args := m.Called(ctx, claim)
	return args.Error(0)
}

func (m *mockStore) GetClaimByID(ctx context.Context, id int64) (*models.PhoneClaim, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.PhoneClaim), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetPendingClaim(ctx context.Context, lookupKey, requesterID, targetID string) (*models.PhoneClaim, error) {
	args := m.Called(ctx, lookupKey, requesterID, targetID)
	if c := args.Get(0); c != nil {
		return c.(*models.PhoneClaim), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) HasBlockedClaim(ctx context.Context, lookupKey, requesterID, targetID string) (bool, error) {
	args := m.Called(ctx, lookupKey, requesterID, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CountRejectedClaims(ctx context.Context, lookupKey, requesterID, targetID string) (int, error) {
	args := m.Called(ctx, lookupKey, requesterID, targetID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListIncomingClaims(ctx context.Context, targetID string) ([]models.PhoneClaim, error) {
	args := m.Called(ctx, targetID)
	if c := args.Get(0); c != nil {
		return c.([]models.PhoneClaim), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ResolveClaim(ctx context.Context, id int64, status models.ClaimStatus, rejectCount int, blockedByTarget bool) error {
	args := m.Called(ctx, id, status, rejectCount, blockedByTarget)
	return args.Error(0)
}

func (m *mockStore) ApprovePhoneTransfer(ctx context.Context, claim *models.PhoneClaim, displayPhone string) (bool, error) {
	args := m.Called(ctx, claim, displayPhone)
	return args.Bool(0), args.Error(1)
}

// deliveries

func (m *mockStore) InsertDelivery(ctx context.Context, delivery *models.MessageDelivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

func (m *mockStore) GetDeliveryByMessageID(ctx context.Context, messageID string) (*models.MessageDelivery, error) {
	args := m.Called(ctx, messageID)
	if d := args.Get(0); d != nil {
		return d.(*models.MessageDelivery), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateDeliveryPushResult(ctx context.Context, messageID string, status models.DeliveryStatus, lastError string, retryIncrement int, expiresAt time.Time) error {
	args := m.Called(ctx, messageID, status, lastError, retryIncrement, expiresAt)
	return args.Error(0)
}

func (m *mockStore) UpdateDeliveryReceipt(ctx context.Context, messageID string, status models.DeliveryStatus, deliveredAt, readAt *time.Time, expiresAt time.Time) error {
	args := m.Called(ctx, messageID, status, deliveredAt, readAt, expiresAt)
	return args.Error(0)
}

func (m *mockStore) ListPendingSync(ctx context.Context, conversationID, receiverID string, since time.Time, limit int) ([]models.MessageDelivery, error) {
	args := m.Called(ctx, conversationID, receiverID, since, limit)
	if d := args.Get(0); d != nil {
		return d.([]models.MessageDelivery), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) DeleteExpiredDeliveries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) GetStaleDeliveryCount(ctx context.Context, threshold time.Duration) (int, error) {
	args := m.Called(ctx, threshold)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CleanupOldRecords(retentionDays int) error {
	args := m.Called(retentionDays)
	return args.Error(0)
}

type mockPushSender struct {
	mock.Mock
}

func (m *mockPushSender) Send(ctx context.Context, token string, payload push.Payload) error {
	args := m.Called(ctx, token, payload)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) SetCurrentOwner(ctx context.Context, accountID, rawPhone, previousLookupKey string) (*models.PhoneLink, error) {
	args := m.Called(ctx, accountID, rawPhone, previousLookupKey)
	if l := args.Get(0); l != nil {
		return l.(*models.PhoneLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) IsPhoneTaken(ctx context.Context, lookupKey, excludingAccountID string) (bool, error) {
	args := m.Called(ctx, lookupKey, excludingAccountID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) FindOwnerHistory(ctx context.Context, lookupKey string) (*models.PhoneLink, *models.PhoneLink, error) {
	args := m.Called(ctx, lookupKey)
	var current, lastClosed *models.PhoneLink
	if l := args.Get(0); l != nil {
		current = l.(*models.PhoneLink)
	}
	if l := args.Get(1); l != nil {
		lastClosed = l.(*models.PhoneLink)
	}
	return current, lastClosed, args.Error(2)
}
