package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Vast-Academy/account-android-app-backend/internal/database"
	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

func TestClaimRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("files new claim seeded from prior rejections", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").
			Return(&models.PhoneLink{AccountID: "acct-1", IsCurrent: true}, nil)
		store.On("HasBlockedClaim", ctx, "9876543210", "acct-2", "acct-1").Return(false, nil)
		store.On("GetPendingClaim", ctx, "9876543210", "acct-2", "acct-1").Return(nil, nil)
		store.On("CountRejectedClaims", ctx, "9876543210", "acct-2", "acct-1").Return(2, nil)
		store.On("CreateClaim", ctx, mock.MatchedBy(func(c *models.PhoneClaim) bool {
			return c.RequesterID == "acct-2" && c.TargetID == "acct-1" &&
				c.Status == models.ClaimStatusPending && c.RejectCount == 2
		})).Return(nil)

		svc := NewClaimService(store, testLogger())
		claim, offerBlock, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.NoError(t, err)
		require.NotNil(t, claim)
		assert.True(t, offerBlock)
		store.AssertExpectations(t)
	})

	t.Run("identical pending claim returned idempotently", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").
			Return(&models.PhoneLink{AccountID: "acct-1", IsCurrent: true}, nil)
		store.On("HasBlockedClaim", ctx, "9876543210", "acct-2", "acct-1").Return(false, nil)
		existing := &models.PhoneClaim{ID: 7, Status: models.ClaimStatusPending, RejectCount: 0}
		store.On("GetPendingClaim", ctx, "9876543210", "acct-2", "acct-1").Return(existing, nil)

		svc := NewClaimService(store, testLogger())
		claim, offerBlock, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.NoError(t, err)
		assert.Equal(t, int64(7), claim.ID)
		assert.False(t, offerBlock)
		store.AssertNotCalled(t, "CreateClaim", mock.Anything, mock.Anything)
	})

	t.Run("no current owner", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").Return(nil, nil)
		store.On("GetUserByNormalizedPhone", ctx, "9876543210").Return(nil, nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("legacy owner found via user record", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").Return(nil, nil)
		store.On("GetUserByNormalizedPhone", ctx, "9876543210").
			Return(&models.User{Identity: "acct-1", NormalizedPhone: "9876543210"}, nil)
		store.On("HasBlockedClaim", ctx, "9876543210", "acct-2", "acct-1").Return(false, nil)
		store.On("GetPendingClaim", ctx, "9876543210", "acct-2", "acct-1").Return(nil, nil)
		store.On("CountRejectedClaims", ctx, "9876543210", "acct-2", "acct-1").Return(0, nil)
		store.On("CreateClaim", ctx, mock.Anything).Return(nil)

		svc := NewClaimService(store, testLogger())
		claim, offerBlock, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", claim.TargetID)
		assert.False(t, offerBlock)
	})

	t.Run("requester already owns the number", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").
			Return(&models.PhoneLink{AccountID: "acct-2", IsCurrent: true}, nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("blocked triple is refused", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").
			Return(&models.PhoneLink{AccountID: "acct-1", IsCurrent: true}, nil)
		store.On("HasBlockedClaim", ctx, "9876543210", "acct-2", "acct-1").Return(true, nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Request(ctx, "acct-2", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))
	})

	t.Run("invalid phone", func(t *testing.T) {
		svc := NewClaimService(&mockStore{}, testLogger())
		_, _, err := svc.Request(ctx, "acct-2", "12")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
	})
}

func TestClaimRespond(t *testing.T) {
	ctx := context.Background()

	pendingClaim := func() *models.PhoneClaim {
		return &models.PhoneClaim{
			ID:              5,
			NormalizedPhone: "9876543210",
			RequesterID:     "acct-2",
			TargetID:        "acct-1",
			Status:          models.ClaimStatusPending,
			RejectCount:     1,
		}
	}

	t.Run("reject increments counter", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil).Once()
		store.On("ResolveClaim", ctx, int64(5), models.ClaimStatusRejected, 2, false).Return(nil)
		resolved := pendingClaim()
		resolved.Status = models.ClaimStatusRejected
		resolved.RejectCount = 2
		store.On("GetClaimByID", ctx, int64(5)).Return(resolved, nil).Once()

		svc := NewClaimService(store, testLogger())
		claim, mustSetPhone, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{Action: models.ClaimActionReject})
		require.NoError(t, err)
		assert.Equal(t, models.ClaimStatusRejected, claim.Status)
		assert.Equal(t, 2, claim.RejectCount)
		assert.False(t, mustSetPhone)
	})

	t.Run("block is terminal for the triple", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil).Once()
		store.On("ResolveClaim", ctx, int64(5), models.ClaimStatusBlocked, 1, true).Return(nil)
		resolved := pendingClaim()
		resolved.Status = models.ClaimStatusBlocked
		resolved.BlockedByTarget = true
		store.On("GetClaimByID", ctx, int64(5)).Return(resolved, nil).Once()

		svc := NewClaimService(store, testLogger())
		claim, _, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{Action: models.ClaimActionBlock})
		require.NoError(t, err)
		assert.Equal(t, models.ClaimStatusBlocked, claim.Status)
		assert.True(t, claim.BlockedByTarget)
	})

	t.Run("approve requires pin or biometric proof", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{Action: models.ClaimActionApprove})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
		store.AssertNotCalled(t, "ApprovePhoneTransfer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("approve transfers ownership", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil).Once()
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").
			Return(&models.PhoneLink{AccountID: "acct-1", DisplayPhone: "+919876543210"}, nil)
		store.On("ApprovePhoneTransfer", ctx, mock.Anything, "+919876543210").Return(true, nil)
		approved := pendingClaim()
		approved.Status = models.ClaimStatusApproved
		store.On("GetClaimByID", ctx, int64(5)).Return(approved, nil).Once()

		svc := NewClaimService(store, testLogger())
		claim, mustSetPhone, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{
			Action:      models.ClaimActionApprove,
			PinApproved: true,
		})
		require.NoError(t, err)
		assert.Equal(t, models.ClaimStatusApproved, claim.Status)
		assert.True(t, mustSetPhone)
	})

	t.Run("owner mismatch surfaces as conflict", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil)
		store.On("GetCurrentLinkByPhone", ctx, "9876543210").Return(nil, nil)
		store.On("ApprovePhoneTransfer", ctx, mock.Anything, mock.Anything).
			Return(false, database.ErrOwnerMismatch)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{
			Action:            models.ClaimActionApprove,
			BiometricApproved: true,
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("only the target may respond", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(pendingClaim(), nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Respond(ctx, "acct-3", 5, models.RespondClaimRequest{Action: models.ClaimActionReject})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAuthorization, apperrors.GetCode(err))
	})

	t.Run("already resolved claim conflicts", func(t *testing.T) {
		resolved := pendingClaim()
		resolved.Status = models.ClaimStatusRejected
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(5)).Return(resolved, nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Respond(ctx, "acct-1", 5, models.RespondClaimRequest{Action: models.ClaimActionReject})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("unknown claim", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetClaimByID", ctx, int64(99)).Return(nil, nil)

		svc := NewClaimService(store, testLogger())
		_, _, err := svc.Respond(ctx, "acct-1", 99, models.RespondClaimRequest{Action: models.ClaimActionReject})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}
