package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

func TestUpdatePhone(t *testing.T) {
	ctx := context.Background()

	t.Run("updates directory and syncs ledger", func(t *testing.T) {
		store := &mockStore{}
		ledger := &mockLedger{}
		store.On("GetUserByIdentity", ctx, "acct-1").
			Return(&models.User{Identity: "acct-1", NormalizedPhone: "1111111111"}, nil)
		ledger.On("IsPhoneTaken", ctx, "9876543210", "acct-1").Return(false, nil)
		store.On("UpdateUserPhone", ctx, "acct-1", "+919876543210", "9876543210").Return(nil)
		ledger.On("SetCurrentOwner", ctx, "acct-1", "+919876543210", "1111111111").
			Return(&models.PhoneLink{ID: 1}, nil)

		svc := NewProfileService(store, ledger, testLogger())
		resp, err := svc.UpdatePhone(ctx, "acct-1", "+919876543210")
		require.NoError(t, err)
		assert.Equal(t, "+919876543210", resp.Phone)
		assert.Equal(t, "9876543210", resp.NormalizedPhone)
		store.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})

	t.Run("taken phone conflicts", func(t *testing.T) {
		store := &mockStore{}
		ledger := &mockLedger{}
		store.On("GetUserByIdentity", ctx, "acct-1").
			Return(&models.User{Identity: "acct-1"}, nil)
		ledger.On("IsPhoneTaken", ctx, "9876543210", "acct-1").Return(true, nil)

		svc := NewProfileService(store, ledger, testLogger())
		_, err := svc.UpdatePhone(ctx, "acct-1", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		store.AssertNotCalled(t, "UpdateUserPhone", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the ledger race leaves the directory untouched", func(t *testing.T) {
		store := &mockStore{}
		ledger := &mockLedger{}
		store.On("GetUserByIdentity", ctx, "acct-1").
			Return(&models.User{Identity: "acct-1", NormalizedPhone: "1111111111"}, nil)
		ledger.On("IsPhoneTaken", ctx, "9876543210", "acct-1").Return(false, nil)
		ledger.On("SetCurrentOwner", ctx, "acct-1", "+919876543210", "1111111111").
			Return(nil, apperrors.NewConflictError("phone", "number already belongs to another account"))

		svc := NewProfileService(store, ledger, testLogger())
		_, err := svc.UpdatePhone(ctx, "acct-1", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
		store.AssertNotCalled(t, "UpdateUserPhone", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid phone", func(t *testing.T) {
		svc := NewProfileService(&mockStore{}, &mockLedger{}, testLogger())
		_, err := svc.UpdatePhone(ctx, "acct-1", "12ab")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
	})

	t.Run("unknown account", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByIdentity", ctx, "ghost").Return(nil, nil)

		svc := NewProfileService(store, &mockLedger{}, testLogger())
		_, err := svc.UpdatePhone(ctx, "ghost", "+919876543210")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestIsUsernameAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("free username", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByUsername", ctx, "alice").Return(nil, nil)

		svc := NewProfileService(store, &mockLedger{}, testLogger())
		available, err := svc.IsUsernameAvailable(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("taken username", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByUsername", ctx, "alice").Return(&models.User{Identity: "acct-1"}, nil)

		svc := NewProfileService(store, &mockLedger{}, testLogger())
		available, err := svc.IsUsernameAvailable(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("invalid username", func(t *testing.T) {
		svc := NewProfileService(&mockStore{}, &mockLedger{}, testLogger())
		_, err := svc.IsUsernameAvailable(ctx, "bad name!")
		require.Error(t, err)
	})
}
