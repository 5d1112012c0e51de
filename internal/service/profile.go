package service

import (
	"context"

	"github.com/sirupsen/logrus"

	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/internal/phone"
	"github.com/Vast-Academy/account-android-app-backend/internal/privacy"
	"github.com/Vast-Academy/account-android-app-backend/internal/validation"
)

// ProfileDatabaseService defines the storage operations profile sync needs.
type ProfileDatabaseService interface {
	GetUserByIdentity(ctx context.Context, identity string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserPhone(ctx context.Context, identity, phone, normalizedPhone string) error
}

// ProfileService syncs directory phone changes into the ownership ledger.
// The directory record is authoritative for "what phone does this account
// say it has"; the ledger records who holds it. This sync is also what heals
// the ledger after a crash left a phone transiently unowned.
type ProfileService struct {
	db     ProfileDatabaseService
	ledger PhoneLedger
	logger *logrus.Logger
}

func NewProfileService(db ProfileDatabaseService, ledger PhoneLedger, logger *logrus.Logger) *ProfileService {
	return &ProfileService{db: db, ledger: ledger, logger: logger}
}

// UpdatePhone validates a new phone for the caller, refusing numbers already
// held by another account, claims it in the ledger, then records it on the
// directory record.
func (s *ProfileService) UpdatePhone(ctx context.Context, accountID, rawPhone string) (*models.UpdatePhoneResponse, error) {
	if err := validation.ValidatePhoneNumber(rawPhone); err != nil {
		return nil, err
	}
	lookupKey, display := phone.Normalize(rawPhone)
	if lookupKey == "" {
		return nil, apperrors.NewValidationError("phone", "phone number has too few digits")
	}

	user, err := s.db.GetUserByIdentity(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("account", privacy.MaskIdentity(accountID))
	}

	taken, err := s.ledger.IsPhoneTaken(ctx, lookupKey, accountID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.NewConflictError("phone", "number already belongs to another account")
	}

	// Ledger first: if a racing writer wins the current-link uniqueness
	// race, the loser's directory record must not be left holding the
	// winner's number.
	if _, err := s.ledger.SetCurrentOwner(ctx, accountID, rawPhone, user.NormalizedPhone); err != nil {
		return nil, err
	}
	if err := s.db.UpdateUserPhone(ctx, accountID, display, lookupKey); err != nil {
		return nil, err
	}

	metrics.IncrementCounter("profile_phone_updates_total", nil, "Profile phone changes")
	s.logger.WithFields(logrus.Fields{
		"account": privacy.MaskIdentity(accountID),
		"phone":   privacy.MaskPhoneNumber(display),
	}).Info("Profile phone updated")

	return &models.UpdatePhoneResponse{
		Phone:           display,
		NormalizedPhone: lookupKey,
	}, nil
}

// IsUsernameAvailable reports whether a username is free to claim. The store
// enforces uniqueness; this is the cheap read used by the availability check.
func (s *ProfileService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return false, err
	}

	existing, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}
