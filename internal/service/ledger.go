package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/internal/phone"
	"github.com/Vast-Academy/account-android-app-backend/internal/privacy"
)

// PhoneLedger tracks which account currently owns each phone number.
type PhoneLedger interface {
	SetCurrentOwner(ctx context.Context, accountID, rawPhone, previousLookupKey string) (*models.PhoneLink, error)
	IsPhoneTaken(ctx context.Context, lookupKey, excludingAccountID string) (bool, error)
	FindOwnerHistory(ctx context.Context, lookupKey string) (current, lastClosed *models.PhoneLink, err error)
}

// LedgerDatabaseService defines the storage operations the ledger needs.
type LedgerDatabaseService interface {
	GetCurrentLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error)
	GetLastClosedLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error)
	CloseCurrentLinkForAccount(ctx context.Context, accountID, lookupKey string) error
	UpsertCurrentLink(ctx context.Context, accountID, lookupKey, displayPhone string) (*models.PhoneLink, error)
	CountOtherCurrentLinks(ctx context.Context, lookupKey, excludingAccountID string) (int, error)
	GetUserByNormalizedPhone(ctx context.Context, lookupKey string) (*models.User, error)
}

type LedgerService struct {
	db     LedgerDatabaseService
	logger *logrus.Logger
}

func NewLedgerService(db LedgerDatabaseService, logger *logrus.Logger) *LedgerService {
	return &LedgerService{db: db, logger: logger}
}

// SetCurrentOwner records that an account now holds a phone number. If the
// account previously held a different number its old link is closed first.
// An empty new lookup key means the account has no phone; no link is opened.
// Calling twice with the same arguments leaves state unchanged beyond
// timestamps.
func (s *LedgerService) SetCurrentOwner(ctx context.Context, accountID, rawPhone, previousLookupKey string) (*models.PhoneLink, error) {
	lookupKey, display := phone.Normalize(rawPhone)

	if previousLookupKey != "" && previousLookupKey != lookupKey {
		if err := s.db.CloseCurrentLinkForAccount(ctx, accountID, previousLookupKey); err != nil {
			return nil, fmt.Errorf("failed to close previous link: %w", err)
		}
	}

	if lookupKey == "" {
		s.logger.WithFields(logrus.Fields{
			"account": privacy.MaskIdentity(accountID),
		}).Debug("Account has no valid phone, no link opened")
		return nil, nil
	}

	link, err := s.db.UpsertCurrentLink(ctx, accountID, lookupKey, display)
	if err != nil {
		// The partial unique index is the arbiter for racing writers; the
		// loser gets a conflict, not an internal error.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.NewConflictError("phone", "number already belongs to another account")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"account": privacy.MaskIdentity(accountID),
		"phone":   privacy.MaskPhoneNumber(display),
	}).Info("Phone ownership recorded")
	return link, nil
}

// IsPhoneTaken reports whether any other account holds the number, checking
// both the ledger and the directly stored user phone. Historical records
// predate the ledger, so both sources must be clear before a phone change is
// accepted. An empty lookup key is never taken.
func (s *LedgerService) IsPhoneTaken(ctx context.Context, lookupKey, excludingAccountID string) (bool, error) {
	if lookupKey == "" {
		return false, nil
	}

	count, err := s.db.CountOtherCurrentLinks(ctx, lookupKey, excludingAccountID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	user, err := s.db.GetUserByNormalizedPhone(ctx, lookupKey)
	if err != nil {
		return false, err
	}
	if user != nil && user.Identity != excludingAccountID {
		return true, nil
	}

	return false, nil
}

// FindOwnerHistory returns the current link for a number, if any, plus the
// most recently closed one. Claim handling uses this to target the right
// owner and clients use it for "this number now belongs to someone else".
func (s *LedgerService) FindOwnerHistory(ctx context.Context, lookupKey string) (*models.PhoneLink, *models.PhoneLink, error) {
	if lookupKey == "" {
		return nil, nil, nil
	}

	current, err := s.db.GetCurrentLinkByPhone(ctx, lookupKey)
	if err != nil {
		return nil, nil, err
	}
	lastClosed, err := s.db.GetLastClosedLinkByPhone(ctx, lookupKey)
	if err != nil {
		return nil, nil, err
	}
	return current, lastClosed, nil
}
