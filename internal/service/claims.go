package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	"github.com/Vast-Academy/account-android-app-backend/internal/database"
	apperrors "github.com/Vast-Academy/account-android-app-backend/internal/errors"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"
	"github.com/Vast-Academy/account-android-app-backend/internal/phone"
	"github.com/Vast-Academy/account-android-app-backend/internal/privacy"
	"github.com/Vast-Academy/account-android-app-backend/internal/validation"
)

// ClaimDatabaseService defines the storage operations claim handling needs.
type ClaimDatabaseService interface {
	CreateClaim(ctx context.Context, claim *models.PhoneClaim) error
	GetClaimByID(ctx context.Context, id int64) (*models.PhoneClaim, error)
	GetPendingClaim(ctx context.Context, lookupKey, requesterID, targetID string) (*models.PhoneClaim, error)
	HasBlockedClaim(ctx context.Context, lookupKey, requesterID, targetID string) (bool, error)
	CountRejectedClaims(ctx context.Context, lookupKey, requesterID, targetID string) (int, error)
	ListIncomingClaims(ctx context.Context, targetID string) ([]models.PhoneClaim, error)
	ResolveClaim(ctx context.Context, id int64, status models.ClaimStatus, rejectCount int, blockedByTarget bool) error
	ApprovePhoneTransfer(ctx context.Context, claim *models.PhoneClaim, displayPhone string) (bool, error)
	GetCurrentLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error)
	GetUserByNormalizedPhone(ctx context.Context, lookupKey string) (*models.User, error)
}

// ClaimService runs the phone-transfer claim workflow: an account asks for a
// number that currently belongs to someone else, and the owner approves,
// rejects, or blocks.
type ClaimService struct {
	db     ClaimDatabaseService
	logger *logrus.Logger
}

func NewClaimService(db ClaimDatabaseService, logger *logrus.Logger) *ClaimService {
	return &ClaimService{db: db, logger: logger}
}

// Request files a claim for a phone number against its current owner.
// Identical pending claims are returned as-is rather than duplicated. The
// returned flag tells the client whether to surface a block option to the
// target (the requester has been rejected repeatedly).
func (s *ClaimService) Request(ctx context.Context, requesterID, rawPhone string) (*models.PhoneClaim, bool, error) {
	if err := validation.ValidatePhoneNumber(rawPhone); err != nil {
		return nil, false, err
	}
	lookupKey, _ := phone.Normalize(rawPhone)
	if lookupKey == "" {
		return nil, false, apperrors.NewValidationError("phone", "phone number has too few digits")
	}

	targetID, err := s.resolveOwner(ctx, lookupKey)
	if err != nil {
		return nil, false, err
	}
	if targetID == "" {
		return nil, false, apperrors.NewNotFoundError("phone owner", privacy.MaskPhoneNumber(rawPhone))
	}
	if targetID == requesterID {
		return nil, false, apperrors.NewConflictError("phone", "you already own this number")
	}

	blocked, err := s.db.HasBlockedClaim(ctx, lookupKey, requesterID, targetID)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, apperrors.NewAuthorizationError("claim this number")
	}

	if existing, err := s.db.GetPendingClaim(ctx, lookupKey, requesterID, targetID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, s.offerBlock(existing.RejectCount), nil
	}

	rejectCount, err := s.db.CountRejectedClaims(ctx, lookupKey, requesterID, targetID)
	if err != nil {
		return nil, false, err
	}

	claim := &models.PhoneClaim{
		NormalizedPhone: lookupKey,
		RequesterID:     requesterID,
		TargetID:        targetID,
		Status:          models.ClaimStatusPending,
		RejectCount:     rejectCount,
	}
	if err := s.db.CreateClaim(ctx, claim); err != nil {
		// A concurrent identical request may have won the unique index race;
		// fall back to the idempotent path.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			existing, getErr := s.db.GetPendingClaim(ctx, lookupKey, requesterID, targetID)
			if getErr == nil && existing != nil {
				return existing, s.offerBlock(existing.RejectCount), nil
			}
		}
		return nil, false, err
	}

	metrics.IncrementCounter("claims_requested_total", nil, "Phone transfer claims filed")
	s.logger.WithFields(logrus.Fields{
		"claimId":   claim.ID,
		"requester": privacy.MaskIdentity(requesterID),
		"target":    privacy.MaskIdentity(targetID),
		"phone":     privacy.MaskPhoneNumber(rawPhone),
	}).Info("Phone claim filed")

	return claim, s.offerBlock(rejectCount), nil
}

// IncomingClaims lists the pending claims filed against the given owner.
func (s *ClaimService) IncomingClaims(ctx context.Context, targetID string) ([]models.PhoneClaim, error) {
	return s.db.ListIncomingClaims(ctx, targetID)
}

// Respond resolves a pending claim. Only the claim's target may respond.
// Approval requires a PIN or biometric proof and triggers the ownership
// transfer; the returned flag tells the client whether the previous owner was
// left without a phone on file.
func (s *ClaimService) Respond(ctx context.Context, callerID string, claimID int64, req models.RespondClaimRequest) (*models.PhoneClaim, bool, error) {
	if err := validation.ValidateClaimAction(req.Action); err != nil {
		return nil, false, err
	}

	claim, err := s.db.GetClaimByID(ctx, claimID)
	if err != nil {
		return nil, false, err
	}
	if claim == nil {
		return nil, false, apperrors.NewNotFoundError("claim", "")
	}
	if claim.TargetID != callerID {
		return nil, false, apperrors.NewAuthorizationError("respond to this claim")
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, false, apperrors.NewConflictError("claim", "claim has already been resolved")
	}

	previousOwnerMustSetPhone := false

	switch req.Action {
	case models.ClaimActionReject:
		err = s.db.ResolveClaim(ctx, claim.ID, models.ClaimStatusRejected, claim.RejectCount+1, false)
	case models.ClaimActionBlock:
		err = s.db.ResolveClaim(ctx, claim.ID, models.ClaimStatusBlocked, claim.RejectCount, true)
	case models.ClaimActionApprove:
		if !req.PinApproved && !req.BiometricApproved {
			return nil, false, apperrors.NewValidationError("approval", "approve requires PIN or biometric confirmation")
		}
		previousOwnerMustSetPhone, err = s.db.ApprovePhoneTransfer(ctx, claim, s.displayPhoneFor(ctx, claim.NormalizedPhone))
	}

	if err != nil {
		if errors.Is(err, database.ErrOwnerMismatch) {
			return nil, false, apperrors.NewConflictError("phone", "number no longer belongs to you")
		}
		if errors.Is(err, database.ErrClaimNotPending) {
			return nil, false, apperrors.NewConflictError("claim", "claim has already been resolved")
		}
		return nil, false, err
	}

	updated, err := s.db.GetClaimByID(ctx, claim.ID)
	if err != nil {
		return nil, false, err
	}

	metrics.IncrementCounter("claims_resolved_total",
		map[string]string{"action": string(req.Action)}, "Phone transfer claims resolved")
	s.logger.WithFields(logrus.Fields{
		"claimId": claim.ID,
		"action":  req.Action,
		"target":  privacy.MaskIdentity(callerID),
	}).Info("Phone claim resolved")

	return updated, previousOwnerMustSetPhone, nil
}

// resolveOwner finds who currently holds a number: the ledger's current link
// first, then the directly stored user phone for records predating the ledger.
func (s *ClaimService) resolveOwner(ctx context.Context, lookupKey string) (string, error) {
	link, err := s.db.GetCurrentLinkByPhone(ctx, lookupKey)
	if err != nil {
		return "", err
	}
	if link != nil {
		return link.AccountID, nil
	}

	user, err := s.db.GetUserByNormalizedPhone(ctx, lookupKey)
	if err != nil {
		return "", err
	}
	if user != nil {
		return user.Identity, nil
	}
	return "", nil
}

// displayPhoneFor prefers the display form recorded on the current link.
func (s *ClaimService) displayPhoneFor(ctx context.Context, lookupKey string) string {
	link, err := s.db.GetCurrentLinkByPhone(ctx, lookupKey)
	if err == nil && link != nil && link.DisplayPhone != "" {
		return link.DisplayPhone
	}
	return lookupKey
}

func (s *ClaimService) offerBlock(rejectCount int) bool {
	return rejectCount >= constants.ClaimRejectCountBlockThreshold
}
