package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

var (
	// ErrOwnerMismatch is returned when a claim approval finds the phone no
	// longer owned by the claim's target. The claim is rejected as a side
	// effect; callers should surface a conflict.
	ErrOwnerMismatch = errors.New("phone is no longer owned by the claim target")

	// ErrClaimNotPending is returned when a resolution races with another
	// and the claim has already left the pending state.
	ErrClaimNotPending = errors.New("claim is not pending")
)

func (d *Database) CreateClaim(ctx context.Context, claim *models.PhoneClaim) error {
	result, err := d.db.ExecContext(ctx, insertClaimQuery,
		claim.NormalizedPhone, claim.RequesterID, claim.TargetID,
		claim.Status, claim.RejectCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get claim id: %w", err)
	}
	claim.ID = id
	return nil
}

func (d *Database) GetClaimByID(ctx context.Context, id int64) (*models.PhoneClaim, error) {
	return scanClaimRow(d.db.QueryRowContext(ctx, selectClaimByIDQuery, id))
}

func (d *Database) GetPendingClaim(ctx context.Context, lookupKey, requesterID, targetID string) (*models.PhoneClaim, error) {
	return scanClaimRow(d.db.QueryRowContext(ctx, selectPendingClaimQuery, lookupKey, requesterID, targetID))
}

func (d *Database) HasBlockedClaim(ctx context.Context, lookupKey, requesterID, targetID string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, countBlockedClaimsQuery, lookupKey, requesterID, targetID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count blocked claims: %w", err)
	}
	return count > 0, nil
}

// CountRejectedClaims returns how many prior claims between the same parties
// ended rejected. New claims seed their reject count from this so rejection
// history survives across claim attempts.
func (d *Database) CountRejectedClaims(ctx context.Context, lookupKey, requesterID, targetID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, countRejectedClaimsQuery, lookupKey, requesterID, targetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rejected claims: %w", err)
	}
	return count, nil
}

func (d *Database) ListIncomingClaims(ctx context.Context, targetID string) ([]models.PhoneClaim, error) {
	rows, err := d.db.QueryContext(ctx, selectIncomingClaimsQuery, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var claims []models.PhoneClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}
	return claims, nil
}

// ResolveClaim moves a pending claim to rejected or blocked. Returns
// ErrClaimNotPending if the claim was already resolved.
func (d *Database) ResolveClaim(ctx context.Context, id int64, status models.ClaimStatus, rejectCount int, blockedByTarget bool) error {
	result, err := d.db.ExecContext(ctx, updateClaimResolutionQuery, status, rejectCount, blockedByTarget, id)
	if err != nil {
		return fmt.Errorf("failed to resolve claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrClaimNotPending
	}
	return nil
}

// ApprovePhoneTransfer performs the claim-approval side effect as one
// transaction. Write order inside the transaction is mandatory: the old
// owner's links are closed before the new owner's directory record is
// written, so a crash mid-sequence can never leave two accounts both
// believing they own the number.
//
// Returns whether the former owner's directory phone was cleared (the caller
// surfaces that as "previous owner must supply a new phone").
func (d *Database) ApprovePhoneTransfer(ctx context.Context, claim *models.PhoneClaim, displayPhone string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Re-verify the target still owns the phone; a concurrent change since
	// the claim was filed rejects the claim instead of transferring.
	current, err := scanLinkRow(tx.QueryRowContext(ctx, selectCurrentLinkByPhoneQuery, claim.NormalizedPhone))
	if err != nil {
		return false, err
	}
	if current == nil || current.AccountID != claim.TargetID {
		if _, err := tx.ExecContext(ctx, markClaimRejectedQuery, claim.ID); err != nil {
			return false, fmt.Errorf("failed to reject stale claim: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit claim rejection: %w", err)
		}
		return false, ErrOwnerMismatch
	}

	now := time.Now().UTC()

	// Close all current links for the phone. There should be exactly one;
	// closing by phone rather than by id also heals any duplicate rows that
	// predate the uniqueness constraint.
	if _, err := tx.ExecContext(ctx, closeCurrentLinksByPhoneQuery, now, claim.NormalizedPhone); err != nil {
		return false, fmt.Errorf("failed to close current links: %w", err)
	}

	// The requester abandons whatever number they held before; their old
	// current link has to close or that number stays owned forever.
	requester, err := scanUserRow(tx.QueryRowContext(ctx, selectUserByIdentityQuery, claim.RequesterID))
	if err != nil {
		return false, err
	}
	if requester != nil && requester.NormalizedPhone != "" && requester.NormalizedPhone != claim.NormalizedPhone {
		if _, err := tx.ExecContext(ctx, closeCurrentLinkForAccountQuery, now, claim.RequesterID, requester.NormalizedPhone); err != nil {
			return false, fmt.Errorf("failed to close requester's previous link: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, insertCurrentLinkQuery, claim.RequesterID, claim.NormalizedPhone, displayPhone, now); err != nil {
		return false, fmt.Errorf("failed to open link for requester: %w", err)
	}

	previousOwnerCleared := false
	target, err := scanUserRow(tx.QueryRowContext(ctx, selectUserByIdentityQuery, claim.TargetID))
	if err != nil {
		return false, err
	}
	if target != nil && target.NormalizedPhone == claim.NormalizedPhone {
		if _, err := tx.ExecContext(ctx, updateUserPhoneQuery, "", "", claim.TargetID); err != nil {
			return false, fmt.Errorf("failed to clear previous owner phone: %w", err)
		}
		previousOwnerCleared = true
	}

	if _, err := tx.ExecContext(ctx, updateUserPhoneQuery, displayPhone, claim.NormalizedPhone, claim.RequesterID); err != nil {
		return false, fmt.Errorf("failed to set requester phone: %w", err)
	}

	result, err := tx.ExecContext(ctx, markClaimApprovedQuery, claim.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark claim approved: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, ErrClaimNotPending
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit phone transfer: %w", err)
	}
	return previousOwnerCleared, nil
}

func scanClaimRow(row *sql.Row) (*models.PhoneClaim, error) {
	claim, err := scanClaim(row)
	if err == errNoClaim {
		return nil, nil
	}
	return claim, err
}

var errNoClaim = errors.New("no claim row")

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*models.PhoneClaim, error) {
	claim := &models.PhoneClaim{}
	err := row.Scan(
		&claim.ID,
		&claim.NormalizedPhone,
		&claim.RequesterID,
		&claim.TargetID,
		&claim.Status,
		&claim.RejectCount,
		&claim.BlockedByTarget,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errNoClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan phone claim: %w", err)
	}
	return claim, nil
}

