package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Vast-Academy/account-android-app-backend/internal/migrations"
	"github.com/Vast-Academy/account-android-app-backend/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the single store behind the ownership ledger, the claim
// workflow, the delivery tracker and the user directory. SQLite serializes
// individual writes; multi-row sequences that must be atomic (claim approval)
// run inside explicit transactions.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// User directory operations

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, upsertUserQuery,
			user.Identity, user.AltIdentity, user.Username, user.DisplayName,
			user.Phone, user.NormalizedPhone, user.PushToken,
		)
		if err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		return nil
	}, "save user")
}

func (d *Database) GetUserByIdentity(ctx context.Context, identity string) (*models.User, error) {
	return scanUserRow(d.db.QueryRowContext(ctx, selectUserByIdentityQuery, identity))
}

func (d *Database) GetUserByAltIdentity(ctx context.Context, altIdentity string) (*models.User, error) {
	if altIdentity == "" {
		return nil, nil
	}
	return scanUserRow(d.db.QueryRowContext(ctx, selectUserByAltIdentityQuery, altIdentity))
}

func (d *Database) GetUserByNormalizedPhone(ctx context.Context, lookupKey string) (*models.User, error) {
	if lookupKey == "" {
		return nil, nil
	}
	return scanUserRow(d.db.QueryRowContext(ctx, selectUserByNormalizedPhoneQuery, lookupKey))
}

// GetUserByPhoneSuffix matches the trailing digits of a stored normalized
// phone. Legacy fallback for receiver resolution only; the ledger is the
// authoritative ownership source.
func (d *Database) GetUserByPhoneSuffix(ctx context.Context, suffix string) (*models.User, error) {
	if suffix == "" {
		return nil, nil
	}
	return scanUserRow(d.db.QueryRowContext(ctx, selectUserByPhoneSuffixQuery, suffix))
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, nil
	}
	return scanUserRow(d.db.QueryRowContext(ctx, selectUserByUsernameQuery, username))
}

func (d *Database) UpdateUserPhone(ctx context.Context, identity, phone, normalizedPhone string) error {
	result, err := d.db.ExecContext(ctx, updateUserPhoneQuery, phone, normalizedPhone, identity)
	if err != nil {
		return fmt.Errorf("failed to update user phone: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no user found with identity: %s", identity)
	}
	return nil
}

func scanUserRow(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Identity,
		&user.AltIdentity,
		&user.Username,
		&user.DisplayName,
		&user.Phone,
		&user.NormalizedPhone,
		&user.PushToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// Phone link operations

func (d *Database) GetCurrentLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error) {
	if lookupKey == "" {
		return nil, nil
	}
	return scanLinkRow(d.db.QueryRowContext(ctx, selectCurrentLinkByPhoneQuery, lookupKey))
}

func (d *Database) GetCurrentLinkForAccount(ctx context.Context, accountID, lookupKey string) (*models.PhoneLink, error) {
	if lookupKey == "" {
		return nil, nil
	}
	return scanLinkRow(d.db.QueryRowContext(ctx, selectCurrentLinkForAccountQuery, accountID, lookupKey))
}

func (d *Database) GetLastClosedLinkByPhone(ctx context.Context, lookupKey string) (*models.PhoneLink, error) {
	if lookupKey == "" {
		return nil, nil
	}
	return scanLinkRow(d.db.QueryRowContext(ctx, selectLastClosedLinkByPhoneQuery, lookupKey))
}

// CloseCurrentLinkForAccount closes the account's current link for the given
// key, if one exists. Closing a link that is already closed is a no-op.
func (d *Database) CloseCurrentLinkForAccount(ctx context.Context, accountID, lookupKey string) error {
	if lookupKey == "" {
		return nil
	}
	_, err := d.db.ExecContext(ctx, closeCurrentLinkForAccountQuery, time.Now().UTC(), accountID, lookupKey)
	if err != nil {
		return fmt.Errorf("failed to close current link: %w", err)
	}
	return nil
}

// UpsertCurrentLink ensures a current link exists for (accountID, lookupKey).
// If another account currently holds the phone, the partial unique index on
// phone_links rejects the insert and the error is returned to the caller.
func (d *Database) UpsertCurrentLink(ctx context.Context, accountID, lookupKey, displayPhone string) (*models.PhoneLink, error) {
	existing, err := d.GetCurrentLinkForAccount(ctx, accountID, lookupKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.DisplayPhone != displayPhone {
			if _, err := d.db.ExecContext(ctx, updateLinkDisplayPhoneQuery, displayPhone, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to update display phone: %w", err)
			}
			existing.DisplayPhone = displayPhone
		}
		return existing, nil
	}

	now := time.Now().UTC()
	if _, err := d.db.ExecContext(ctx, insertCurrentLinkQuery, accountID, lookupKey, displayPhone, now); err != nil {
		return nil, fmt.Errorf("failed to create current link: %w", err)
	}
	return d.GetCurrentLinkForAccount(ctx, accountID, lookupKey)
}

func (d *Database) CountOtherCurrentLinks(ctx context.Context, lookupKey, excludingAccountID string) (int, error) {
	if lookupKey == "" {
		return 0, nil
	}
	var count int
	err := d.db.QueryRowContext(ctx, countOtherCurrentLinksQuery, lookupKey, excludingAccountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count current links: %w", err)
	}
	return count, nil
}

func scanLinkRow(row *sql.Row) (*models.PhoneLink, error) {
	link := &models.PhoneLink{}
	var validTo sql.NullTime
	err := row.Scan(
		&link.ID,
		&link.AccountID,
		&link.NormalizedPhone,
		&link.DisplayPhone,
		&link.IsCurrent,
		&link.ValidFrom,
		&validTo,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan phone link: %w", err)
	}
	if validTo.Valid {
		t := validTo.Time
		link.ValidTo = &t
	}
	return link, nil
}

// CleanupOldRecords removes closed links and resolved claims older than the
// retention window. Blocked claims are kept: they are terminal state, not
// history.
func (d *Database) CleanupOldRecords(retentionDays int) error {
	if _, err := d.db.Exec(deleteOldClosedLinksQuery, retentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old phone links: %w", err)
	}
	if _, err := d.db.Exec(deleteOldResolvedClaimsQuery, retentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old phone claims: %w", err)
	}
	return nil
}
