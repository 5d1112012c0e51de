package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Vast-Academy/account-android-app-backend/internal/models"
)

// InsertDelivery persists a new delivery record. The body is encrypted at
// rest when encryption is enabled; nothing else needs to be queryable by body.
func (d *Database) InsertDelivery(ctx context.Context, delivery *models.MessageDelivery) error {
	encryptedBody, err := d.encryptor.EncryptIfEnabled(delivery.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt message body: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, insertDeliveryQuery,
			delivery.MessageID,
			delivery.ConversationID,
			delivery.SenderID,
			delivery.ReceiverID,
			encryptedBody,
			delivery.OriginTimestamp.UTC(),
			delivery.Status,
			delivery.LastError,
			delivery.RetryCount,
			delivery.ExpiresAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert delivery: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get delivery id: %w", err)
		}
		delivery.ID = id
		return nil
	}, "insert delivery")
}

func (d *Database) GetDeliveryByMessageID(ctx context.Context, messageID string) (*models.MessageDelivery, error) {
	delivery, err := d.scanDelivery(d.db.QueryRowContext(ctx, selectDeliveryByMessageIDQuery, messageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// UpdateDeliveryPushResult records the outcome of a push relay attempt.
func (d *Database) UpdateDeliveryPushResult(ctx context.Context, messageID string, status models.DeliveryStatus, lastError string, retryIncrement int, expiresAt time.Time) error {
	result, err := d.db.ExecContext(ctx, updateDeliveryPushResultQuery,
		status, lastError, retryIncrement, expiresAt.UTC(), messageID)
	if err != nil {
		return fmt.Errorf("failed to update push result: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no delivery found with message ID: %s", messageID)
	}
	return nil
}

// UpdateDeliveryReceipt applies a receiver-submitted receipt. A successful
// receipt clears any stored relay error.
func (d *Database) UpdateDeliveryReceipt(ctx context.Context, messageID string, status models.DeliveryStatus, deliveredAt, readAt *time.Time, expiresAt time.Time) error {
	result, err := d.db.ExecContext(ctx, updateDeliveryReceiptQuery,
		status, nullableTime(deliveredAt), nullableTime(readAt), expiresAt.UTC(), messageID)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no delivery found with message ID: %s", messageID)
	}
	return nil
}

// ListPendingSync returns the receiver's non-failed deliveries in a
// conversation newer than the cursor, oldest first, capped at limit.
func (d *Database) ListPendingSync(ctx context.Context, conversationID, receiverID string, since time.Time, limit int) ([]models.MessageDelivery, error) {
	rows, err := d.db.QueryContext(ctx, selectPendingSyncQuery, conversationID, receiverID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sync: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deliveries []models.MessageDelivery
	for rows.Next() {
		delivery, err := d.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return deliveries, nil
}

// DeleteExpiredDeliveries removes records whose expiry horizon has passed,
// independent of business status.
func (d *Database) DeleteExpiredDeliveries(ctx context.Context) (int64, error) {
	result, err := d.db.ExecContext(ctx, deleteExpiredDeliveriesQuery, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired deliveries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// GetStaleDeliveryCount counts records stuck in accepted longer than the
// threshold, for the delivery monitor gauge.
func (d *Database) GetStaleDeliveryCount(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	var count int
	err := d.db.QueryRowContext(ctx, countStaleDeliveriesQuery, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale deliveries: %w", err)
	}
	return count, nil
}

func (d *Database) scanDelivery(row rowScanner) (*models.MessageDelivery, error) {
	delivery := &models.MessageDelivery{}
	var body string
	var deliveredAt, readAt sql.NullTime

	err := row.Scan(
		&delivery.ID,
		&delivery.MessageID,
		&delivery.ConversationID,
		&delivery.SenderID,
		&delivery.ReceiverID,
		&body,
		&delivery.OriginTimestamp,
		&delivery.Status,
		&delivery.LastError,
		&delivery.RetryCount,
		&deliveredAt,
		&readAt,
		&delivery.ExpiresAt,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}

	delivery.Body, err = d.encryptor.DecryptIfEnabled(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message body: %w", err)
	}

	if deliveredAt.Valid {
		t := deliveredAt.Time
		delivery.DeliveredAt = &t
	}
	if readAt.Valid {
		t := readAt.Time
		delivery.ReadAt = &t
	}
	return delivery, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
