package database

// User queries
const (
	upsertUserQuery = `
		INSERT INTO users (
			identity, alt_identity, username, display_name,
			phone, normalized_phone, push_token
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			alt_identity = excluded.alt_identity,
			username = excluded.username,
			display_name = excluded.display_name,
			phone = excluded.phone,
			normalized_phone = excluded.normalized_phone,
			push_token = excluded.push_token
	`

	selectUserColumns = `
		SELECT id, identity, COALESCE(alt_identity, ''), COALESCE(username, ''),
		       COALESCE(display_name, ''), COALESCE(phone, ''),
		       COALESCE(normalized_phone, ''), COALESCE(push_token, ''),
		       created_at, updated_at
		FROM users
	`

	selectUserByIdentityQuery        = selectUserColumns + ` WHERE identity = ?`
	selectUserByAltIdentityQuery     = selectUserColumns + ` WHERE alt_identity = ?`
	selectUserByNormalizedPhoneQuery = selectUserColumns + ` WHERE normalized_phone = ? AND normalized_phone != ''`
	selectUserByPhoneSuffixQuery     = selectUserColumns + `
		WHERE normalized_phone != '' AND normalized_phone LIKE '%' || ?
		ORDER BY id LIMIT 1`
	selectUserByUsernameQuery = selectUserColumns + ` WHERE username = ?`

	updateUserPhoneQuery = `
		UPDATE users
		SET phone = ?, normalized_phone = ?
		WHERE identity = ?
	`
)

// Phone link queries
const (
	selectLinkColumns = `
		SELECT id, account_id, normalized_phone, display_phone, is_current,
		       valid_from, valid_to, created_at, updated_at
		FROM phone_links
	`

	selectCurrentLinkByPhoneQuery = selectLinkColumns + `
		WHERE normalized_phone = ? AND is_current`

	selectCurrentLinkForAccountQuery = selectLinkColumns + `
		WHERE account_id = ? AND normalized_phone = ? AND is_current`

	selectLastClosedLinkByPhoneQuery = selectLinkColumns + `
		WHERE normalized_phone = ? AND NOT is_current
		ORDER BY valid_to DESC
		LIMIT 1`

	closeCurrentLinkForAccountQuery = `
		UPDATE phone_links
		SET is_current = FALSE, valid_to = ?
		WHERE account_id = ? AND normalized_phone = ? AND is_current
	`

	closeCurrentLinksByPhoneQuery = `
		UPDATE phone_links
		SET is_current = FALSE, valid_to = ?
		WHERE normalized_phone = ? AND is_current
	`

	insertCurrentLinkQuery = `
		INSERT INTO phone_links (
			account_id, normalized_phone, display_phone, is_current, valid_from
		) VALUES (?, ?, ?, TRUE, ?)
	`

	updateLinkDisplayPhoneQuery = `
		UPDATE phone_links
		SET display_phone = ?
		WHERE id = ?
	`

	countOtherCurrentLinksQuery = `
		SELECT COUNT(*)
		FROM phone_links
		WHERE normalized_phone = ? AND is_current AND account_id != ?
	`

	deleteOldClosedLinksQuery = `
		DELETE FROM phone_links
		WHERE NOT is_current AND valid_to < datetime('now', '-' || ? || ' days')
	`
)

// Phone claim queries
const (
	insertClaimQuery = `
		INSERT INTO phone_claims (
			normalized_phone, requester_id, target_id, status, reject_count
		) VALUES (?, ?, ?, ?, ?)
	`

	selectClaimColumns = `
		SELECT id, normalized_phone, requester_id, target_id, status,
		       reject_count, blocked_by_target, created_at, updated_at
		FROM phone_claims
	`

	selectClaimByIDQuery = selectClaimColumns + ` WHERE id = ?`

	selectPendingClaimQuery = selectClaimColumns + `
		WHERE normalized_phone = ? AND requester_id = ? AND target_id = ?
		  AND status = 'pending'`

	countBlockedClaimsQuery = `
		SELECT COUNT(*)
		FROM phone_claims
		WHERE normalized_phone = ? AND requester_id = ? AND target_id = ?
		  AND status = 'blocked'
	`

	countRejectedClaimsQuery = `
		SELECT COUNT(*)
		FROM phone_claims
		WHERE normalized_phone = ? AND requester_id = ? AND target_id = ?
		  AND status = 'rejected'
	`

	selectIncomingClaimsQuery = selectClaimColumns + `
		WHERE target_id = ? AND status = 'pending'
		ORDER BY created_at`

	updateClaimResolutionQuery = `
		UPDATE phone_claims
		SET status = ?, reject_count = ?, blocked_by_target = ?
		WHERE id = ? AND status = 'pending'
	`

	markClaimApprovedQuery = `
		UPDATE phone_claims
		SET status = 'approved'
		WHERE id = ? AND status = 'pending'
	`

	markClaimRejectedQuery = `
		UPDATE phone_claims
		SET status = 'rejected'
		WHERE id = ? AND status = 'pending'
	`

	deleteOldResolvedClaimsQuery = `
		DELETE FROM phone_claims
		WHERE status IN ('approved', 'rejected')
		  AND updated_at < datetime('now', '-' || ? || ' days')
	`
)

// Message delivery queries
const (
	insertDeliveryQuery = `
		INSERT INTO message_deliveries (
			message_id, conversation_id, sender_id, receiver_id, body,
			origin_timestamp, status, last_error, retry_count, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectDeliveryColumns = `
		SELECT id, message_id, conversation_id, sender_id, receiver_id, body,
		       origin_timestamp, status, COALESCE(last_error, ''), retry_count,
		       delivered_at, read_at, expires_at, created_at, updated_at
		FROM message_deliveries
	`

	selectDeliveryByMessageIDQuery = selectDeliveryColumns + ` WHERE message_id = ?`

	updateDeliveryPushResultQuery = `
		UPDATE message_deliveries
		SET status = ?, last_error = ?, retry_count = retry_count + ?, expires_at = ?
		WHERE message_id = ?
	`

	updateDeliveryReceiptQuery = `
		UPDATE message_deliveries
		SET status = ?, last_error = '', delivered_at = ?, read_at = ?, expires_at = ?
		WHERE message_id = ?
	`

	selectPendingSyncQuery = selectDeliveryColumns + `
		WHERE conversation_id = ? AND receiver_id = ? AND status != 'failed'
		  AND origin_timestamp > ?
		ORDER BY origin_timestamp, id
		LIMIT ?`

	deleteExpiredDeliveriesQuery = `
		DELETE FROM message_deliveries
		WHERE expires_at <= ?
	`

	countStaleDeliveriesQuery = `
		SELECT COUNT(*)
		FROM message_deliveries
		WHERE status = 'accepted' AND created_at < ?
	`
)
