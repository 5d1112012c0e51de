package constants

import "time"

// Default server configuration values
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
)

// Default retry/backoff values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultDatabaseRetryAttempts = 3
)

// Default external gateway values
const (
	DefaultPushTimeoutSec = 10
	DefaultAuthTimeoutSec = 10
)

// Phone normalization bounds
const (
	PhoneLookupKeyDigits = 10
	MinPhoneDigits       = 8
)

// Delivery expiry horizons, keyed by delivery status. Synced records vanish
// quickly; unacknowledged ones linger long enough for offline catch-up.
const (
	DeliveryExpirySynced   = 10 * time.Minute
	DeliveryExpiryPending  = 24 * time.Hour
	DeliveryExpiryFallback = 21 * 24 * time.Hour
)

// Cleanup and monitoring defaults
const (
	DefaultExpirySweepIntervalMin = 5
	DefaultRetentionDays          = 30
	DefaultStaleCheckIntervalMin  = 10
	DefaultStaleThresholdMin      = 60
)

// Request bounds
const (
	MaxMessageBodyLength = 4096
	MaxMessageIDLength   = 128
	MaxUsernameLength    = 32
	DefaultSyncPageSize  = 100
	MaxSyncPageSize      = 500
	MaxHTTPBodyBytes     = 1 << 20
)

// Claim workflow
const (
	ClaimRejectCountBlockThreshold = 2
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)
