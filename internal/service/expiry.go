package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
)

// ExpiryStore defines the storage operations the background sweeper needs.
type ExpiryStore interface {
	DeleteExpiredDeliveries(ctx context.Context) (int64, error)
	CleanupOldRecords(retentionDays int) error
}

// ExpiryScheduler physically removes expired delivery records on a short
// cadence and prunes old closed links and resolved claims on a daily one.
// The store has no native TTL; this sweeper is what bounds storage.
type ExpiryScheduler struct {
	store         ExpiryStore
	sweepInterval time.Duration
	retentionDays int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewExpiryScheduler(store ExpiryStore, sweepInterval time.Duration, retentionDays int, logger *logrus.Logger) *ExpiryScheduler {
	if sweepInterval <= 0 {
		sweepInterval = time.Duration(constants.DefaultExpirySweepIntervalMin) * time.Minute
	}
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	return &ExpiryScheduler{
		store:         store,
		sweepInterval: sweepInterval,
		retentionDays: retentionDays,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *ExpiryScheduler) Start(ctx context.Context) {
	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer retentionTicker.Stop()

	s.logger.WithFields(logrus.Fields{
		"sweepInterval": s.sweepInterval,
		"retentionDays": s.retentionDays,
	}).Info("Starting expiry scheduler")

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Expiry scheduler stop signal received, stopping")
			return
		case <-sweepTicker.C:
			s.sweep(ctx)
		case <-retentionTicker.C:
			s.runRetention()
		}
	}
}

func (s *ExpiryScheduler) Stop() {
	close(s.stopCh)
}

func (s *ExpiryScheduler) sweep(ctx context.Context) {
	removed, err := s.store.DeleteExpiredDeliveries(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sweep expired deliveries")
		return
	}
	if removed > 0 {
		metrics.AddToCounter("deliveries_expired_total", float64(removed), nil, "Delivery records removed by expiry")
		s.logger.WithField("removed", removed).Info("Swept expired deliveries")
	}
}

func (s *ExpiryScheduler) runRetention() {
	if err := s.store.CleanupOldRecords(s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old records")
		return
	}
	s.logger.WithField("retentionDays", s.retentionDays).Info("Completed retention cleanup")
}
