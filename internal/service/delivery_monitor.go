package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Vast-Academy/account-android-app-backend/internal/metrics"
)

type StaleDeliveryCounter interface {
	GetStaleDeliveryCount(ctx context.Context, threshold time.Duration) (int, error)
}

// DeliveryMonitor periodically counts deliveries stuck in accepted status
// beyond the stale threshold and publishes the count as a gauge. Stuck
// deliveries usually mean the push gateway is down or tokens have gone bad.
type DeliveryMonitor struct {
	db             StaleDeliveryCounter
	checkInterval  time.Duration
	staleThreshold time.Duration
	logger         *logrus.Logger
	stopCh         chan struct{}
}

func NewDeliveryMonitor(db StaleDeliveryCounter, checkInterval, staleThreshold time.Duration, logger *logrus.Logger) *DeliveryMonitor {
	return &DeliveryMonitor{
		db:             db,
		checkInterval:  checkInterval,
		staleThreshold: staleThreshold,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

func (m *DeliveryMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithFields(logrus.Fields{
		"check_interval":  m.checkInterval,
		"stale_threshold": m.staleThreshold,
	}).Info("Starting delivery monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkStaleDeliveries(ctx)
		}
	}
}

func (m *DeliveryMonitor) Stop() {
	close(m.stopCh)
}

func (m *DeliveryMonitor) checkStaleDeliveries(ctx context.Context) {
	count, err := m.db.GetStaleDeliveryCount(ctx, m.staleThreshold)
	if err != nil {
		m.logger.WithError(err).Error("Failed to check for stale deliveries")
		return
	}
	metrics.SetGauge("deliveries_stale", float64(count), nil, "Deliveries stuck in accepted status")
	if count > 0 {
		m.logger.WithFields(logrus.Fields{
			"stale_count": count,
			"threshold":   m.staleThreshold,
		}).Warn("Deliveries stuck in accepted status without push confirmation")
	}
}
