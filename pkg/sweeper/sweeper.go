package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/models"
	"autopilot-assistant/pkg/store"
)

// Sweeper periodically expires conversation records older than the retention
// age. Records that cannot be decoded are deleted unconditionally.
type Sweeper struct {
	conversations store.ConversationStore
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	maxAge        time.Duration
	interval      time.Duration
	now           func() time.Time
}

func New(conversations store.ConversationStore, logger *logrus.Logger, m *metrics.Metrics, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		conversations: conversations,
		logger:        logger,
		metrics:       m,
		maxAge:        maxAge,
		interval:      interval,
		now:           time.Now,
	}
}

// WithClock overrides the sweeper clock. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run executes a sweep on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(ctx)
			if removed > 0 {
				s.logger.WithField("removed_count", removed).Info("Cleaned up old conversations")
			}
		}
	}
}

// Sweep walks every conversation record once and returns how many it
// removed. A failure on one record never aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := s.now().Add(-s.maxAge)
	removed := 0

	err := s.conversations.Each(ctx, func(contactID string, conv *models.Conversation, err error) {
		if errors.Is(err, store.ErrCorruptRecord) {
			// Undecodable record: delete it and let the conversation
			// restart on the contact's next message.
			s.logger.WithError(err).WithField("contact_id", contactID).Warn("Deleting corrupt conversation record")
			if delErr := s.conversations.Delete(ctx, contactID); delErr != nil {
				s.logger.WithError(delErr).WithField("contact_id", contactID).Error("Failed to delete corrupt conversation record")
				return
			}
			s.metrics.ConversationsSwept.WithLabelValues("corrupt").Inc()
			removed++
			return
		}
		if err != nil {
			// Transient read failure: the record may be live, leave it
			// for the next pass.
			s.logger.WithError(err).WithField("contact_id", contactID).Warn("Skipping unreadable conversation record")
			return
		}

		if !conv.StartedAt.Before(cutoff) {
			return
		}
		if delErr := s.conversations.Delete(ctx, contactID); delErr != nil {
			s.logger.WithError(delErr).WithField("contact_id", contactID).Error("Failed to delete expired conversation record")
			return
		}
		s.metrics.ConversationsSwept.WithLabelValues("expired").Inc()
		removed++
	})
	if err != nil {
		s.logger.WithError(err).Error("Conversation scan failed during sweep")
	}

	return removed
}
