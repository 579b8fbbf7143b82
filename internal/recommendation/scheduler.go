package recommendation

import (
	"context"
	"time"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

type Scheduler struct {
	service              Service
	logger               *logger.Logger
	regenerationInterval time.Duration
	cleanupInterval      time.Duration
}

func NewScheduler(service Service, regenerationInterval time.Duration, log *logger.Logger) *Scheduler {
	if regenerationInterval <= 0 {
		regenerationInterval = 6 * time.Hour
	}
	return &Scheduler{
		service:              service,
		logger:               log,
		regenerationInterval: regenerationInterval,
		cleanupInterval:      time.Hour,
	}
}

// Start launches the background jobs; they stop when ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	// Refresh recommendations for recently active users
	go s.runEvery(ctx, "regenerate_active_users", s.regenerationInterval, s.service.RegenerateActiveUsers)

	// Deactivate expired recommendations every hour
	go s.runEvery(ctx, "cleanup_expired_recommendations", s.cleanupInterval, s.service.CleanupExpiredRecommendations)
}

func (s *Scheduler) runEvery(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			started := time.Now()
			if err := task(ctx); err != nil {
				s.logger.Error("scheduled task failed", "task", name, "error", err)
				continue
			}
			s.logger.Debug("scheduled task finished", "task", name, "duration", time.Since(started))
		case <-ctx.Done():
			return
		}
	}
}
