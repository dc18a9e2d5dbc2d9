package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang-task-scheduler-core/internal/config"
	"golang-task-scheduler-core/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type userLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// DeliveryLimiter bounds outbound deliveries globally and per recipient user.
type DeliveryLimiter struct {
	cfg           *config.DeliveryConfig
	log           *logrus.Logger
	globalLimiter *rate.Limiter
	userLimiters  map[string]*userLimiterEntry
	mu            sync.Mutex
	wg            sync.WaitGroup
}

func NewDeliveryLimiter(cfg *config.DeliveryConfig, log *logrus.Logger) *DeliveryLimiter {
	return &DeliveryLimiter{
		cfg:           cfg,
		log:           log,
		globalLimiter: newLimiter(cfg.MaxGlobalRequestPerSecond),
		userLimiters:  make(map[string]*userLimiterEntry),
	}
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Wait blocks until both the global and the user's budget allow one more delivery, or ctx ends.
func (r *DeliveryLimiter) Wait(ctx context.Context, userID string) error {
	if err := r.globalLimiter.Wait(ctx); err != nil {
		r.log.WithError(err).Warn("Failed to wait for global delivery rate limit")
		return err
	}
	if err := r.getUserLimiter(userID).Wait(ctx); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("Failed to wait for user delivery rate limit")
		return err
	}
	return nil
}

func (r *DeliveryLimiter) getUserLimiter(userID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.userLimiters[userID]; exists {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry := &userLimiterEntry{
		limiter:    newLimiter(r.cfg.MaxUserRequestPerSecond),
		lastAccess: time.Now(),
	}
	r.userLimiters[userID] = entry
	return entry.limiter
}

func (r *DeliveryLimiter) trackedUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userLimiters)
}

func (r *DeliveryLimiter) cleanupExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, entry := range r.userLimiters {
		if now.Sub(entry.lastAccess) > r.cfg.RatelimitExpireDuration {
			delete(r.userLimiters, userID)
		}
	}
}

// StartCleanupExpired drops idle per-user limiters until ctx is cancelled.
func (r *DeliveryLimiter) StartCleanupExpired(ctx context.Context) {
	if r.cfg.RateLimitCleanupDuration <= 0 {
		return
	}
	r.wg.Add(1)
	utils.SafeGo(func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.RateLimitCleanupDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Received signal to stop delivery rate limiter cleanup expired")
				return
			case now := <-ticker.C:
				r.cleanupExpired(now)
			}
		}
	})
}

func (r *DeliveryLimiter) StopCleanupExpired() {
	r.wg.Wait()
	r.log.Info("Delivery rate limiter stopped")
}
