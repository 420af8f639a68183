package service

import (
	"sync"
	"time"

	"mediadl/internal/model"
	"mediadl/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimitEntry tracks the token bucket of one IP
type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService manages per-IP rate limiting for DDoS protection
type RateLimitService struct {
	cfg      *model.RateLimitConfig
	limits   map[string]*rateLimitEntry
	mu       sync.Mutex
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(cfg *model.RateLimitConfig) *RateLimitService {
	service := &RateLimitService{
		cfg:      cfg,
		limits:   make(map[string]*rateLimitEntry),
		quitChan: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go service.cleanupRoutine()
	}

	return service
}

// IsAllowed checks if an IP is allowed to make a request
func (rls *RateLimitService) IsAllowed(ip string) bool {
	if !rls.cfg.Enabled {
		return true
	}

	rls.mu.Lock()
	entry := rls.entryLocked(ip)
	rls.mu.Unlock()

	if !entry.limiter.Allow() {
		logger.Logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.Int("limit", rls.cfg.RequestsPerMinute))
		return false
	}
	return true
}

// GetRemaining returns the whole tokens left for the IP, -1 when unlimited
func (rls *RateLimitService) GetRemaining(ip string) int {
	if !rls.cfg.Enabled {
		return -1
	}

	rls.mu.Lock()
	entry, exists := rls.limits[ip]
	rls.mu.Unlock()
	if !exists {
		return rls.burst()
	}

	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (rls *RateLimitService) entryLocked(ip string) *rateLimitEntry {
	entry, exists := rls.limits[ip]
	if !exists {
		perMinute := rls.cfg.RequestsPerMinute
		if perMinute <= 0 {
			perMinute = 1
		}
		entry = &rateLimitEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), rls.burst()),
		}
		rls.limits[ip] = entry
		logger.Logger.Debug("New rate limit entry created", zap.String("ip", ip))
	}
	entry.lastSeen = time.Now()
	return entry
}

func (rls *RateLimitService) burst() int {
	if rls.cfg.BurstSize <= 0 {
		return 1
	}
	return rls.cfg.BurstSize
}

// cleanupRoutine periodically cleans up old entries
func (rls *RateLimitService) cleanupRoutine() {
	ticker := time.NewTicker(time.Duration(rls.cfg.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rls.quitChan:
			logger.Logger.Info("Rate limit service stopped")
			return
		case <-ticker.C:
			rls.cleanup(time.Duration(rls.cfg.CleanupInterval) * time.Second)
		}
	}
}

// cleanup removes entries idle for longer than maxIdle
func (rls *RateLimitService) cleanup(maxIdle time.Duration) int {
	rls.mu.Lock()
	defer rls.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range rls.limits {
		if now.Sub(entry.lastSeen) > maxIdle {
			delete(rls.limits, ip)
			removed++
		}
	}

	if removed > 0 {
		logger.Logger.Debug("Rate limit entries cleaned up", zap.Int("removed", removed), zap.Int("remaining", len(rls.limits)))
	}
	return removed
}

// Stop stops the rate limit service
func (rls *RateLimitService) Stop() {
	rls.stopOnce.Do(func() { close(rls.quitChan) })
}
