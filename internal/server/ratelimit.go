package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas.
// Clients are identified by IP address.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
}

// clientUsage tracks usage for a single client.
type clientUsage struct {
	requestsLastMinute int
	requestsLastHour   int
	requestsToday      int
	dataToday          int64

	lastRequestTime time.Time
	dayStartTime    time.Time
}

// NewRateLimiter creates a rate limiter with the given limits. A limit
// of zero disables that check.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
	}
}

// Check reports whether a request of dataSize bytes from the given
// client is allowed, updating usage counters when it is.
func (rl *RateLimiter) Check(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{lastRequestTime: now, dayStartTime: now}
		rl.clients[clientID] = usage
	}

	rl.rollWindows(usage, now)

	if err := rl.checkRates(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, dataSize, now); err != nil {
		return err
	}

	usage.requestsLastMinute++
	usage.requestsLastHour++
	usage.requestsToday++
	usage.dataToday += dataSize
	usage.lastRequestTime = now

	return nil
}

// rollWindows resets counters whose time window has elapsed.
func (rl *RateLimiter) rollWindows(usage *clientUsage, now time.Time) {
	if now.Day() != usage.dayStartTime.Day() || now.Month() != usage.dayStartTime.Month() {
		usage.requestsToday = 0
		usage.dataToday = 0
		usage.dayStartTime = now
	}

	if now.Sub(usage.lastRequestTime) >= time.Minute {
		usage.requestsLastMinute = 0
	}
	if now.Sub(usage.lastRequestTime) >= time.Hour {
		usage.requestsLastHour = 0
	}
}

func (rl *RateLimiter) checkRates(usage *clientUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && usage.requestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastRequestTime),
		}
	}

	if rl.requestsPerHour > 0 && usage.requestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.lastRequestTime),
		}
	}

	return nil
}

func (rl *RateLimiter) checkQuotas(usage *clientUsage, dataSize int64, now time.Time) error {
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	if rl.maxRequestsPerDay > 0 && usage.requestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.requestsToday),
			Resets: midnight,
		}
	}

	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: midnight,
		}
	}

	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
