// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/iyunix/go-roomchat/internal/domain"
)

// Logger defines the logging interface used by the limiter.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Result reports the outcome of one gated attempt. An exceeded limit
// is a result, never an error: the caller renders an accurate
// wait/upgrade message from Window, Remaining and ResetAt.
type Result struct {
	Allowed   bool
	Action    Action
	Window    Window // the limit that was hit, or the tightest one left
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter gates message-send and AI-invocation actions by identity
// and tier using fixed hour/day windows over an atomic counter store.
type Limiter struct {
	store  CounterStore
	table  TierLimits
	logger Logger
	now    func() time.Time // injectable for tests
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(store CounterStore, table TierLimits, logger Logger) *Limiter {
	if table == nil {
		table = DefaultTierLimits()
	}
	return &Limiter{
		store:  store,
		table:  table,
		logger: logger,
		now:    time.Now,
	}
}

// TryConsume atomically counts one attempt against the hour and day
// windows and compares against the tier's ceilings. The attempt that
// would push a counter over its limit is the one rejected. Returns an
// error only when the counter store itself fails.
func (l *Limiter) TryConsume(ctx context.Context, identity, roomID string, action Action, tier domain.Tier) (*Result, error) {
	limits := l.table.limitsFor(tier, action)
	now := l.now().UTC()

	hourCount, err := l.store.Incr(ctx, l.key(identity, roomID, action, WindowHour, now), time.Hour)
	if err != nil {
		return nil, fmt.Errorf("usage counter increment failed: %w", err)
	}
	if hourCount > int64(limits.PerHour) {
		l.logger.Info("hourly limit exceeded",
			"identity", identity, "action", string(action), "tier", string(tier))
		return &Result{
			Action:  action,
			Window:  WindowHour,
			Limit:   limits.PerHour,
			ResetAt: now.Truncate(time.Hour).Add(time.Hour),
		}, nil
	}

	dayCount, err := l.store.Incr(ctx, l.key(identity, roomID, action, WindowDay, now), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("usage counter increment failed: %w", err)
	}
	if dayCount > int64(limits.PerDay) {
		l.logger.Info("daily limit exceeded",
			"identity", identity, "action", string(action), "tier", string(tier))
		return &Result{
			Action:  action,
			Window:  WindowDay,
			Limit:   limits.PerDay,
			ResetAt: now.Truncate(24 * time.Hour).Add(24 * time.Hour),
		}, nil
	}

	hourLeft := limits.PerHour - int(hourCount)
	dayLeft := limits.PerDay - int(dayCount)
	res := &Result{
		Allowed:   true,
		Action:    action,
		Window:    WindowHour,
		Limit:     limits.PerHour,
		Remaining: hourLeft,
		ResetAt:   now.Truncate(time.Hour).Add(time.Hour),
	}
	if dayLeft < hourLeft {
		res.Window = WindowDay
		res.Limit = limits.PerDay
		res.Remaining = dayLeft
		res.ResetAt = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
	return res, nil
}

// key builds the bucket key. The window id is part of the key, so a
// rollover naturally starts a fresh counter.
func (l *Limiter) key(identity, roomID string, action Action, window Window, now time.Time) string {
	var windowID string
	switch window {
	case WindowHour:
		windowID = "h" + now.Format("2006010215")
	default:
		windowID = "d" + now.Format("20060102")
	}
	return fmt.Sprintf("usage:%s:%s:%s:%s", identity, roomID, action, windowID)
}

// GetClientIP extracts the real client IP from a request, looking
// through proxy headers first.
func GetClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// parseFirstIP extracts the first entry from a comma-separated list.
func parseFirstIP(forwarded string) string {
	if forwarded == "" {
		return ""
	}
	ips := strings.Split(forwarded, ",")
	if len(ips) > 0 {
		return strings.TrimSpace(ips[0])
	}
	return ""
}
