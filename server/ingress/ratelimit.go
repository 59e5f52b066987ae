package ingress

import (
	"sync"
	"time"
)

// RateLimit bounds the connections accepted from one IP address.
type RateLimit struct {
	// Window is the span in which at most MaxAttempts connections are
	// allowed.
	Window time.Duration
	// MaxAttempts is the number of connections allowed in any Window. Zero
	// disables limiting.
	MaxAttempts int
}

// limiter keeps a sliding window per source address: the times of the
// attempts admitted in the last Window.
type limiter struct {
	conf RateLimit

	mu       sync.Mutex
	attempts map[string][]time.Time
	swept    time.Time
}

func newLimiter(conf RateLimit) *limiter {
	return &limiter{conf: conf, attempts: map[string][]time.Time{}}
}

// allow reports whether a connection from ip may proceed at now. Refused
// attempts are not recorded.
func (l *limiter) allow(ip string, now time.Time) bool {
	if l.conf.MaxAttempts <= 0 || l.conf.Window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	recent := trim(l.attempts[ip], now.Add(-l.conf.Window))
	if len(recent) >= l.conf.MaxAttempts {
		l.attempts[ip] = recent
		return false
	}
	l.attempts[ip] = append(recent, now)
	return true
}

// trim drops the attempts at or before cutoff. Attempts are in order.
func trim(attempts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	return attempts[i:]
}

// sweep forgets addresses without an attempt in the last window.
func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.conf.Window {
		return
	}
	l.swept = now
	cutoff := now.Add(-l.conf.Window)
	for ip, attempts := range l.attempts {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(cutoff) {
			delete(l.attempts, ip)
		}
	}
}
