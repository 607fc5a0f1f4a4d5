package main

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

const (
	// clientIdle is how long an unused per-client limiter is kept.
	clientIdle = 5 * time.Minute
	// limiterSweepSchedule drops idle client limiters.
	limiterSweepSchedule = "@every 1m"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clickLimiter rate limits clicks per remote address.
type clickLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
	now     func() time.Time
	cron    *cron.Cron
}

func newClickLimiter(rps float64, burst int) *clickLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clickLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *clickLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Sweep forgets the clients idle for longer than clientIdle.
func (l *clickLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-clientIdle)
	n := 0
	for k, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (l *clickLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Start runs the sweep on the given cron schedule.
func (l *clickLimiter) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { l.Sweep() }); err != nil {
		return fmt.Errorf("invalid limiter sweep schedule %q: %w", schedule, err)
	}
	l.cron = c
	c.Start()
	return nil
}

// Stop halts the sweep.
func (l *clickLimiter) Stop() {
	if l.cron != nil {
		<-l.cron.Stop().Done()
	}
}

// Middleware answers 429 once a client exceeds its click budget.
// A zero rate disables limiting.
func (l *clickLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}
		if !l.allow(key) {
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
