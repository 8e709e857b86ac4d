package middleware

import (
	"container/list"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/zawrotmc/streamflow/pkg/response"
	"golang.org/x/time/rate"
)

// DefaultMaxTrackedClients bounds the limiter table. The least recently seen
// client is evicted first.
const DefaultMaxTrackedClients = 10000

type limiterEntry struct {
	key string
	lim *rate.Limiter
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently seen
	max     int
	limit   rate.Limit
	burst   int
}

// NewRateLimiter allows perSecond requests per client with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		max:     DefaultMaxTrackedClients,
		limit:   limit,
		burst:   burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if el, ok := rl.entries[key]; ok {
		rl.order.MoveToFront(el)
		return el.Value.(*limiterEntry).lim
	}
	for rl.order.Len() >= rl.max {
		oldest := rl.order.Back()
		rl.order.Remove(oldest)
		delete(rl.entries, oldest.Value.(*limiterEntry).key)
	}
	e := &limiterEntry{key: key, lim: rate.NewLimiter(rl.limit, rl.burst)}
	rl.entries[key] = rl.order.PushFront(e)
	return e.lim
}

// Len reports how many clients are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.order.Len()
}

// Allow reports whether key may proceed now and spends a token if so.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Exhausted reports whether key has no whole token left. It spends nothing.
func (rl *RateLimiter) Exhausted(key string) bool {
	if rl.limit == rate.Inf {
		return false
	}
	return rl.limiter(key).Tokens() < 1
}

// Middleware rejects clients over their budget with 429. With charged
// statuses a token is spent only after a response with one of them, so
// other outcomes are free. With no statuses every request is charged.
func (rl *RateLimiter) Middleware(charged ...int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if len(charged) == 0 {
			if !rl.Allow(key) {
				tooMany(c)
				return
			}
			c.Next()
			return
		}

		if rl.Exhausted(key) {
			tooMany(c)
			return
		}

		c.Next()

		status := c.Writer.Status()
		for _, s := range charged {
			if s == status {
				rl.Allow(key)
				return
			}
		}
	}
}

func tooMany(c *gin.Context) {
	response.Abort(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "Too many attempts, try again later")
}
