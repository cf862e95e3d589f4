// ABOUTME: Thread-safe TTL guard against replayed form submissions
// ABOUTME: Tracks claimed (session, nonce) pairs with bounded size and O(1) eviction

package dedupe

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrReplayed is returned when a nonce was already claimed within the TTL.
var ErrReplayed = errors.New("submission already received")

type key struct {
	session string
	nonce   string
}

type claim struct {
	at      time.Time
	element *list.Element
}

// Guard remembers claimed submission nonces per session. Oldest claims are
// evicted first once maxSize is reached.
type Guard struct {
	mu      sync.Mutex
	claims  map[key]*claim
	order   *list.List // keys in claim order, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a guard. A background goroutine drops expired claims.
func New(ttl time.Duration, maxSize int) *Guard {
	g := &Guard{
		claims:  make(map[key]*claim),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Claim records nonce for sessionID. It returns ErrReplayed if the same pair
// was claimed less than ttl ago. Check and mark happen under one lock.
func (g *Guard) Claim(sessionID, nonce string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{session: sessionID, nonce: nonce}
	now := g.now()
	if c, ok := g.claims[k]; ok {
		if now.Sub(c.at) < g.ttl {
			return ErrReplayed
		}
		c.at = now
		g.order.MoveToBack(c.element)
		return nil
	}

	if g.maxSize > 0 && len(g.claims) >= g.maxSize {
		g.evictOldest()
	}
	g.claims[k] = &claim{at: now, element: g.order.PushBack(k)}
	return nil
}

// Claimed reports whether the pair is currently claimed.
func (g *Guard) Claimed(sessionID, nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.claims[key{session: sessionID, nonce: nonce}]
	return ok && g.now().Sub(c.at) < g.ttl
}

// Forget drops every claim of a closed session and returns how many went.
func (g *Guard) Forget(sessionID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for k, c := range g.claims {
		if k.session == sessionID {
			g.order.Remove(c.element)
			delete(g.claims, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked claims, expired or not.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

// evictOldest removes the oldest claim. Must be called with mu held.
func (g *Guard) evictOldest() {
	front := g.order.Front()
	if front == nil {
		return
	}
	k, _ := front.Value.(key)
	g.order.Remove(front)
	delete(g.claims, k)
}

func (g *Guard) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.done:
			return
		}
	}
}

// sweep drops expired claims. Claims are ordered by time, so it stops at
// the first live one.
func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for e := g.order.Front(); e != nil; {
		k, _ := e.Value.(key)
		if now.Sub(g.claims[k].at) < g.ttl {
			return
		}
		next := e.Next()
		g.order.Remove(e)
		delete(g.claims, k)
		e = next
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
