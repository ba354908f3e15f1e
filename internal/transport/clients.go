package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"flatctl/internal/metrics"
)

// clients assigns small integer ids to sender addresses.  An address
// keeps its id while it stays active: every datagram refreshes the
// entry's TTL, and only an address that has been silent for a full TTL
// is forgotten.
type clients struct {
	mu     sync.Mutex
	byAddr *ttlcache.Cache[string, int]
	next   int

	addrMu sync.RWMutex
	addrs  map[int]*net.UDPAddr

	metrics *metrics.Collector
}

func newClients(ttl time.Duration, m *metrics.Collector) *clients {
	c := &clients{
		byAddr: ttlcache.New[string, int](
			ttlcache.WithTTL[string, int](ttl),
		),
		addrs:   make(map[int]*net.UDPAddr),
		metrics: m,
	}
	c.byAddr.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, int]) {
		c.addrMu.Lock()
		delete(c.addrs, item.Value())
		c.addrMu.Unlock()
	})
	return c
}

// resolve returns addr's client id, assigning the next one when addr is
// new.  addrMu is never held while the cache is called, so eviction
// callbacks cannot deadlock with resolve.
func (c *clients) resolve(addr *net.UDPAddr) int {
	key := addr.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.byAddr.Get(key); item != nil {
		id := item.Value()
		c.addrMu.Lock()
		c.addrs[id] = addr
		c.addrMu.Unlock()
		return id
	}

	id := c.next
	c.next++
	c.byAddr.Set(key, id, ttlcache.DefaultTTL)
	c.addrMu.Lock()
	c.addrs[id] = addr
	c.addrMu.Unlock()
	c.metrics.ClientRegistered()
	return id
}

// addr returns the address currently registered for id.
func (c *clients) addr(id int) (*net.UDPAddr, bool) {
	c.addrMu.RLock()
	defer c.addrMu.RUnlock()
	a, ok := c.addrs[id]
	return a, ok
}

func (c *clients) len() int {
	c.addrMu.RLock()
	defer c.addrMu.RUnlock()
	return len(c.addrs)
}

// start runs the expiry loop until stop is called.
func (c *clients) start() { c.byAddr.Start() }
func (c *clients) stop()  { c.byAddr.Stop() }
