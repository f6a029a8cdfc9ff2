package protocol

import (
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
)

// ClientPool hands out a small number of shared HTTP clients round-robin.
// Sharing a handful of transports across hundreds of workers keeps connection
// counts proportional to the pool size, not to configured concurrency.
type ClientPool struct {
	clients []*http.Client
	next    atomic.Uint64
}

// NewClientPool builds size clients with connection limits tuned for many
// concurrent in-flight long-polls. The per-client Timeout is an upper bound
// on any single call; long-poll budgets are enforced per request via context.
func NewClientPool(size int, timeout time.Duration, useHTTP2 bool) *ClientPool {
	if size <= 0 {
		size = 1
	}
	pool := &ClientPool{clients: make([]*http.Client, size)}
	for i := range pool.clients {
		transport := &http.Transport{
			MaxIdleConns:        10000,
			MaxIdleConnsPerHost: 10000,
			MaxConnsPerHost:     10000,
			IdleConnTimeout:     90 * time.Second,
		}
		if useHTTP2 {
			_ = http2.ConfigureTransport(transport)
		}
		pool.clients[i] = &http.Client{
			Transport: transport,
			Timeout:   timeout,
		}
	}
	return pool
}

// Get returns the next client in rotation. Safe for concurrent use.
func (p *ClientPool) Get() *http.Client {
	n := p.next.Add(1) - 1
	return p.clients[n%uint64(len(p.clients))]
}
