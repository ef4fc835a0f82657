package client

import "sync"

// Generation numbers requests per key. A response is applied only while its
// number is still the newest for that key, so the last request always wins
// no matter which response lands first.
type Generation struct {
	mu  sync.Mutex
	seq map[string]uint64
}

func (g *Generation) Next(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seq == nil {
		g.seq = make(map[string]uint64)
	}
	g.seq[key]++
	return g.seq[key]
}

func (g *Generation) Current(key string, n uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq[key] == n
}
