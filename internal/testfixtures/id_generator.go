package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces predictable identifiers. Each prefix keeps its own
// counter so that tests can assert "event-1" and "ticket-1" side by side.
type IDGenerator struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]uint64
}

// NewIDGenerator returns a generator whose Next uses prefix, or "id" when
// prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, counters: make(map[string]uint64)}
}

// Next returns the next identifier for the default prefix.
func (g *IDGenerator) Next() string {
	return g.NextFor(g.prefix)
}

// NextFor returns the next identifier for prefix.
func (g *IDGenerator) NextFor(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}

// NextFunc returns Next for injection into service dependencies.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// PrefixedFunc returns a function that draws from prefix's sequence.
func (g *IDGenerator) PrefixedFunc(prefix string) func() string {
	return func() string { return g.NextFor(prefix) }
}

// Reset clears every counter.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	clear(g.counters)
	g.mu.Unlock()
}
