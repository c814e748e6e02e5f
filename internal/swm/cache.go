// internal/swm/cache.go
package swm

import "sync"

// Record is one parsed inbound record. Record[0] is the command code.
type Record []string

func (r Record) Code() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// Fields returns the record without its code
func (r Record) Fields() []string {
	if len(r) < 2 {
		return nil
	}
	return r[1:]
}

// ResponseCache keeps the latest record per command code and counts how
// often each code was received. Clear drops the records but keeps the
// counters, and invalidates stores started before it.
type ResponseCache struct {
	mu      sync.RWMutex
	records map[string]Record
	counts  map[string]uint64
	gen     uint64
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		records: make(map[string]Record),
		counts:  make(map[string]uint64),
	}
}

func (c *ResponseCache) Store(r Record) {
	c.StoreAt(c.Generation(), r)
}

// StoreAt stores r only if the cache has not been cleared since gen
func (c *ResponseCache) StoreAt(gen uint64, r Record) bool {
	code := r.Code()
	if code == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.records[code] = r
	c.counts[code]++
	return true
}

// Get returns a copy of the latest record for code
func (c *ResponseCache) Get(code string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[code]
	if !ok {
		return nil, false
	}
	return append(Record(nil), r...), true
}

func (c *ResponseCache) Has(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[code]
	return ok
}

// Count returns how many records with code were received
func (c *ResponseCache) Count(code string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[code]
}

func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Snapshot copies all cached records
func (c *ResponseCache) Snapshot() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Record, len(c.records))
	for code, r := range c.records {
		out[code] = append(Record(nil), r...)
	}
	return out
}

func (c *ResponseCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	c.records = make(map[string]Record)
	c.gen++
	c.mu.Unlock()
}
