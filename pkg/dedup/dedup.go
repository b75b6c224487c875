// Package dedup drops QoS1 redeliveries: brokers may redeliver the same
// message after a reconnect, and a redelivered telemetry frame must not be
// processed twice.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// SeenPayload hashes the raw payload and reports whether it was already
// processed inside the TTL window. A first sighting returns false and
// records the payload.
func (d *Deduper) SeenPayload(payload []byte) bool {
	h := sha256.Sum256(payload)
	return d.seenID(hex.EncodeToString(h[:]))
}

func (d *Deduper) seenID(id string) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return true
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.sweep(now)
	}
	return false
}

// sweep drops expired entries; if still over capacity the map is reset.
// Losing dedup state is cheaper than unbounded growth.
func (d *Deduper) sweep(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if len(d.seen) > d.max {
		d.seen = make(map[string]time.Time, d.max)
	}
}
