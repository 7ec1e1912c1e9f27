// Package lease serializes sync work per (user, asset kind). Overlapping
// triggers for the same pair are rejected rather than interleaved; a short
// TTL lets a future trigger take over after a crashed holder.
package lease

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	token   string
	expires time.Time
}

// Manager hands out single-holder leases keyed by an arbitrary string.
type Manager struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]entry

	// now is overridable for tests.
	now func() time.Time
}

// NewManager returns a Manager whose leases expire after ttl.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:    ttl,
		leases: make(map[string]entry),
		now:    time.Now,
	}
}

// Acquire takes the lease for key. It returns a release token and true,
// or false if an unexpired lease is already held.
func (m *Manager) Acquire(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[key]; ok && m.now().Before(cur.expires) {
		return "", false
	}

	token := uuid.NewString()
	m.leases[key] = entry{token: token, expires: m.now().Add(m.ttl)}
	return token, true
}

// Release frees the lease for key if token still holds it. Releasing an
// expired or superseded lease is a no-op.
func (m *Manager) Release(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[key]; ok && cur.token == token {
		delete(m.leases, key)
	}
}
