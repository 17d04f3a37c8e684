package vision

import "sync"

// keyRing holds the API credential ring. When a call fails with an
// auth or quota error the active index advances so the next attempt
// uses a different credential.
type keyRing struct {
	mu    sync.Mutex
	keys  []string
	index int
}

func newKeyRing(keys []string) *keyRing {
	return &keyRing{keys: keys}
}

// Current returns the active credential.
func (r *keyRing) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return ""
	}
	return r.keys[r.index]
}

// Rotate advances to the next credential and returns it.
func (r *keyRing) Rotate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return ""
	}
	r.index = (r.index + 1) % len(r.keys)
	return r.keys[r.index]
}

// Len returns the number of credentials in the ring.
func (r *keyRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
