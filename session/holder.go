package session

import "sync"

// credentialHolder keeps the access token read by the request authenticator.
// Store.setTokenLocked is its only writer.
type credentialHolder struct {
	mu    sync.RWMutex
	token string
}

func (h *credentialHolder) get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *credentialHolder) set(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}
