package hook

import (
	"sync"
	"sync/atomic"
)

// Manager manages hook registration and dispatch. Registration takes a
// mutex and copies the hook slice (copy-on-write); dispatch only ever
// atomically loads the current slice, so firing an event never blocks on
// or races with Add/Remove.
type Manager struct {
	mu       sync.Mutex
	hooksPtr atomic.Pointer[[]Hook]
	index    map[string]int
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	m := &Manager{index: make(map[string]int)}
	hooks := make([]Hook, 0)
	m.hooksPtr.Store(&hooks)
	return m
}

// Add registers a hook. It fails if the hook's ID is empty or already
// registered.
func (m *Manager) Add(h Hook) error {
	if h == nil || h.ID() == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[h.ID()]; exists {
		return ErrHookAlreadyExists
	}

	old := *m.hooksPtr.Load()
	updated := make([]Hook, len(old)+1)
	copy(updated, old)
	updated[len(old)] = h

	m.index[h.ID()] = len(old)
	m.hooksPtr.Store(&updated)

	return nil
}

// Remove unregisters a hook by ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return ErrHookNotFound
	}

	old := *m.hooksPtr.Load()
	updated := make([]Hook, len(old)-1)
	copy(updated[:idx], old[:idx])
	copy(updated[idx:], old[idx+1:])

	delete(m.index, id)
	for i := idx; i < len(updated); i++ {
		m.index[updated[i].ID()] = i
	}

	m.hooksPtr.Store(&updated)
	return nil
}

// Count returns the number of registered hooks.
func (m *Manager) Count() int {
	return len(*m.hooksPtr.Load())
}

// Clear stops and removes every registered hook.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range *m.hooksPtr.Load() {
		_ = h.Stop()
	}

	empty := make([]Hook, 0)
	m.hooksPtr.Store(&empty)
	m.index = make(map[string]int)
}

// FireSessionEstablished invokes every hook that provides SessionEstablished.
func (m *Manager) FireSessionEstablished(info SessionInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(SessionEstablished) {
			h.OnSessionEstablished(info)
		}
	}
}

// FireSessionClosed invokes every hook that provides SessionClosed.
func (m *Manager) FireSessionClosed(info SessionInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(SessionClosed) {
			h.OnSessionClosed(info)
		}
	}
}

// FireSubscribed invokes every hook that provides Subscribed.
func (m *Manager) FireSubscribed(info SubscriptionInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(Subscribed) {
			h.OnSubscribed(info)
		}
	}
}

// FireUnsubscribed invokes every hook that provides Unsubscribed.
func (m *Manager) FireUnsubscribed(info SubscriptionInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(Unsubscribed) {
			h.OnUnsubscribed(info)
		}
	}
}

// FireVarUpdatePublished invokes every hook that provides VarUpdatePublished.
func (m *Manager) FireVarUpdatePublished(info VarUpdateInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(VarUpdatePublished) {
			h.OnVarUpdatePublished(info)
		}
	}
}

// FireSamplerTick invokes every hook that provides SamplerTick.
func (m *Manager) FireSamplerTick(info SamplerTickInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(SamplerTick) {
			h.OnSamplerTick(info)
		}
	}
}

// FireOffsetWriteRejected invokes every hook that provides OffsetWriteRejected.
func (m *Manager) FireOffsetWriteRejected(info OffsetRejectInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OffsetWriteRejected) {
			h.OnOffsetWriteRejected(info)
		}
	}
}
