package topic

import "sync"

// Router layers per-id bookkeeping on top of a Trie so a caller can remove
// every filter a given subscriber registered (on disconnect, say) without
// having to remember the filter strings itself.
type Router[T any] struct {
	mu      sync.Mutex
	trie    *Trie[T]
	filters map[string]map[string]struct{} // id -> set of filters
}

// NewRouter constructs an empty router.
func NewRouter[T any]() *Router[T] {
	return &Router[T]{
		trie:    NewTrie[T](),
		filters: make(map[string]map[string]struct{}),
	}
}

// Subscribe registers value under id for filter.
func (r *Router[T]) Subscribe(filter string, id string, value T) error {
	if err := r.trie.Subscribe(filter, id, value); err != nil {
		return err
	}

	r.mu.Lock()
	set, ok := r.filters[id]
	if !ok {
		set = make(map[string]struct{})
		r.filters[id] = set
	}
	set[filter] = struct{}{}
	r.mu.Unlock()

	return nil
}

// Unsubscribe removes id's registration at filter.
func (r *Router[T]) Unsubscribe(filter string, id string) bool {
	removed := r.trie.Unsubscribe(filter, id)
	if !removed {
		return false
	}

	r.mu.Lock()
	if set, ok := r.filters[id]; ok {
		delete(set, filter)
		if len(set) == 0 {
			delete(r.filters, id)
		}
	}
	r.mu.Unlock()

	return true
}

// UnsubscribeAll removes every filter registered by id.
func (r *Router[T]) UnsubscribeAll(id string) int {
	r.mu.Lock()
	set := r.filters[id]
	delete(r.filters, id)
	r.mu.Unlock()

	count := 0
	for filter := range set {
		if r.trie.Unsubscribe(filter, id) {
			count++
		}
	}
	return count
}

// Match returns every value whose filter matches topic.
func (r *Router[T]) Match(topic string) []T {
	return r.trie.Match(topic)
}

// Count returns the total number of active (filter, id) registrations.
func (r *Router[T]) Count() int {
	return r.trie.Count()
}

// Clear removes every registration.
func (r *Router[T]) Clear() {
	r.mu.Lock()
	r.filters = make(map[string]map[string]struct{})
	r.mu.Unlock()
	r.trie.Clear()
}
