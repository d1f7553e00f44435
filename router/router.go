// Package router implements the process-wide group-master router: each
// variable group has exactly one master responsible for its variables,
// and the router forwards subscribe/unsubscribe/update calls to whichever
// master owns the target variable's group.
package router

import (
	"strings"
	"sync"

	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/varmodel"
)

// FanoutHandler is invoked by a master when a subscribed variable's value
// changes. Implementations must not block for long: on the server this
// posts a var_update onto the owning session's reactor rather than
// writing a socket directly.
type FanoutHandler func(varID varmodel.ID, value varmodel.Value)

// Master is the sole source of truth for one variable group. The FSUIPC
// sampler (package fsuipc) is one concrete master.
type Master interface {
	Subscribe(varID varmodel.ID, handler FanoutHandler) (registry.SubsID, error)
	Unsubscribe(subsID registry.SubsID) error
	Update(subsID registry.SubsID, value varmodel.Value) error
}

// Router holds the group -> master mapping and the subs -> master
// ownership map, both mutex-protected since they are shared across every
// session's reactor.
type Router struct {
	mu      sync.Mutex
	masters map[string]Master
	owners  map[registry.SubsID]Master

	hooks *hook.Manager
}

// New constructs an empty router. hooks may be nil.
func New(hooks *hook.Manager) *Router {
	return &Router{
		masters: make(map[string]Master),
		owners:  make(map[registry.SubsID]Master),
		hooks:   hooks,
	}
}

func groupKey(g varmodel.Group) string {
	return strings.ToLower(string(g))
}

// RegisterMaster binds a master to a group. It fails if the group already
// has one.
func (r *Router) RegisterMaster(group varmodel.Group, m Master) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := groupKey(group)
	if _, exists := r.masters[key]; exists {
		return ErrMasterAlreadyRegistered
	}
	r.masters[key] = m
	return nil
}

// UnregisterMaster removes a group's master. Any subscriptions it still
// owns become orphaned in owners; callers are expected to have already
// drained them (e.g. a master shutting down its sampler).
func (r *Router) UnregisterMaster(group varmodel.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.masters, groupKey(group))
}

// Subscribe forwards to the master owning varID.Group, then records
// ownership of the returned subscription id.
func (r *Router) Subscribe(sessionID string, varID varmodel.ID, handler FanoutHandler) (registry.SubsID, error) {
	r.mu.Lock()
	master, ok := r.masters[groupKey(varID.Group)]
	r.mu.Unlock()

	if !ok {
		return 0, ErrNoSuchVariable
	}

	subsID, err := master.Subscribe(varID, handler)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.owners[subsID] = master
	r.mu.Unlock()

	if r.hooks != nil {
		r.hooks.FireSubscribed(hook.SubscriptionInfo{
			SessionID: sessionID,
			Group:     string(varID.Group),
			Name:      varID.Name,
			SubsID:    uint32(subsID),
		})
	}

	return subsID, nil
}

// Unsubscribe forwards to the owning master and drops the ownership
// record.
func (r *Router) Unsubscribe(sessionID string, subsID registry.SubsID) error {
	r.mu.Lock()
	master, ok := r.owners[subsID]
	r.mu.Unlock()

	if !ok {
		return ErrNoSuchSubscription
	}

	if err := master.Unsubscribe(subsID); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.owners, subsID)
	r.mu.Unlock()

	if r.hooks != nil {
		r.hooks.FireUnsubscribed(hook.SubscriptionInfo{
			SessionID: sessionID,
			SubsID:    uint32(subsID),
		})
	}

	return nil
}

// Update forwards a value update to the owning master.
func (r *Router) Update(subsID registry.SubsID, value varmodel.Value) error {
	r.mu.Lock()
	master, ok := r.owners[subsID]
	r.mu.Unlock()

	if !ok {
		return ErrNoSuchSubscription
	}

	return master.Update(subsID, value)
}
