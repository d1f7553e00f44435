package fvclient

import (
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/varmodel"
)

// Handler is invoked with a variable's new value whenever a var_update
// naming that variable's master subscription arrives.
type Handler func(varID varmodel.ID, value varmodel.Value)

// VirtualSubsID is a locally minted identifier the application holds.
// It is distinct from the registry.SubsID the server assigns (the DB
// calls that the entry's "master" subscription id); several virtuals may
// share one master.
type VirtualSubsID uint64

type virtual struct {
	id      VirtualSubsID
	handler Handler
}

type entry struct {
	varID    varmodel.ID
	masterID registry.SubsID
	virtuals []virtual
}

// DB is the client subscription database: per variable, the server's
// master subscription id and the list of local (virtual id, handler)
// pairs multiplexed onto it. Three indices (by variable, by master id,
// by virtual id) stay consistent across every operation.
//
// Like registry.Registry, DB is not internally synchronized: the
// connection manager's single reactor goroutine is its only caller.
type DB struct {
	nextVirtual VirtualSubsID

	byVar     map[string]*entry // varmodel.ID.Key()
	byMaster  map[registry.SubsID]*entry
	byVirtual map[VirtualSubsID]*entry
}

// NewDB constructs an empty subscription database.
func NewDB() *DB {
	return &DB{
		byVar:     make(map[string]*entry),
		byMaster:  make(map[registry.SubsID]*entry),
		byVirtual: make(map[VirtualSubsID]*entry),
	}
}

func (d *DB) mintVirtual() VirtualSubsID {
	d.nextVirtual++
	return d.nextVirtual
}

// CreateEntry creates a new entry for varID bound to masterID, mints one
// virtual subscription attached to handler, and returns its id.
func (d *DB) CreateEntry(varID varmodel.ID, masterID registry.SubsID, handler Handler) (VirtualSubsID, error) {
	key := varID.Key()
	if _, ok := d.byVar[key]; ok {
		return 0, ErrVariableAlreadyExists
	}
	if _, ok := d.byMaster[masterID]; ok {
		return 0, ErrMasterSubscriptionAlreadyExists
	}

	vid := d.mintVirtual()
	e := &entry{
		varID:    varID,
		masterID: masterID,
		virtuals: []virtual{{id: vid, handler: handler}},
	}
	d.byVar[key] = e
	d.byMaster[masterID] = e
	d.byVirtual[vid] = e
	return vid, nil
}

// AddVirtualSubscription mints another virtual subscription on varID's
// existing entry.
func (d *DB) AddVirtualSubscription(varID varmodel.ID, handler Handler) (VirtualSubsID, error) {
	e, ok := d.byVar[varID.Key()]
	if !ok {
		return 0, ErrNoSuchVariable
	}

	vid := d.mintVirtual()
	e.virtuals = append(e.virtuals, virtual{id: vid, handler: handler})
	d.byVirtual[vid] = e
	return vid, nil
}

// RemoveVirtualSubscription drops one virtual subscription. emptied is
// true iff that was the entry's last virtual, in which case the whole
// entry and its master/var indices are dropped too.
func (d *DB) RemoveVirtualSubscription(virtualID VirtualSubsID) (emptied bool, err error) {
	e, ok := d.byVirtual[virtualID]
	if !ok {
		return false, ErrNoSuchVirtualSubscription
	}
	delete(d.byVirtual, virtualID)

	for i, v := range e.virtuals {
		if v.id == virtualID {
			e.virtuals = append(e.virtuals[:i], e.virtuals[i+1:]...)
			break
		}
	}

	if len(e.virtuals) == 0 {
		delete(d.byVar, e.varID.Key())
		delete(d.byMaster, e.masterID)
		return true, nil
	}
	return false, nil
}

// RemoveEntry drops varID's entry along with every virtual subscription
// and the master mapping attached to it.
func (d *DB) RemoveEntry(varID varmodel.ID) error {
	key := varID.Key()
	e, ok := d.byVar[key]
	if !ok {
		return ErrNoSuchVariable
	}

	delete(d.byVar, key)
	delete(d.byMaster, e.masterID)
	for _, v := range e.virtuals {
		delete(d.byVirtual, v.id)
	}
	return nil
}

// GetMasterByVar returns the master subscription id bound to varID.
func (d *DB) GetMasterByVar(varID varmodel.ID) (registry.SubsID, error) {
	e, ok := d.byVar[varID.Key()]
	if !ok {
		return 0, ErrNoSuchVariable
	}
	return e.masterID, nil
}

// GetMasterByVirtual returns the master subscription id a virtual
// subscription is multiplexed onto.
func (d *DB) GetMasterByVirtual(virtualID VirtualSubsID) (registry.SubsID, error) {
	e, ok := d.byVirtual[virtualID]
	if !ok {
		return 0, ErrNoSuchVirtualSubscription
	}
	return e.masterID, nil
}

// InvokeHandlers calls every virtual's handler attached to masterID, in
// insertion order, with the entry's variable id and the new value.
func (d *DB) InvokeHandlers(masterID registry.SubsID, value varmodel.Value) error {
	e, ok := d.byMaster[masterID]
	if !ok {
		return ErrNoSuchMasterSubscription
	}
	for _, v := range e.virtuals {
		v.handler(e.varID, value)
	}
	return nil
}

// Clear drops every entry. Used when the connection manager's socket
// drops: no server-side subscription state survives a TCP disconnect, so
// the local mirror must not either.
func (d *DB) Clear() {
	d.byVar = make(map[string]*entry)
	d.byMaster = make(map[registry.SubsID]*entry)
	d.byVirtual = make(map[VirtualSubsID]*entry)
}

// Len returns the number of entries (distinct variables with at least
// one live virtual subscription).
func (d *DB) Len() int {
	return len(d.byVar)
}
