package router

import (
	"testing"

	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/varmodel"
)

type fakeMaster struct {
	nextID      registry.SubsID
	subscribed  map[registry.SubsID]varmodel.ID
	lastUpdate  varmodel.Value
	updateCalls int
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{nextID: 1, subscribed: make(map[registry.SubsID]varmodel.ID)}
}

func (m *fakeMaster) Subscribe(varID varmodel.ID, handler FanoutHandler) (registry.SubsID, error) {
	id := m.nextID
	m.nextID++
	m.subscribed[id] = varID
	return id, nil
}

func (m *fakeMaster) Unsubscribe(subsID registry.SubsID) error {
	if _, ok := m.subscribed[subsID]; !ok {
		return ErrNoSuchSubscription
	}
	delete(m.subscribed, subsID)
	return nil
}

func (m *fakeMaster) Update(subsID registry.SubsID, value varmodel.Value) error {
	if _, ok := m.subscribed[subsID]; !ok {
		return ErrNoSuchSubscription
	}
	m.lastUpdate = value
	m.updateCalls++
	return nil
}

func mustID(t *testing.T, group, name string) varmodel.ID {
	t.Helper()
	id, err := varmodel.NewID(varmodel.Group(group), name)
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	return id
}

func TestRouterSubscribeNoSuchVariable(t *testing.T) {
	r := New(nil)
	_, err := r.Subscribe("session-1", mustID(t, "unknown", "foo"), nil)
	if err != ErrNoSuchVariable {
		t.Fatalf("expected ErrNoSuchVariable, got %v", err)
	}
}

func TestRouterSubscribeUnsubscribeUpdate(t *testing.T) {
	r := New(nil)
	master := newFakeMaster()
	if err := r.RegisterMaster("fsuipc/offset", master); err != nil {
		t.Fatalf("register master failed: %v", err)
	}

	varID := mustID(t, "fsuipc/offset", "0x1000:1")
	subsID, err := r.Subscribe("session-1", varID, nil)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := r.Update(subsID, varmodel.NewByte(0x42)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if master.updateCalls != 1 {
		t.Fatalf("expected master to receive 1 update, got %d", master.updateCalls)
	}

	if err := r.Unsubscribe("session-1", subsID); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	if err := r.Update(subsID, varmodel.NewByte(0x43)); err != ErrNoSuchSubscription {
		t.Fatalf("expected ErrNoSuchSubscription after unsubscribe, got %v", err)
	}
}

func TestRouterRegisterMasterRejectsDuplicate(t *testing.T) {
	r := New(nil)
	_ = r.RegisterMaster("g", newFakeMaster())
	if err := r.RegisterMaster("g", newFakeMaster()); err != ErrMasterAlreadyRegistered {
		t.Fatalf("expected ErrMasterAlreadyRegistered, got %v", err)
	}
}

func TestRouterUnsubscribeUnknownSubscription(t *testing.T) {
	r := New(nil)
	if err := r.Unsubscribe("session-1", 999); err != ErrNoSuchSubscription {
		t.Fatalf("expected ErrNoSuchSubscription, got %v", err)
	}
}
