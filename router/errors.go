package router

import "errors"

var (
	// ErrNoSuchVariable indicates the variable's group has no registered
	// master.
	ErrNoSuchVariable = errors.New("router: no such variable")

	// ErrNoSuchSubscription indicates the subscription id is not owned by
	// any registered master.
	ErrNoSuchSubscription = errors.New("router: no such subscription")

	// ErrMasterAlreadyRegistered indicates a group already has a master.
	ErrMasterAlreadyRegistered = errors.New("router: master already registered for group")
)
