package registry

import "errors"

var (
	// ErrVariableAlreadyRegistered indicates the variable side of a
	// registration is already present.
	ErrVariableAlreadyRegistered = errors.New("registry: variable already registered")

	// ErrSubscriptionAlreadyRegistered indicates the subscription side of
	// a registration is already present.
	ErrSubscriptionAlreadyRegistered = errors.New("registry: subscription already registered")

	// ErrNoSuchVariable indicates no registration exists for the given
	// variable id.
	ErrNoSuchVariable = errors.New("registry: no such variable")

	// ErrNoSuchSubscription indicates no registration exists for the
	// given subscription id.
	ErrNoSuchSubscription = errors.New("registry: no such subscription")
)
