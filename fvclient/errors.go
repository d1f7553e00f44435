package fvclient

import "errors"

var (
	// ErrVariableAlreadyExists indicates CreateEntry was called for a
	// variable the DB already holds an entry for.
	ErrVariableAlreadyExists = errors.New("fvclient: variable already exists")

	// ErrMasterSubscriptionAlreadyExists indicates CreateEntry was called
	// with a master subscription id the DB already maps.
	ErrMasterSubscriptionAlreadyExists = errors.New("fvclient: master subscription already exists")

	// ErrNoSuchVariable indicates no DB entry exists for a variable id.
	ErrNoSuchVariable = errors.New("fvclient: no such variable")

	// ErrNoSuchVirtualSubscription indicates a virtual subscription id is
	// not known to the DB.
	ErrNoSuchVirtualSubscription = errors.New("fvclient: no such virtual subscription")

	// ErrNoSuchMasterSubscription indicates a master subscription id is
	// not known to the DB.
	ErrNoSuchMasterSubscription = errors.New("fvclient: no such master subscription")

	// ErrNoSuchSubscription is returned by the connection manager's public
	// API when a virtual subscription id it was given is unknown, folding
	// together the DB's two "no such *subscription" cases from the
	// caller's point of view.
	ErrNoSuchSubscription = errors.New("fvclient: no such subscription")

	// ErrCommunicationError indicates a public call could not complete
	// because the socket failed or closed before a reply arrived.
	ErrCommunicationError = errors.New("fvclient: communication error")

	// ErrRequestTimeout indicates a public call's deadline elapsed before
	// a reply arrived; the request itself remains pooled and may still
	// complete later, discarded once its reply shows up.
	ErrRequestTimeout = errors.New("fvclient: request timed out")

	// ErrNotConnected indicates a write was attempted with no live
	// connection (e.g. between a drop and a successful reconnect).
	ErrNotConnected = errors.New("fvclient: not connected")

	// ErrManagerClosed indicates a call was made after Close.
	ErrManagerClosed = errors.New("fvclient: connection manager closed")
)
