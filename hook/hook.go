// Package hook provides lifecycle observation points fired by the server,
// the group-master router, and the FSUIPC sampler. Hooks are
// informational only: nothing in the core consults a hook's return value
// to decide what to do next (there is no ACL/auth hook in this system).
package hook

import "github.com/flightvars/flightvars/varmodel"

// Event names one lifecycle point a Hook can observe.
type Event uint8

const (
	SessionEstablished Event = iota
	SessionClosed
	Subscribed
	Unsubscribed
	VarUpdatePublished
	SamplerTick
	OffsetWriteRejected
)

func (e Event) String() string {
	switch e {
	case SessionEstablished:
		return "session_established"
	case SessionClosed:
		return "session_closed"
	case Subscribed:
		return "subscribed"
	case Unsubscribed:
		return "unsubscribed"
	case VarUpdatePublished:
		return "var_update_published"
	case SamplerTick:
		return "sampler_tick"
	case OffsetWriteRejected:
		return "offset_write_rejected"
	default:
		return "unknown"
	}
}

// SessionInfo describes a session lifecycle transition.
type SessionInfo struct {
	SessionID string
	PeerName  string
}

// SubscriptionInfo describes a subscribe/unsubscribe event at the router.
type SubscriptionInfo struct {
	SessionID string
	Group     string
	Name      string
	SubsID    uint32
}

// VarUpdateInfo describes a value published to a variable's subscribers.
type VarUpdateInfo struct {
	Group           string
	Name            string
	Value           varmodel.Value
	SubscriberCount int
}

// SamplerTickInfo summarizes one FSUIPC sampler tick.
type SamplerTickInfo struct {
	OffsetsRead int
	Changes     int
}

// OffsetRejectInfo describes a write to an invalid or out-of-range offset.
type OffsetRejectInfo struct {
	Address uint16
	Length  uint8
	Reason  string
}

// Hook is implemented by anything that wants to observe FlightVars
// lifecycle events. Provides lets the manager skip invoking methods a
// hook does not care about, following the corpus's own Hook interface
// shape.
type Hook interface {
	ID() string
	Provides(event Event) bool
	Stop() error

	OnSessionEstablished(info SessionInfo)
	OnSessionClosed(info SessionInfo)
	OnSubscribed(info SubscriptionInfo)
	OnUnsubscribed(info SubscriptionInfo)
	OnVarUpdatePublished(info VarUpdateInfo)
	OnSamplerTick(info SamplerTickInfo)
	OnOffsetWriteRejected(info OffsetRejectInfo)
}
