package hook

// Base provides a no-op implementation of every Hook method. Embed it in a
// custom hook and override only the methods that matter, same as the
// corpus's own Base.
type Base struct {
	id string
}

// NewHookBase creates a base hook with the given ID.
func NewHookBase(id string) *Base {
	return &Base{id: id}
}

func (h *Base) ID() string { return h.id }

func (h *Base) Provides(event Event) bool { return false }

func (h *Base) Stop() error { return nil }

func (h *Base) OnSessionEstablished(info SessionInfo)         {}
func (h *Base) OnSessionClosed(info SessionInfo)              {}
func (h *Base) OnSubscribed(info SubscriptionInfo)            {}
func (h *Base) OnUnsubscribed(info SubscriptionInfo)          {}
func (h *Base) OnVarUpdatePublished(info VarUpdateInfo)       {}
func (h *Base) OnSamplerTick(info SamplerTickInfo)            {}
func (h *Base) OnOffsetWriteRejected(info OffsetRejectInfo)   {}
