package lifecycle

// EffectStatus is the outcome of a best-effort side effect. Only the
// authoritative job write can fail a status update; everything
// downstream of it reports one of these instead of an error.
type EffectStatus string

const (
	// EffectOK means the side effect completed.
	EffectOK EffectStatus = "ok"
	// EffectFailed means the side effect failed and was logged and
	// skipped without affecting the request.
	EffectFailed EffectStatus = "failed"
	// EffectSkipped means the side effect did not apply to this
	// transition (for example a tracking signal with no engineer).
	EffectSkipped EffectStatus = "skipped"
)

// Sent reports whether the effect actually completed.
func (s EffectStatus) Sent() bool {
	return s == EffectOK
}

// DispatchResult records the outcome of each notification channel fired
// after a transition. Channels are independent: one failing never
// blocks the others.
type DispatchResult struct {
	Broadcast      EffectStatus `json:"broadcast"`
	TrackingSignal EffectStatus `json:"tracking_signal"`
}
