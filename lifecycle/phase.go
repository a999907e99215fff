package lifecycle

// Phase is a lifecycle state of a Machine.
type Phase int

const (
	// Unmounted is the phase before the first render.
	Unmounted Phase = iota
	// Mounted is the idle phase between proposals.
	Mounted
	// UpdatePending holds while a proposal is gated, committed and rendered.
	UpdatePending
	// Disposed is terminal.
	Disposed
)

func (p Phase) String() string {
	switch p {
	case Unmounted:
		return "unmounted"
	case Mounted:
		return "mounted"
	case UpdatePending:
		return "update-pending"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// Outcome reports what happened to a proposal.
type Outcome int

const (
	// Applied means the proposal was stored, rendered and notified.
	Applied Outcome = iota
	// Vetoed means the proposal was stored but the gate skipped render and notify.
	Vetoed
	// Deferred means the proposal was stored before mount; the first render shows it.
	Deferred
	// Queued means another proposal was in flight; this one runs after it.
	Queued
	// Dropped means the machine was disposed or the transition panicked.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Vetoed:
		return "vetoed"
	case Deferred:
		return "deferred"
	case Queued:
		return "queued"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}
