package signupform

// Phase is the postcode verification state of a form. Exactly one phase is
// active at a time, so "verified while awaiting selection" cannot be expressed.
type Phase int

const (
	// PhaseIdle: no verification bound, trigger enabled
	PhaseIdle Phase = iota
	// PhaseChecking: lookup call in flight, trigger disabled
	PhaseChecking
	// PhaseVerified: an address is bound and the form may be submitted
	PhaseVerified
	// PhaseNotFound: idle, with the "not found" notice showing
	PhaseNotFound
	// PhaseAwaitingSelection: several candidates returned, user must pick one
	PhaseAwaitingSelection
	// PhaseLookupFailed: idle, with the lookup failure notice showing
	PhaseLookupFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:              "idle",
	PhaseChecking:          "checking",
	PhaseVerified:          "verified",
	PhaseNotFound:          "not_found",
	PhaseAwaitingSelection: "awaiting_selection",
	PhaseLookupFailed:      "lookup_failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// canVerify reports whether the verify trigger accepts a click
func (p Phase) canVerify() bool {
	return p == PhaseIdle || p == PhaseNotFound || p == PhaseLookupFailed
}

// canCancel reports whether the cancel action is offered
func (p Phase) canCancel() bool {
	return p == PhaseVerified || p == PhaseAwaitingSelection
}

// Checking, Verified, NotFound and AwaitingSelection expose the flag view of the phase.

func (p Phase) Checking() bool          { return p == PhaseChecking }
func (p Phase) Verified() bool          { return p == PhaseVerified }
func (p Phase) NotFound() bool          { return p == PhaseNotFound }
func (p Phase) AwaitingSelection() bool { return p == PhaseAwaitingSelection }
