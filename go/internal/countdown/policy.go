package countdown

import "slices"

// Policy captures everything that differs between the three countdown kinds.
type Policy struct {
	Kind Kind
	// Thresholds are the remaining-second values at which progress is broadcast.
	Thresholds []int
	// AdmissionControl reports whether a running countdown of this kind rejects connections.
	AdmissionControl bool
	// StatusRequiresStarted gates the status override on the server having been opened.
	StatusRequiresStarted bool
}

var (
	beginningThresholds = []int{60, 30, 15, 10, 5, 4, 3, 2, 1}
	restartThresholds   = []int{300, 180, 120, 60, 30, 15, 10, 5, 4, 3, 2, 1}
	endThresholds       = []int{600, 300, 180, 120, 60, 30, 15, 10, 5, 4, 3, 2, 1}
)

// PolicyFor returns the fixed policy of a kind.
func PolicyFor(kind Kind) Policy {
	switch kind {
	case KindBeginning:
		return Policy{Kind: kind, Thresholds: beginningThresholds, AdmissionControl: true}
	case KindRestart:
		return Policy{Kind: kind, Thresholds: restartThresholds, AdmissionControl: true}
	default:
		return Policy{Kind: KindEnd, Thresholds: endThresholds, StatusRequiresStarted: true}
	}
}

// ShouldBroadcast reports whether remaining is one of the policy thresholds.
func (p Policy) ShouldBroadcast(remaining int) bool {
	return slices.Contains(p.Thresholds, remaining)
}
