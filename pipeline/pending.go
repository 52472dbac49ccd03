package pipeline

import "github.com/c360/graft/foreign"

// UnmatchedPolicy decides what happens to dynamic outputs and pending peers
// left over after resolution. Construction has already finished when
// resolution runs, so no policy can fail a build; diagnostics and metrics
// record leftovers under every policy.
type UnmatchedPolicy int

const (
	// UnmatchedSilent records leftovers in diagnostics only.
	UnmatchedSilent UnmatchedPolicy = iota

	// UnmatchedWarn additionally logs and posts a warning to the graph bus.
	UnmatchedWarn

	// UnmatchedError posts an error to the graph bus.
	UnmatchedError
)

// String returns a string representation of the policy.
func (p UnmatchedPolicy) String() string {
	switch p {
	case UnmatchedSilent:
		return "silent"
	case UnmatchedWarn:
		return "warn"
	case UnmatchedError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseUnmatchedPolicy maps a policy name to its value.
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, bool) {
	switch s {
	case "silent", "":
		return UnmatchedSilent, true
	case "warn":
		return UnmatchedWarn, true
	case "error":
		return UnmatchedError, true
	default:
		return UnmatchedSilent, false
	}
}

// peerCandidate is a pending peer's matchable state at resolution time: the
// contract of the input it would offer, or unavailable when it has none
// left.
type peerCandidate struct {
	contract  foreign.Contract
	available bool
}

// portMatch pairs an output index with the pending peer index it connects
// to.
type portMatch struct {
	output int
	peer   int
}

// matchPendingPorts pairs a dynamic stage's unlinked outputs with its
// pending peers. Outputs are visited in creation order; for each, peers are
// scanned in declaration order and the first compatible available peer
// wins. A peer is consumed by at most one output and assignments are never
// revisited, so an earlier pairing stands even when a later output would
// have fit that peer better. Outputs with no compatible peer and peers with
// no compatible output are simply absent from the result.
//
// The function is pure: it sees only contracts and touches no graph state,
// so resolution decisions can be tested without a running graph.
func matchPendingPorts(outputs []foreign.Contract, peers []peerCandidate) []portMatch {
	taken := make([]bool, len(peers))
	var matches []portMatch
	for oi, out := range outputs {
		for pi, peer := range peers {
			if taken[pi] || !peer.available {
				continue
			}
			if out.Accepts(peer.contract) {
				matches = append(matches, portMatch{output: oi, peer: pi})
				taken[pi] = true
				break
			}
		}
	}
	return matches
}
