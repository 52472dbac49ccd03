package pipeline

import (
	"fmt"
	"sync"

	"github.com/c360/graft/errors"
)

// SourceAlias is the alias the source stage answers to when it does not
// declare one. Directives may reference it like any stage alias.
const SourceAlias = "source"

// StageConfig is one entry of a pipeline description: a stage to create
// (kind, alias, property bag) or a structural directive (go_to resets the
// walk cursor, link_to connects the cursor to an aliased stage), or a kind
// accompanied by go_to to extend the pipeline from an earlier point.
//
// A config also carries the build state the walk records on it: the runtime
// name of the element it produced and, on dynamic-output stages, the list of
// downstream configs still waiting for an output.
type StageConfig struct {
	Kind       string         `json:"kind,omitempty"`
	Alias      string         `json:"alias,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	GoTo       string         `json:"go_to,omitempty"`
	LinkTo     string         `json:"link_to,omitempty"`

	mu          sync.Mutex
	runtimeName string
	pending     []*StageConfig
	notifying   bool
}

// RuntimeName returns the name of the live element this config produced,
// empty before the config is instantiated.
func (c *StageConfig) RuntimeName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runtimeName
}

// PendingPeerAliases lists the downstream stages still waiting on this
// config's dynamic outputs, in declaration order.
func (c *StageConfig) PendingPeerAliases() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.pending))
	for i, peer := range c.pending {
		out[i] = peer.displayName()
	}
	return out
}

// displayName identifies the config in errors and diagnostics.
func (c *StageConfig) displayName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Kind
}

func (c *StageConfig) setRuntimeName(name string) {
	c.mu.Lock()
	c.runtimeName = name
	c.mu.Unlock()
}

func (c *StageConfig) addPending(peer *StageConfig) {
	c.mu.Lock()
	c.pending = append(c.pending, peer)
	c.mu.Unlock()
}

// pendingPeers snapshots the pending list in declaration order.
func (c *StageConfig) pendingPeers() []*StageConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*StageConfig, len(c.pending))
	copy(out, c.pending)
	return out
}

// retainPending drops the peers marked resolved, keeping declaration order
// for the rest.
func (c *StageConfig) retainPending(resolved []bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.pending[:0]
	for i, peer := range c.pending {
		if i < len(resolved) && resolved[i] {
			continue
		}
		kept = append(kept, peer)
	}
	c.pending = kept
}

// markNotifying flips the one-shot registration flag, reporting whether the
// caller is the first.
func (c *StageConfig) markNotifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notifying {
		return false
	}
	c.notifying = true
	return true
}

// reset clears build state so a spec can be built again from scratch.
func (c *StageConfig) reset() {
	c.mu.Lock()
	c.runtimeName = ""
	c.pending = nil
	c.notifying = false
	c.mu.Unlock()
}

// Spec is an ordered pipeline description: a source, the stage entries the
// walk visits in order, and a sink connected after the walk.
type Spec struct {
	Name   string         `json:"name,omitempty"`
	Source *StageConfig   `json:"source"`
	Stages []*StageConfig `json:"stages,omitempty"`
	Sink   *StageConfig   `json:"sink"`
}

// sourceAlias returns the alias the source answers to.
func (s *Spec) sourceAlias() string {
	if s.Source.Alias != "" {
		return s.Source.Alias
	}
	return SourceAlias
}

// Validate checks the spec's structure. Every violation is a fatal
// configuration error raised before any stage is instantiated:
// source and sink must declare kinds and no directives, an entry carries at
// most one directive, link_to entries declare no kind, aliases require a
// kind and are unique, go_to must name an alias declared strictly earlier
// (the source counts), and link_to must name an alias declared anywhere.
func (s *Spec) Validate() error {
	if s.Source == nil || s.Source.Kind == "" {
		return invalidSpec("pipeline source stage is required")
	}
	if s.Sink == nil || s.Sink.Kind == "" {
		return invalidSpec("pipeline sink stage is required")
	}
	if s.Source.GoTo != "" || s.Source.LinkTo != "" {
		return invalidSpec("source stage cannot carry a structural directive")
	}
	if s.Sink.GoTo != "" || s.Sink.LinkTo != "" {
		return invalidSpec("sink stage cannot carry a structural directive")
	}

	// Alias declaration positions: source before every stage, sink after.
	const sinkPos = int(^uint(0) >> 1)
	declared := map[string]int{s.sourceAlias(): -1}
	if s.Sink.Alias != "" {
		if s.Sink.Alias == s.sourceAlias() {
			return invalidSpecf("alias %q: %w", s.Sink.Alias, errors.ErrDuplicateAlias)
		}
		declared[s.Sink.Alias] = sinkPos
	}
	for i, st := range s.Stages {
		if st == nil {
			return invalidSpecf("stage %d is empty: %w", i, errors.ErrEmptyStage)
		}
		if st.Alias == "" {
			continue
		}
		if st.Kind == "" {
			return invalidSpecf("stage %d: alias %q requires a kind", i, st.Alias)
		}
		if _, dup := declared[st.Alias]; dup {
			return invalidSpecf("alias %q: %w", st.Alias, errors.ErrDuplicateAlias)
		}
		declared[st.Alias] = i
	}

	for i, st := range s.Stages {
		switch {
		case st.GoTo != "" && st.LinkTo != "":
			return invalidSpecf("stage %d: go_to and link_to: %w", i, errors.ErrDirectiveConflict)
		case st.LinkTo != "" && st.Kind != "":
			return invalidSpecf("stage %d: link_to with a kind: %w", i, errors.ErrDirectiveConflict)
		case st.Kind == "" && st.GoTo == "" && st.LinkTo == "":
			return invalidSpecf("stage %d: %w", i, errors.ErrEmptyStage)
		}
		if st.GoTo != "" {
			pos, ok := declared[st.GoTo]
			if !ok || pos >= i {
				return invalidSpecf("stage %d: go_to %q: %w", i, st.GoTo, errors.ErrUnknownAlias)
			}
		}
		if st.LinkTo != "" {
			if _, ok := declared[st.LinkTo]; !ok {
				return invalidSpecf("stage %d: link_to %q: %w", i, st.LinkTo, errors.ErrUnknownAlias)
			}
		}
	}
	return nil
}

// aliases maps every declared alias to its config. Call only on a validated
// spec.
func (s *Spec) aliases() map[string]*StageConfig {
	out := map[string]*StageConfig{s.sourceAlias(): s.Source}
	if s.Sink.Alias != "" {
		out[s.Sink.Alias] = s.Sink
	}
	for _, st := range s.Stages {
		if st.Alias != "" {
			out[st.Alias] = st
		}
	}
	return out
}

// reset clears build state on every config.
func (s *Spec) reset() {
	s.Source.reset()
	s.Sink.reset()
	for _, st := range s.Stages {
		st.reset()
	}
}

func invalidSpec(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%s", msg), "Spec", "Validate", "check pipeline structure")
}

func invalidSpecf(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf(format, args...), "Spec", "Validate", "check pipeline structure")
}
