package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/foreign"
)

// Connection is one established link, tagged for correlation in logs and
// diagnostics. Deferred marks links made by dynamic-output resolution after
// build time.
type Connection struct {
	ID       string
	From     string
	To       string
	Deferred bool
	Time     time.Time
}

// UnresolvedPeer is a pending peer that never connected: its upstream fired
// the no-more-outputs signal without producing a compatible output, or the
// peer had no input left to offer.
type UnresolvedPeer struct {
	Upstream string
	Peer     string
	Reason   string
}

// DanglingOutput is a dynamic output that found no compatible pending peer.
type DanglingOutput struct {
	Element  string
	Port     string
	Contract string
}

// Diagnostics describes what a build produced and what resolution left
// unconnected. Unresolved peers and dangling outputs are tolerated, never
// errors; they are recorded here because an incomplete topology is worth
// noticing.
type Diagnostics struct {
	Connections     []Connection
	UnresolvedPeers []UnresolvedPeer
	DanglingOutputs []DanglingOutput
}

// Pipeline is a built processing graph plus the deferred-connection state
// that completes its topology while it runs.
type Pipeline struct {
	spec    *Spec
	graph   *foreign.Graph
	runtime *foreign.Runtime
	logger  *slog.Logger
	metrics *Metrics
	policy  UnmatchedPolicy

	mu    sync.Mutex
	diags Diagnostics
}

// Spec returns the description this pipeline was built from.
func (p *Pipeline) Spec() *Spec { return p.spec }

// Graph returns the underlying foreign graph.
func (p *Pipeline) Graph() *foreign.Graph { return p.graph }

// Start begins graph execution. Call only after Build returned: deferred
// resolution mutates connection state and must not race construction.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.graph.Start(ctx)
}

// Stop halts graph execution.
func (p *Pipeline) Stop(timeout time.Duration) error {
	return p.graph.Stop(timeout)
}

// Diagnostics returns a snapshot of connection records and leftovers.
func (p *Pipeline) Diagnostics() Diagnostics {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := Diagnostics{
		Connections:     make([]Connection, len(p.diags.Connections)),
		UnresolvedPeers: make([]UnresolvedPeer, len(p.diags.UnresolvedPeers)),
		DanglingOutputs: make([]DanglingOutput, len(p.diags.DanglingOutputs)),
	}
	copy(out.Connections, p.diags.Connections)
	copy(out.UnresolvedPeers, p.diags.UnresolvedPeers)
	copy(out.DanglingOutputs, p.diags.DanglingOutputs)
	return out
}

// cursor is the walk position: the last stage the next entry extends from.
type cursor struct {
	el  *foreign.Element
	cfg *StageConfig
}

// build walks the stage entries and assembles the graph. Semantics per
// entry: go_to resets the cursor to an earlier stage without connecting,
// and when the entry also declares a kind the walk continues from the reset
// cursor as if the entry were plain; link_to connects the cursor to the
// aliased stage, instantiating it on first reference; a plain entry
// instantiates its stage and connects the cursor to it. The sink is
// connected after the walk. Any error aborts the build.
func (p *Pipeline) build() error {
	aliases := p.spec.aliases()

	src, err := p.resolveOrInstantiate(p.spec.Source)
	if err != nil {
		return err
	}
	cur := cursor{el: src, cfg: p.spec.Source}

	for _, st := range p.spec.Stages {
		switch {
		case st.GoTo != "":
			target := aliases[st.GoTo]
			el, err := p.resolveOrInstantiate(target)
			if err != nil {
				return err
			}
			cur = cursor{el: el, cfg: target}
			if st.Kind == "" {
				continue
			}
			if err := p.extend(&cur, st); err != nil {
				return err
			}
		case st.LinkTo != "":
			if err := p.extend(&cur, aliases[st.LinkTo]); err != nil {
				return err
			}
		default:
			if err := p.extend(&cur, st); err != nil {
				return err
			}
		}
	}

	return p.extend(&cur, p.spec.Sink)
}

// extend resolves cfg to a live stage, connects the cursor to it, and
// advances the cursor.
func (p *Pipeline) extend(cur *cursor, cfg *StageConfig) error {
	el, err := p.resolveOrInstantiate(cfg)
	if err != nil {
		return err
	}
	if err := p.connect(cur.el, cur.cfg, el, cfg); err != nil {
		return err
	}
	cur.el, cur.cfg = el, cfg
	return nil
}

// resolveOrInstantiate is the idempotent fetch: a config that already
// produced an element resolves to that element by its recorded runtime
// name; otherwise a new element is created from the config's kind and
// properties, added to the graph, and the assigned name is recorded so
// every later reference lands on the same instance.
func (p *Pipeline) resolveOrInstantiate(cfg *StageConfig) (*foreign.Element, error) {
	if name := cfg.RuntimeName(); name != "" {
		el, err := p.graph.ByName(name)
		if err != nil {
			return nil, errors.Wrap(err, "Pipeline", "resolveOrInstantiate", "fetch recorded stage")
		}
		return el, nil
	}

	el, err := p.runtime.NewElement(cfg.Kind, cfg.Properties)
	if err != nil {
		return nil, err
	}
	if err := p.graph.Add(el); err != nil {
		_ = el.Object().Unref()
		return nil, err
	}
	cfg.setRuntimeName(el.Name())
	if p.metrics != nil {
		p.metrics.stagesInstantiated.Inc()
	}
	p.logger.Debug("stage instantiated",
		"stage", cfg.displayName(),
		"kind", cfg.Kind,
		"element", el.Name())
	return el, nil
}

// connect attaches up's output to down's input. A free static output links
// synchronously and any failure is fatal. A dynamic-output upstream with no
// static output left defers the connection: down becomes a pending peer and
// the one-shot no-more-outputs callback is registered once per upstream.
func (p *Pipeline) connect(up *foreign.Element, upCfg *StageConfig, down *foreign.Element, downCfg *StageConfig) error {
	if out := up.UnlinkedOutput(); out != nil {
		in, err := down.FreeInput()
		if err != nil {
			return err
		}
		if err := out.Link(in); err != nil {
			return err
		}
		p.recordConnection(out, in, false)
		if p.metrics != nil {
			p.metrics.linksStatic.Inc()
		}
		return nil
	}

	if up.Kind().DynamicOutputs {
		return p.deferConnection(up, upCfg, down, downCfg)
	}

	return errors.WrapFatal(
		fmt.Errorf("element %q has no output for %q: %w", up.Name(), down.Name(), errors.ErrNoFreePort),
		"Pipeline", "connect", "find output port")
}

// deferConnection records down as a pending peer of up's config and arms
// the resolution callback. The downstream must still be connectable, so a
// peer with no input at all is rejected here rather than silently never
// matching.
func (p *Pipeline) deferConnection(up *foreign.Element, upCfg *StageConfig, down *foreign.Element, downCfg *StageConfig) error {
	if _, ok := down.InputContract(); !ok {
		return errors.WrapFatal(
			fmt.Errorf("pending peer %q has no input port: %w", down.Name(), errors.ErrNoFreePort),
			"Pipeline", "connect", "record pending peer")
	}

	upCfg.addPending(downCfg)
	if p.metrics != nil {
		p.metrics.linksDeferred.Inc()
	}
	p.logger.Debug("connection deferred",
		"upstream", up.Name(),
		"peer", downCfg.displayName())

	if upCfg.markNotifying() {
		up.OnNoMorePorts(func(el *foreign.Element) {
			p.resolvePending(el, upCfg)
		})
	}
	return nil
}

// resolvePending completes the deferred topology when an upstream signals
// that its dynamic outputs are final. It runs on whatever goroutine drives
// the upstream, so failures go to the graph bus, never a panic. The
// pipeline lock serializes it against resolutions for other upstreams that
// might compete for the same peer inputs.
func (p *Pipeline) resolvePending(up *foreign.Element, upCfg *StageConfig) {
	defer func() {
		if r := recover(); r != nil {
			p.graph.Bus().Error(up.Name(), fmt.Errorf("pending resolution panic: %v", r))
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	var outs []*foreign.Port
	for _, port := range up.OutputPorts() {
		if !port.Linked() {
			outs = append(outs, port)
		}
	}
	outContracts := make([]foreign.Contract, len(outs))
	for i, port := range outs {
		outContracts[i] = port.Contract()
	}

	peers := upCfg.pendingPeers()
	els := make([]*foreign.Element, len(peers))
	cands := make([]peerCandidate, len(peers))
	for i, peer := range peers {
		el, err := p.graph.ByName(peer.RuntimeName())
		if err != nil {
			continue
		}
		els[i] = el
		contract, ok := el.InputContract()
		cands[i] = peerCandidate{contract: contract, available: ok}
	}

	matches := matchPendingPorts(outContracts, cands)

	matchedOut := make([]bool, len(outs))
	matchedPeer := make([]bool, len(peers))
	for _, m := range matches {
		in, err := els[m.peer].FreeInput()
		if err != nil {
			p.graph.Bus().Error(up.Name(), err)
			continue
		}
		if err := outs[m.output].Link(in); err != nil {
			p.graph.Bus().Error(up.Name(), err)
			continue
		}
		matchedOut[m.output] = true
		matchedPeer[m.peer] = true
		p.recordConnectionLocked(outs[m.output], in, true)
		if p.metrics != nil {
			p.metrics.pendingResolved.Inc()
		}
	}
	upCfg.retainPending(matchedPeer)

	for oi, matched := range matchedOut {
		if !matched {
			p.noteDanglingLocked(outs[oi])
		}
	}
	for pi, matched := range matchedPeer {
		if matched {
			continue
		}
		reason := "no compatible output"
		if !cands[pi].available {
			reason = "no free input"
		}
		p.noteUnresolvedLocked(up, peers[pi], reason)
	}
}

func (p *Pipeline) recordConnection(out, in *foreign.Port, deferred bool) {
	p.mu.Lock()
	p.recordConnectionLocked(out, in, deferred)
	p.mu.Unlock()
}

func (p *Pipeline) recordConnectionLocked(out, in *foreign.Port, deferred bool) {
	conn := Connection{
		ID:       uuid.New().String(),
		From:     out.FullName(),
		To:       in.FullName(),
		Deferred: deferred,
		Time:     time.Now(),
	}
	p.diags.Connections = append(p.diags.Connections, conn)
	p.logger.Debug("stages connected",
		"connection_id", conn.ID,
		"from", conn.From,
		"to", conn.To,
		"deferred", deferred)
}

func (p *Pipeline) noteDanglingLocked(out *foreign.Port) {
	p.diags.DanglingOutputs = append(p.diags.DanglingOutputs, DanglingOutput{
		Element:  out.Owner().Name(),
		Port:     out.Name(),
		Contract: out.Contract().String(),
	})
	if p.metrics != nil {
		p.metrics.outputsDangling.Inc()
	}
	switch p.policy {
	case UnmatchedWarn:
		p.logger.Warn("dynamic output unconnected",
			"element", out.Owner().Name(),
			"port", out.Name())
		p.graph.Bus().Warning(out.Owner().Name(),
			fmt.Sprintf("dynamic output %s found no pending peer", out.FullName()))
	case UnmatchedError:
		p.graph.Bus().Error(out.Owner().Name(),
			fmt.Errorf("dynamic output %s found no pending peer", out.FullName()))
	}
}

func (p *Pipeline) noteUnresolvedLocked(up *foreign.Element, peer *StageConfig, reason string) {
	p.diags.UnresolvedPeers = append(p.diags.UnresolvedPeers, UnresolvedPeer{
		Upstream: up.Name(),
		Peer:     peer.displayName(),
		Reason:   reason,
	})
	if p.metrics != nil {
		p.metrics.pendingUnresolved.Inc()
	}
	switch p.policy {
	case UnmatchedWarn:
		p.logger.Warn("pending peer unresolved",
			"upstream", up.Name(),
			"peer", peer.displayName(),
			"reason", reason)
		p.graph.Bus().Warning(up.Name(),
			fmt.Sprintf("pending peer %s never connected: %s", peer.displayName(), reason))
	case UnmatchedError:
		p.graph.Bus().Error(up.Name(),
			fmt.Errorf("pending peer %s never connected: %s", peer.displayName(), reason))
	}
}
