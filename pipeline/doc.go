// Package pipeline turns an ordered, alias-addressable stage description
// into a connected processing graph, tolerating stages whose outputs only
// appear after the graph is running.
//
// # The Walk
//
// A pipeline description is a source, a sequence of stage entries, and a
// sink. The builder walks the entries keeping a cursor on the last stage;
// each plain entry instantiates its stage and connects the cursor to it.
// Two directives bend the line into a graph:
//
//	go_to <alias>    reset the cursor to an earlier stage, connect nothing;
//	                 with a kind on the same entry the walk then extends
//	                 from that point
//	link_to <alias>  connect the cursor to the aliased stage, creating it
//	                 on first reference
//
// Stage resolution is idempotent: however many entries reference one alias,
// exactly one element exists, because each config records the runtime name
// of the element it produced and later references fetch it by that name.
//
// # Dynamic Outputs
//
// A stage whose outputs are discovered at runtime (a format-sniffing
// demultiplexer, say) cannot be connected downstream at build time. The
// builder records each downstream as a pending peer of that stage and
// registers a one-shot callback for its no-more-outputs signal. When the
// signal fires, unlinked outputs are paired with pending peers in
// declaration order, first compatible match wins, no backtracking. An
// output or peer left over is not an error; it lands in Diagnostics, and
// the UnmatchedPolicy decides whether it also warns or posts to the graph
// bus.
//
// Resolution runs on the goroutine driving the upstream stage. Failures
// there post to the graph's bus rather than panicking; build-time
// connection failures, by contrast, abort the build and release every
// element created so far.
//
// # Quick Start
//
//	builder, err := pipeline.NewBuilder(rt, pipeline.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	p, err := builder.Build(&pipeline.Spec{
//		Source: &pipeline.StageConfig{Kind: "source"},
//		Stages: []*pipeline.StageConfig{
//			{Kind: "decode", Alias: "d"},
//			{Kind: "queue"},
//		},
//		Sink: &pipeline.StageConfig{Kind: "sink"},
//	})
//	if err != nil {
//		return err
//	}
//
//	if err := p.Start(ctx); err != nil {
//		return err
//	}
//	defer p.Stop(5 * time.Second)
package pipeline
