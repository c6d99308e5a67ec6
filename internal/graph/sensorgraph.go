package graph

import (
	"log/slog"

	"github.com/iotile-sg/sensorgraph/internal/config"
	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/storage"
	"github.com/iotile-sg/sensorgraph/internal/stream"
	"github.com/iotile-sg/sensorgraph/internal/streamer"
)

// SensorGraph is the DAG container: it exclusively owns a SensorLog,
// every node, and every streamer (spec.md §4.1 Ownership). Walkers
// belong to SensorLog; nodes and streamers only hold back-references to
// them.
type SensorGraph struct {
	log      *sensorlog.SensorLog
	registry *Registry
	device   config.DeviceModel
	logger   *slog.Logger

	nodes []*Node
	roots []*Node

	streamers *streamer.Registry

	constants map[stream.ID]uint32
	metadata  map[string]string
	configs   *config.ConfigDatabase

	tick uint32
}

// New builds an empty SensorGraph over an existing SensorLog. reg may be
// nil, in which case DefaultRegistry() is used (§9's "provide a
// convenience default").
func New(log *sensorlog.SensorLog, device config.DeviceModel, reg *Registry, logger *slog.Logger) *SensorGraph {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &SensorGraph{
		log:       log,
		registry:  reg,
		device:    device,
		logger:    logger,
		streamers: streamer.NewRegistry(device.MaxStreamers),
		constants: make(map[stream.ID]uint32),
		metadata:  make(map[string]string),
		configs:   config.NewConfigDatabase(),
	}
}

// AddNode parses a DSL descriptor, creates walkers for its inputs against
// SensorLog, wires predecessor back-references, and appends it to the
// graph. The node joins roots iff any input selector is of input type.
// Enforces max_nodes.
func (g *SensorGraph) AddNode(descriptor string) (*Node, error) {
	if len(g.nodes) >= g.device.MaxNodes {
		return nil, &ResourceUsageError{Message: "max_nodes exceeded", Limit: g.device.MaxNodes}
	}

	parsed, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	fn, ok := g.registry.Lookup(parsed.FuncName)
	if !ok {
		return nil, &ProcessingFunctionError{FuncName: parsed.FuncName}
	}

	node := &Node{Output: parsed.Output, FuncName: parsed.FuncName, Func: fn, Descriptor: descriptor}

	isRoot := false
	for i, in := range parsed.Inputs {
		w, err := g.log.CreateWalker(in.Selector, false)
		if err != nil {
			return nil, err
		}
		node.ConnectInput(i, in.Selector, w, in.Trigger)
		if in.Selector.Input() {
			isRoot = true
		}
	}

	for _, existing := range g.nodes {
		for _, in := range parsed.Inputs {
			if in.Selector.Matches(existing.Output) {
				existing.ConnectOutput(node)
				break
			}
		}
	}

	g.nodes = append(g.nodes, node)
	if isRoot {
		g.roots = append(g.roots, node)
	}
	return node, nil
}

// AddStreamer builds a streamer over sel, links its walker against
// SensorLog, and registers it. Enforces max_streamers.
func (g *SensorGraph) AddStreamer(sel stream.Selector, trig streamer.Trigger, reportType streamer.ReportType, reliable bool, withOther int) (*streamer.Streamer, error) {
	s := streamer.New(sel, trig, reportType, reliable, withOther)
	if err := s.LinkToStorage(g.log); err != nil {
		return nil, err
	}
	if err := g.streamers.Add(s); err != nil {
		return nil, &ResourceUsageError{Message: err.Error(), Limit: g.device.MaxStreamers}
	}
	return s, nil
}

// AddConfig records the configuration variables for a slot and applies
// the two rollover-policy variables to the underlying storage engine
// immediately (storage_fillstop/streaming_fillstop are the inverse of
// the engine's rollover-enabled flag).
func (g *SensorGraph) AddConfig(slot config.Slot, vars config.ConfigVars) {
	g.configs.Set(slot, vars)
	g.log.SetRollover(storage.Storage, !vars.StorageFillStop)
	g.log.SetRollover(storage.Streaming, !vars.StreamingFillStop)
}

// GetConfig returns the configuration variables recorded for a slot.
func (g *SensorGraph) GetConfig(slot config.Slot) config.ConfigVars {
	return g.configs.Get(slot)
}

// AddConstant sets a constant stream's initial value and records it so
// InitializeRemainingConstants does not overwrite it later.
func (g *SensorGraph) AddConstant(id stream.ID, value uint32) error {
	if !id.Constant() {
		return &ArgumentError{Message: "not a constant stream", Context: map[string]any{"stream": id.String()}}
	}
	g.constants[id] = value
	_, err := g.log.Push(stream.Reading{Stream: id, Value: value})
	return err
}

// LoadConstants bulk-applies AddConstant over a set of values, e.g. from
// a persisted snapshot.
func (g *SensorGraph) LoadConstants(values map[stream.ID]uint32) error {
	for id, v := range values {
		if err := g.AddConstant(id, v); err != nil {
			return err
		}
	}
	return nil
}

// InitializeRemainingConstants assigns defaultValue to every constant
// stream referenced by a node input or streamer selector that was never
// explicitly set via AddConstant/LoadConstants — called once after
// construction, before the first process_input.
func (g *SensorGraph) InitializeRemainingConstants(defaultValue uint32) error {
	seen := make(map[stream.ID]bool, len(g.constants))
	for id := range g.constants {
		seen[id] = true
	}

	touch := func(sel stream.Selector) error {
		if !sel.IsExact() {
			return nil
		}
		id := sel.StreamID()
		if !id.Constant() || seen[id] {
			return nil
		}
		seen[id] = true
		g.constants[id] = defaultValue
		_, err := g.log.Push(stream.Reading{Stream: id, Value: defaultValue})
		return err
	}

	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if err := touch(in.Selector); err != nil {
				return err
			}
		}
	}
	for _, s := range g.streamers.All() {
		if err := touch(s.Selector); err != nil {
			return err
		}
	}
	return nil
}

// AddMetadata records a free-form key/value annotation (device
// attributes, firmware tags) alongside the graph.
func (g *SensorGraph) AddMetadata(key, value string) {
	g.metadata[key] = value
}

// Metadata returns a recorded annotation and whether it was set.
func (g *SensorGraph) Metadata(key string) (string, bool) {
	v, ok := g.metadata[key]
	return v, ok
}

// IsOutput reports whether id names an output-class stream (buffered or
// unbuffered output).
func (g *SensorGraph) IsOutput(id stream.ID) bool {
	t := id.Type()
	return t == stream.BufferedOutput || t == stream.UnbufferedOutput
}

// GetTick returns the number of process_input calls evaluated so far.
func (g *SensorGraph) GetTick() uint32 {
	return g.tick
}

// MarkStreamer records a manual trigger for the streamer at index,
// consumed by the next CheckStreamers call.
func (g *SensorGraph) MarkStreamer(index int) error {
	return g.streamers.Mark(index)
}

// CheckStreamers returns the streamers that should fire now.
func (g *SensorGraph) CheckStreamers(blacklist map[int]bool) []*streamer.Streamer {
	return g.streamers.Check(blacklist)
}

func (g *SensorGraph) markFunc() MarkFunc {
	return func(idx int) {
		if err := g.streamers.Mark(idx); err != nil && g.logger != nil {
			g.logger.Warn("mark_streamer: invalid index", "index", idx, "err", err)
		}
	}
}

// ProcessInput is the engine's single tick entry point: push the
// external reading, then propagate it breadth-first over the live DAG,
// firing every node whose trigger becomes satisfied and enqueueing its
// outputs when it produces data. Processing-function errors are caught,
// logged, and swallowed — the tick never aborts.
func (g *SensorGraph) ProcessInput(id stream.ID, value uint32, rawTime uint32, rpc RPCExecutor) error {
	g.tick++

	if _, err := g.log.Push(stream.Reading{Stream: id, Value: value, RawTime: rawTime}); err != nil {
		return err
	}

	queue := append([]*Node(nil), g.roots...)
	mark := g.markFunc()

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if !n.Triggered() {
			continue
		}

		results, err := n.Process(rpc, mark)
		if err != nil {
			if g.logger != nil {
				g.logger.Error("processing function failed", "node", n.Descriptor, "func", n.FuncName, "err", err)
			}
			continue
		}

		produced := 0
		for i := range results {
			results[i].RawTime = rawTime
			if _, err := g.log.Push(results[i]); err != nil {
				if g.logger != nil {
					g.logger.Error("pushing node output failed", "node", n.Descriptor, "err", err)
				}
				continue
			}
			produced++
		}

		if produced > 0 {
			queue = append(queue, n.Outputs...)
		}
	}

	g.streamers.Tick()
	return nil
}

// IterateBFS walks the live DAG breadth-first from the roots, visiting
// each reachable node exactly once, independent of process_input's
// trigger-gated traversal — used by dump/debug tooling.
func (g *SensorGraph) IterateBFS(visit func(*Node)) {
	queue := append([]*Node(nil), g.roots...)
	seen := make(map[*Node]bool, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		visit(n)
		queue = append(queue, n.Outputs...)
	}
}

func containsNode(set []*Node, n *Node) bool {
	for _, c := range set {
		if c == n {
			return true
		}
	}
	return false
}

// SortNodes computes a topological order over the live DAG via Kahn's
// algorithm (no external toposort library: the graph here is small and
// the ordering is a one-shot storage-serialization step, not a runtime
// hot path — see DESIGN.md) and reorders nodes in place. Invariant after
// the call: every root occupies one of the first len(roots) positions;
// NodeConnectionError otherwise. This order is for serialization only —
// runtime dispatch always uses BFS + trigger evaluation via roots.
func (g *SensorGraph) SortNodes() error {
	inDegree := make(map[*Node]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n] = 0
	}
	for _, n := range g.nodes {
		for _, out := range n.Outputs {
			inDegree[out]++
		}
	}

	var queue []*Node
	queue = append(queue, g.roots...)
	for _, n := range g.nodes {
		if inDegree[n] == 0 && !containsNode(g.roots, n) {
			queue = append(queue, n)
		}
	}

	visited := make(map[*Node]bool, len(g.nodes))
	order := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)
		for _, out := range n.Outputs {
			inDegree[out]--
			if inDegree[out] == 0 {
				queue = append(queue, out)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return &NodeConnectionError{Message: "graph contains a cycle or an unreachable node"}
	}

	if len(g.roots) > len(order) {
		return &NodeConnectionError{Message: "more roots than nodes"}
	}
	for i, n := range order[:len(g.roots)] {
		if !containsNode(g.roots, n) {
			return &NodeConnectionError{Message: "topological sort did not place all roots first", NodeDescriptor: n.Descriptor, InputIndex: i}
		}
	}

	g.nodes = order
	return nil
}

// DumpNodes returns every node's original DSL descriptor, in current
// storage order (post-SortNodes, if called).
func (g *SensorGraph) DumpNodes() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Descriptor
	}
	return out
}

// DumpStreamers returns a human-readable line per registered streamer.
func (g *SensorGraph) DumpStreamers() []string {
	all := g.streamers.All()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.String()
	}
	return out
}

// Nodes returns the graph's nodes in current storage order.
func (g *SensorGraph) Nodes() []*Node {
	return g.nodes
}

// Roots returns the graph's root nodes (those with an input-class
// selector), in add-order.
func (g *SensorGraph) Roots() []*Node {
	return g.roots
}
