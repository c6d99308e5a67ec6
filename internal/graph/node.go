package graph

import (
	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// TriggerKind is the predicate a node input's trigger evaluates against
// its walker's current count.
type TriggerKind uint8

const (
	WheneverAvailable TriggerKind = iota // count() >= 1
	CountAtLeast                         // count() >= N
	CountExactly                         // count() == N
	Always                               // always satisfied, regardless of count
)

// InputTrigger is one input's firing predicate.
type InputTrigger struct {
	Kind TriggerKind
	N    int
}

// Satisfied reports whether count readings waiting on the input's walker
// meet this trigger's predicate.
func (t InputTrigger) Satisfied(count int) bool {
	switch t.Kind {
	case WheneverAvailable:
		return count >= 1
	case CountAtLeast:
		return count >= t.N
	case CountExactly:
		return count == t.N
	case Always:
		return true
	default:
		return false
	}
}

func (t InputTrigger) String() string {
	switch t.Kind {
	case WheneverAvailable:
		return "whenever_readings_available"
	case CountAtLeast:
		return "count_at_least"
	case CountExactly:
		return "count_exactly"
	case Always:
		return "always"
	default:
		return "unknown"
	}
}

// Input is one of a node's walker/trigger pairs.
type Input struct {
	Selector stream.Selector
	Walker   sensorlog.Walker
	Trigger  InputTrigger
}

// RPCExecutor is the narrow surface a processing function needs to issue
// RPC-surface side effects (e.g. call_rpc) without importing the rpc
// package directly — kept here to avoid a graph<->rpc import cycle.
type RPCExecutor interface {
	CallRPC(address uint8, rpcID uint16, payload []byte) ([]byte, error)
}

// MarkFunc lets a processing function request a streamer be marked for
// its next check_streamers evaluation (spec.md's mark_streamer).
type MarkFunc func(streamerIndex int)

// ProcessFunc is a registered processing function's signature: it is
// handed the node's input walkers directly (REDESIGN FLAGS §9) and pops
// whatever readings it needs from them itself, rather than receiving
// readings pre-popped by Node.Process.
type ProcessFunc func(inputs []sensorlog.Walker, rpc RPCExecutor, mark MarkFunc) ([]stream.Reading, error)

// Node is one vertex of the sensor graph: a set of gated inputs, a
// registered processing function, an output stream, and downstream
// back-references. Constructed by AddNode, never mutated after SortNodes.
type Node struct {
	Output     stream.ID
	Inputs     []Input
	FuncName   string
	Func       ProcessFunc
	Outputs    []*Node
	Descriptor string // the DSL source line this node was compiled from
}

// ConnectInput attaches one input at the given slot, growing Inputs as
// needed. Slots are assigned in DSL-parse order; this accessor exists so
// construction and later inspection share one code path.
func (n *Node) ConnectInput(slot int, sel stream.Selector, w sensorlog.Walker, trig InputTrigger) {
	for len(n.Inputs) <= slot {
		n.Inputs = append(n.Inputs, Input{})
	}
	n.Inputs[slot] = Input{Selector: sel, Walker: w, Trigger: trig}
}

// ConnectOutput appends a downstream back-reference.
func (n *Node) ConnectOutput(out *Node) {
	n.Outputs = append(n.Outputs, out)
}

// Triggered reports whether every input's trigger predicate is satisfied
// simultaneously (AND semantics) against the input walkers' current
// counts.
func (n *Node) Triggered() bool {
	if len(n.Inputs) == 0 {
		return false
	}
	for _, in := range n.Inputs {
		if !in.Trigger.Satisfied(in.Walker.Count()) {
			return false
		}
	}
	return true
}

// Process invokes the registered processing function against this node's
// input walkers and returns whatever output readings it produced. The
// caller (SensorGraph.ProcessInput) is responsible for stamping raw_time
// and pushing the results.
func (n *Node) Process(rpc RPCExecutor, mark MarkFunc) ([]stream.Reading, error) {
	walkers := make([]sensorlog.Walker, len(n.Inputs))
	for i, in := range n.Inputs {
		walkers[i] = in.Walker
	}
	results, err := n.Func(walkers, rpc, mark)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Stream = n.Output
		results[i].ReadingID = 0
	}
	return results, nil
}

// InputSelectors returns the selectors this node's inputs were compiled
// from — used by AddNode to decide root membership and wire predecessors.
func (n *Node) InputSelectors() []stream.Selector {
	sels := make([]stream.Selector, len(n.Inputs))
	for i, in := range n.Inputs {
		sels[i] = in.Selector
	}
	return sels
}
