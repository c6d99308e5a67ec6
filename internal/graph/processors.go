package graph

import (
	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// registerBuiltins populates reg with the small set of processing
// functions a typical sensor-graph deployment composes node descriptors
// from. Each mirrors a processor family present in the original's
// node.py processing function table.
func registerBuiltins(reg *Registry) {
	reg.Register("copy_all_a", copyAllA)
	reg.Register("copy_latest_a", copyLatestA)
	reg.Register("sum", sumA)
	reg.Register("average", averageA)
	reg.Register("count_calls", countCalls)
	reg.Register("trigger_streamer", triggerStreamer)
	reg.Register("call_rpc", callRPC)
}

func drainAll(w sensorlog.Walker) ([]stream.Reading, error) {
	var out []stream.Reading
	for {
		r, err := w.Pop()
		if err != nil {
			if err == sensorlog.ErrStreamEmpty {
				return out, nil
			}
			return nil, err
		}
		out = append(out, r)
	}
}

// copyAllA passes every reading currently buffered on input 0 straight
// through, one output reading per input reading.
func copyAllA(inputs []sensorlog.Walker, _ RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	readings, err := drainAll(inputs[0])
	if err != nil {
		return nil, err
	}
	return readings, nil
}

// copyLatestA drains input 0 and emits only the most recent reading,
// discarding any it skipped over — used for "last value wins" nodes.
func copyLatestA(inputs []sensorlog.Walker, _ RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	readings, err := drainAll(inputs[0])
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return []stream.Reading{readings[len(readings)-1]}, nil
}

// sumA drains every input and emits one reading whose value is their sum.
func sumA(inputs []sensorlog.Walker, _ RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	var total uint32
	var any bool
	var last stream.Reading
	for _, w := range inputs {
		readings, err := drainAll(w)
		if err != nil {
			return nil, err
		}
		for _, r := range readings {
			total += r.Value
			last = r
			any = true
		}
	}
	if !any {
		return nil, nil
	}
	return []stream.Reading{{Value: total, RawTime: last.RawTime}}, nil
}

// averageA drains every input and emits one reading whose value is the
// integer mean of everything popped.
func averageA(inputs []sensorlog.Walker, _ RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	var total uint64
	var count uint64
	var last stream.Reading
	for _, w := range inputs {
		readings, err := drainAll(w)
		if err != nil {
			return nil, err
		}
		for _, r := range readings {
			total += uint64(r.Value)
			count++
			last = r
		}
	}
	if count == 0 {
		return nil, nil
	}
	return []stream.Reading{{Value: uint32(total / count), RawTime: last.RawTime}}, nil
}

// countCalls emits one reading whose value is the number of readings
// popped from input 0 this tick, independent of their values — used for
// counter-style nodes. An invocation that pops nothing emits nothing.
func countCalls(inputs []sensorlog.Walker, _ RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	readings, err := drainAll(inputs[0])
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return []stream.Reading{{Value: uint32(len(readings)), RawTime: readings[len(readings)-1].RawTime}}, nil
}

// callRPC drains input 0 and issues one RPC call per popped reading,
// packing address/rpc id/payload byte out of the reading's value field
// (address = bits 31:24, rpc id = bits 23:8, payload byte = bits 7:0).
// Side-effect only: it never produces output readings.
func callRPC(inputs []sensorlog.Walker, rpc RPCExecutor, _ MarkFunc) ([]stream.Reading, error) {
	if len(inputs) == 0 || rpc == nil {
		return nil, nil
	}
	readings, err := drainAll(inputs[0])
	if err != nil {
		return nil, err
	}
	for _, r := range readings {
		address := uint8(r.Value >> 24)
		rpcID := uint16(r.Value >> 8)
		payload := []byte{byte(r.Value)}
		if _, err := rpc.CallRPC(address, rpcID, payload); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// triggerStreamer drains input 0 for side effect only (keeping walker
// counts accurate) and marks the streamer named by the reading's value
// as the streamer index to fire on the next check_streamers call.
func triggerStreamer(inputs []sensorlog.Walker, _ RPCExecutor, mark MarkFunc) ([]stream.Reading, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	readings, err := drainAll(inputs[0])
	if err != nil {
		return nil, err
	}
	if mark != nil {
		for _, r := range readings {
			mark(int(r.Value))
		}
	}
	return nil, nil
}
