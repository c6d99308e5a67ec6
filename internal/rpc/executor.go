package rpc

import "fmt"

// HandlerFunc answers one (address, rpcID) RPC call with a raw payload.
type HandlerFunc func(payload []byte) ([]byte, error)

// Executor is a minimal RPCExecutor (see graph.RPCExecutor) backing the
// call_rpc processing function: a table of registered handlers keyed by
// (address, rpcID), mirroring the original's @tile_rpc decorator
// dispatch without pulling in a full virtual-device framework, which is
// out of this subsystem's scope.
type Executor struct {
	handlers map[uint32]HandlerFunc
}

// NewExecutor builds an empty dispatch table.
func NewExecutor() *Executor {
	return &Executor{handlers: make(map[uint32]HandlerFunc)}
}

func key(address uint8, rpcID uint16) uint32 {
	return uint32(address)<<16 | uint32(rpcID)
}

// Register installs a handler for one (address, rpcID) pair.
func (e *Executor) Register(address uint8, rpcID uint16, fn HandlerFunc) {
	e.handlers[key(address, rpcID)] = fn
}

// CallRPC implements graph.RPCExecutor, dispatching to a registered
// handler or reporting an unknown-RPC error.
func (e *Executor) CallRPC(address uint8, rpcID uint16, payload []byte) ([]byte, error) {
	fn, ok := e.handlers[key(address, rpcID)]
	if !ok {
		return nil, fmt.Errorf("rpc: no handler registered for address=%d rpc=0x%04x", address, rpcID)
	}
	return fn(payload)
}
