// Package graph implements the node/trigger/processing-function machinery
// and the SensorGraph DAG container: DSL-compiled nodes, BFS dispatch, and
// topological ordering for serialization.
package graph

import "fmt"

// ArgumentError reports invalid input to a pure operation — carries
// structured context rather than just a message, per spec.md §7.
type ArgumentError struct {
	Message string
	Context map[string]any
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument error: %s %v", e.Message, e.Context)
}

// ResourceUsageError reports that a DeviceModel-imposed capacity limit was
// exceeded at graph-build time.
type ResourceUsageError struct {
	Message string
	Limit   int
}

func (e *ResourceUsageError) Error() string {
	return fmt.Sprintf("resource usage error: %s (limit %d)", e.Message, e.Limit)
}

// NodeConnectionError reports a DAG-construction failure found by
// SortNodes: a cycle or unreachable node, or a post-sort invariant
// violation.
type NodeConnectionError struct {
	Message         string
	NodeDescriptor  string
	InputSelector   string
	InputIndex      int
}

func (e *NodeConnectionError) Error() string {
	return fmt.Sprintf("node connection error: %s (descriptor=%q selector=%q index=%d)",
		e.Message, e.NodeDescriptor, e.InputSelector, e.InputIndex)
}

// ProcessingFunctionError reports that a node descriptor names a
// processing function not present in the compile-time registry.
type ProcessingFunctionError struct {
	FuncName string
}

func (e *ProcessingFunctionError) Error() string {
	return fmt.Sprintf("processing function error: unknown function %q", e.FuncName)
}
