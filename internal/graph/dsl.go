package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// descriptorPattern matches one line of the node DSL:
//
//	(input1, input2?) when trigger(args) => fn_name => output_stream
//
// The trailing "?" on an input selector marks it as context-only: it
// does not participate in gating (its trigger defaults to Always), a
// supplement this implementation adds to let a node consume a second
// stream without requiring fresh data on it every tick.
var descriptorPattern = regexp.MustCompile(
	`^\(\s*(?P<inputs>[^)]*)\s*\)\s+when\s+(?P<trigger>[a-zA-Z_]+)\s*(?:\(\s*(?P<args>[^)]*)\s*\))?\s*=>\s*(?P<func>[a-zA-Z_][a-zA-Z0-9_]*)\s*=>\s*(?P<output>\S+)\s*$`)

// ParsedDescriptor is the result of compiling one DSL line: the input
// selectors (in order, with their per-input trigger) and the resolved
// function name and output selector.
type ParsedDescriptor struct {
	Source   string
	Inputs   []ParsedInput
	FuncName string
	Output   stream.ID
}

// ParsedInput is one parsed `(...)` slot: its selector and whether it
// gates the node (the primary, un-suffixed input) or is context-only
// (suffixed with "?").
type ParsedInput struct {
	Selector stream.Selector
	Trigger  InputTrigger
}

// ParseDescriptor compiles one DSL line into its component parts. It
// does not touch SensorLog or the function registry — AddNode does that
// once parsing succeeds.
func ParseDescriptor(line string) (*ParsedDescriptor, error) {
	line = strings.TrimSpace(line)
	m := descriptorPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, &ArgumentError{Message: "malformed node descriptor", Context: map[string]any{"descriptor": line}}
	}
	names := descriptorPattern.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, n := range names {
		if n != "" {
			groups[n] = m[i]
		}
	}

	primaryTrigger, err := parseTrigger(groups["trigger"], groups["args"])
	if err != nil {
		return nil, err
	}

	inputTokens := splitTopLevel(groups["inputs"])
	if len(inputTokens) == 0 {
		return nil, &ArgumentError{Message: "node descriptor has no inputs", Context: map[string]any{"descriptor": line}}
	}

	inputs := make([]ParsedInput, 0, len(inputTokens))
	for i, tok := range inputTokens {
		tok = strings.TrimSpace(tok)
		optional := strings.HasSuffix(tok, "?")
		tok = strings.TrimSuffix(tok, "?")

		sel, err := parseSelectorToken(tok)
		if err != nil {
			return nil, err
		}

		trig := primaryTrigger
		if optional {
			trig = InputTrigger{Kind: Always}
		}
		inputs = append(inputs, ParsedInput{Selector: sel, Trigger: trig})
	}

	outSel, err := parseSelectorToken(strings.TrimSpace(groups["output"]))
	if err != nil {
		return nil, err
	}
	if !outSel.IsExact() {
		return nil, &ArgumentError{Message: "node output must be an exact stream id", Context: map[string]any{"output": groups["output"]}}
	}

	return &ParsedDescriptor{
		Source:   line,
		Inputs:   inputs,
		FuncName: groups["func"],
		Output:   outSel.StreamID(),
	}, nil
}

func splitTopLevel(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseTrigger(kind, args string) (InputTrigger, error) {
	args = strings.TrimSpace(args)
	switch kind {
	case "whenever_available", "whenever_readings_available":
		return InputTrigger{Kind: WheneverAvailable}, nil
	case "always":
		return InputTrigger{Kind: Always}, nil
	case "count_at_least":
		n, err := strconv.Atoi(args)
		if err != nil {
			return InputTrigger{}, &ArgumentError{Message: "count_at_least requires an integer argument", Context: map[string]any{"args": args}}
		}
		return InputTrigger{Kind: CountAtLeast, N: n}, nil
	case "count_exactly":
		n, err := strconv.Atoi(args)
		if err != nil {
			return InputTrigger{}, &ArgumentError{Message: "count_exactly requires an integer argument", Context: map[string]any{"args": args}}
		}
		return InputTrigger{Kind: CountExactly, N: n}, nil
	default:
		return InputTrigger{}, &ArgumentError{Message: "unknown trigger kind", Context: map[string]any{"trigger": kind}}
	}
}

var typeNames = map[string]stream.Type{
	"buffered_input":    stream.BufferedInput,
	"unbuffered_input":  stream.UnbufferedInput,
	"counter":           stream.Counter,
	"constant":          stream.Constant,
	"buffered_output":   stream.BufferedOutput,
	"unbuffered_output": stream.UnbufferedOutput,
}

// parseSelectorToken accepts either a numeric stream id (e.g. "0x1001",
// "4096") for an exact selector, or a "<scope>:<type>:*" wildcard token
// (e.g. "system:counter:*") matching Selector.String()'s own rendering.
func parseSelectorToken(tok string) (stream.Selector, error) {
	if strings.Contains(tok, ":") {
		parts := strings.Split(tok, ":")
		if len(parts) != 3 || parts[2] != "*" {
			return stream.Selector{}, &ArgumentError{Message: "malformed wildcard selector", Context: map[string]any{"selector": tok}}
		}
		var system bool
		switch parts[0] {
		case "system":
			system = true
		case "user":
			system = false
		default:
			return stream.Selector{}, &ArgumentError{Message: "wildcard scope must be system or user", Context: map[string]any{"selector": tok}}
		}
		typ, ok := typeNames[parts[1]]
		if !ok {
			return stream.Selector{}, &ArgumentError{Message: "unknown stream type in wildcard selector", Context: map[string]any{"selector": tok}}
		}
		return stream.Wildcard(system, typ), nil
	}

	id, err := strconv.ParseUint(tok, 0, 16)
	if err != nil {
		return stream.Selector{}, &ArgumentError{Message: fmt.Sprintf("invalid stream id: %v", err), Context: map[string]any{"selector": tok}}
	}
	return stream.Exact(stream.ID(id)), nil
}
