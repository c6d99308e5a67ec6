// Package stream implements the 16-bit stream identifier used throughout
// the sensor-graph runtime: encoding, decoding, and the selector/matching
// rules that the storage engine, walkers, and graph nodes build on.
package stream

import "fmt"

// Type is the 3-bit stream-type field of an encoded StreamID.
type Type uint8

const (
	BufferedInput   Type = 0
	UnbufferedInput Type = 1
	Counter         Type = 2
	Constant        Type = 3
	BufferedOutput  Type = 4
	UnbufferedOutput Type = 5
	reservedType6   Type = 6
	reservedType7   Type = 7
)

func (t Type) String() string {
	switch t {
	case BufferedInput:
		return "buffered_input"
	case UnbufferedInput:
		return "unbuffered_input"
	case Counter:
		return "counter"
	case Constant:
		return "constant"
	case BufferedOutput:
		return "buffered_output"
	case UnbufferedOutput:
		return "unbuffered_output"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(t))
	}
}

// Buffered reports whether readings on this stream type are stored in a
// ring buffer (and therefore receive an allocated reading ID).
func (t Type) Buffered() bool {
	switch t {
	case BufferedInput, Counter, BufferedOutput:
		return true
	default:
		return false
	}
}

// Important reports whether this stream type's pushes are duplicated into
// an associated output stream (spec §6: important = buffered input or
// counter).
func (t Type) Important() bool {
	switch t {
	case BufferedInput, Counter:
		return true
	default:
		return false
	}
}

const (
	systemShift = 15
	typeShift   = 12
	typeMask    = 0x7
	numMask     = 0x0FFF
)

// ID is the 16-bit encoded stream identifier:
// system(1) | type(3) | stream_num(12).
type ID uint16

// Encode packs a system bit, stream type, and stream number into an ID.
func Encode(system bool, typ Type, num uint16) ID {
	var sysBit uint16
	if system {
		sysBit = 1
	}
	return ID(sysBit<<systemShift | uint16(typ&typeMask)<<typeShift | (num & numMask))
}

// System reports whether the system bit is set.
func (s ID) System() bool {
	return (uint16(s)>>systemShift)&1 == 1
}

// Type returns the 3-bit stream-type field.
func (s ID) Type() Type {
	return Type((uint16(s) >> typeShift) & typeMask)
}

// Num returns the 12-bit stream number.
func (s ID) Num() uint16 {
	return uint16(s) & numMask
}

// Buffered reports whether this stream is buffered (allocates reading IDs).
func (s ID) Buffered() bool {
	return s.Type().Buffered()
}

// Important reports whether pushes to this stream duplicate into an
// associated output stream.
func (s ID) Important() bool {
	return s.Type().Important()
}

// Constant reports whether this is a constant (inexhaustible virtual)
// stream.
func (s ID) Constant() bool {
	return s.Type() == Constant
}

// Virtual reports whether this stream never touches a ring buffer —
// true for constant and unbuffered streams.
func (s ID) Virtual() bool {
	return !s.Buffered()
}

// AssociatedOutput returns the output-type stream that an important
// stream's readings are duplicated into. Only valid when Important()
// is true; the stream number is preserved and the type bit is flipped
// to the corresponding output class (buffered input -> buffered output,
// counter -> buffered output, matching the original RSL's association).
func (s ID) AssociatedOutput() ID {
	switch s.Type() {
	case BufferedInput, Counter:
		return Encode(s.System(), BufferedOutput, s.Num())
	default:
		return s
	}
}

func (s ID) String() string {
	return fmt.Sprintf("%s:%d", s.Type(), s.Num())
}
