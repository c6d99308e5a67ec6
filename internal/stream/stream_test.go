package stream

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		system bool
		typ    Type
		num    uint16
	}{
		{false, BufferedInput, 1},
		{true, Counter, 0x7FF},
		{false, Constant, 0},
		{true, UnbufferedOutput, 42},
	}

	for _, c := range cases {
		id := Encode(c.system, c.typ, c.num)
		if id.System() != c.system {
			t.Errorf("system mismatch for %+v: got %v", c, id.System())
		}
		if id.Type() != c.typ {
			t.Errorf("type mismatch for %+v: got %v", c, id.Type())
		}
		if id.Num() != c.num {
			t.Errorf("num mismatch for %+v: got %v", c, id.Num())
		}
	}
}

func TestImportantBit(t *testing.T) {
	important := []Type{BufferedInput, Counter}
	notImportant := []Type{UnbufferedInput, Constant, BufferedOutput, UnbufferedOutput}

	for _, typ := range important {
		if !typ.Important() {
			t.Errorf("expected %v to be important", typ)
		}
	}
	for _, typ := range notImportant {
		if typ.Important() {
			t.Errorf("expected %v to not be important", typ)
		}
	}
}

func TestAssociatedOutput(t *testing.T) {
	in := Encode(false, BufferedInput, 0x100B)
	out := in.AssociatedOutput()
	if out.Type() != BufferedOutput {
		t.Fatalf("expected buffered output type, got %v", out.Type())
	}
	if out.Num() != in.Num() {
		t.Fatalf("expected stream number preserved, got %d want %d", out.Num(), in.Num())
	}

	counter := Encode(false, Counter, 11)
	assoc := counter.AssociatedOutput()
	if assoc.Type() != BufferedOutput || assoc.Num() != 11 {
		t.Fatalf("counter association wrong: %v", assoc)
	}
}

func TestSelectorExactMatch(t *testing.T) {
	id := Encode(false, BufferedOutput, 5)
	sel := Exact(id)

	if !sel.Matches(id) {
		t.Fatal("expected exact selector to match its own id")
	}
	if sel.Matches(Encode(false, BufferedOutput, 6)) {
		t.Fatal("expected exact selector to reject a different id")
	}
}

func TestSelectorWildcardScope(t *testing.T) {
	sel := Wildcard(false, Constant)

	if !sel.Matches(Encode(false, Constant, 3)) {
		t.Fatal("expected wildcard to match same-scope constant stream")
	}
	if sel.Matches(Encode(true, Constant, 3)) {
		t.Fatal("expected wildcard to reject different system scope")
	}
	if sel.Matches(Encode(false, BufferedInput, 3)) {
		t.Fatal("expected wildcard to reject different type")
	}
}

func TestSelectorInexhaustibleAndBuffered(t *testing.T) {
	constSel := Wildcard(false, Constant)
	if !constSel.Inexhaustible() {
		t.Fatal("expected constant wildcard to be inexhaustible")
	}
	if constSel.Buffered() {
		t.Fatal("expected constant wildcard to not be buffered")
	}

	bufSel := Wildcard(false, BufferedInput)
	if bufSel.Inexhaustible() {
		t.Fatal("expected buffered wildcard to not be inexhaustible")
	}
	if !bufSel.Buffered() {
		t.Fatal("expected buffered wildcard to be buffered")
	}
}

func TestSelectorInput(t *testing.T) {
	if !Exact(Encode(false, BufferedInput, 1)).Input() {
		t.Fatal("expected buffered input to be an input selector")
	}
	if !Exact(Encode(false, UnbufferedInput, 1)).Input() {
		t.Fatal("expected unbuffered input to be an input selector")
	}
	if Exact(Encode(false, BufferedOutput, 1)).Input() {
		t.Fatal("expected buffered output to not be an input selector")
	}
}
