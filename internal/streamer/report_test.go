package streamer

import (
	"testing"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

func TestAssembleIndividualReportsOnePerReading(t *testing.T) {
	log := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 10)

	s := New(stream.Exact(id), Trigger{Kind: OnCount, Count: 1}, IndividualReports, false, NoWithOther)
	s.LinkToStorage(log)

	log.Push(stream.Reading{Stream: id, Value: 1})
	log.Push(stream.Reading{Stream: id, Value: 2})

	reports, err := Assemble(s, CompressionGzip)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 individual reports, got %d", len(reports))
	}
	for _, r := range reports {
		if len(r.Readings) != 1 {
			t.Fatalf("expected 1 reading per individual report, got %d", len(r.Readings))
		}
		if len(r.Payload) == 0 {
			t.Fatal("expected non-empty compressed payload")
		}
	}
}

func TestAssembleBroadcastCombinesIntoOneReport(t *testing.T) {
	log := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 11)

	s := New(stream.Exact(id), Trigger{Kind: OnCount, Count: 1}, BroadcastReports, false, NoWithOther)
	s.LinkToStorage(log)

	log.Push(stream.Reading{Stream: id, Value: 1})
	log.Push(stream.Reading{Stream: id, Value: 2})
	log.Push(stream.Reading{Stream: id, Value: 3})

	reports, err := Assemble(s, CompressionZstd)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 broadcast report, got %d", len(reports))
	}
	if len(reports[0].Readings) != 3 {
		t.Fatalf("expected 3 readings combined, got %d", len(reports[0].Readings))
	}
}

func TestAssembleWithNoDataReturnsNil(t *testing.T) {
	log := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 12)

	s := New(stream.Exact(id), Trigger{Kind: OnCount, Count: 1}, IndividualReports, false, NoWithOther)
	s.LinkToStorage(log)

	reports, err := Assemble(s, CompressionGzip)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if reports != nil {
		t.Fatalf("expected nil reports with no data, got %d", len(reports))
	}
}
