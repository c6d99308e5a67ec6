package rpc

import "testing"

func TestPackNoErrorIsZero(t *testing.T) {
	if got := PackSensorLog(NoError); got != 0 {
		t.Fatalf("expected NO_ERROR to pack to 0, got 0x%08x", got)
	}
}

func TestPackAndUnpackRoundTrip(t *testing.T) {
	word := Pack(SensorLogSubsystem, RingBufferFull)
	sub, code := Unpack(word)
	if sub != SensorLogSubsystem {
		t.Fatalf("expected subsystem 0x%02x, got 0x%02x", SensorLogSubsystem, sub)
	}
	if code != RingBufferFull {
		t.Fatalf("expected code %d, got %d", RingBufferFull, code)
	}
}

func TestPackSensorLogMatchesHighByte(t *testing.T) {
	word := PackSensorLog(VirtualStreamNotFound)
	if byte(word>>24) != byte(SensorLogSubsystem) {
		t.Fatalf("expected high byte 0x%02x, got 0x%02x", SensorLogSubsystem, byte(word>>24))
	}
}
