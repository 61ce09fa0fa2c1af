package output

import (
	"testing"

	"i2c-dmxd/pkg/buffer"
	"i2c-dmxd/pkg/pixel"
)

type fakeBackend struct {
	bufs      map[int][]byte
	committed map[int]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{bufs: map[int][]byte{}, committed: map[int]int{}}
}

func (f *fakeBackend) Checkout(output, length, latch int) []byte {
	buf := make([]byte, length+latch)
	f.bufs[output] = buf
	return buf[:length:len(buf)]
}

func (f *fakeBackend) Commit(output int) error {
	f.committed[output]++
	return nil
}

func TestDefaultPersonalityAndDescription(t *testing.T) {
	be := newFakeBackend()
	s := New(0, "uid-1", "", be)
	if got := s.GetPersonality(); got != int(pixel.WS2801Individual) {
		t.Fatalf("GetPersonality() = %d, want %d", got, pixel.WS2801Individual)
	}
	want := "Output 0, WS2801 Individual Control, 0 slots @ 1. (uid-1)"
	if got := s.Description(); got != want {
		t.Fatalf("Description() = %q, want %q", got, want)
	}
}

func TestSetPersonalityValidation(t *testing.T) {
	s := New(0, "uid", "", newFakeBackend())
	if err := s.SetPersonality(0); err == nil {
		t.Fatalf("SetPersonality(0) succeeded, want error")
	}
	if err := s.SetPersonality(11); err == nil {
		t.Fatalf("SetPersonality(11) succeeded, want error")
	}
	if err := s.SetPersonality(int(pixel.APA102PBCombined)); err != nil {
		t.Fatalf("SetPersonality(valid): %v", err)
	}
	if got := s.GetPersonality(); got != int(pixel.APA102PBCombined) {
		t.Fatalf("GetPersonality() = %d, want %d", got, pixel.APA102PBCombined)
	}
}

func TestSetStartAddressBounds(t *testing.T) {
	s := New(0, "uid", "", newFakeBackend())
	if err := s.SetPixelCount(5); err != nil {
		t.Fatalf("SetPixelCount: %v", err)
	}
	// footprint = 5*3 = 15; valid range for a is [1, 513-15] = [1, 498].
	if err := s.SetStartAddress(498); err != nil {
		t.Fatalf("SetStartAddress(498): %v", err)
	}
	if err := s.SetStartAddress(499); err == nil {
		t.Fatalf("SetStartAddress(499) succeeded, want error")
	}
	if err := s.SetStartAddress(0); err == nil {
		t.Fatalf("SetStartAddress(0) succeeded, want error")
	}
}

func TestWriteDMXNoOpDuringIdentify(t *testing.T) {
	be := newFakeBackend()
	s := New(0, "uid", "", be)
	if err := s.SetPixelCount(1); err != nil {
		t.Fatalf("SetPixelCount: %v", err)
	}
	if err := s.SetIdentify(true); err != nil {
		t.Fatalf("SetIdentify(true): %v", err)
	}
	if be.committed[0] != 1 {
		t.Fatalf("committed = %d after SetIdentify(true), want 1", be.committed[0])
	}
	if !equalBytes(be.bufs[0], []byte{0xFF, 0xFF, 0xFF}) {
		t.Fatalf("full-on frame = %v, want all 0xFF", be.bufs[0])
	}

	dmx := buffer.FromSlice([]byte{1, 2, 3})
	if err := s.WriteDMX(dmx); err != nil {
		t.Fatalf("WriteDMX during identify: %v", err)
	}
	if be.committed[0] != 1 {
		t.Fatalf("committed = %d after WriteDMX during identify, want still 1", be.committed[0])
	}

	if err := s.SetIdentify(false); err != nil {
		t.Fatalf("SetIdentify(false): %v", err)
	}
	if be.committed[0] != 2 {
		t.Fatalf("committed = %d after SetIdentify(false), want 2", be.committed[0])
	}
	if !equalBytes(be.bufs[0], []byte{0, 0, 0}) {
		t.Fatalf("blackout frame = %v, want all zero", be.bufs[0])
	}

	if err := s.WriteDMX(dmx); err != nil {
		t.Fatalf("WriteDMX after identify off: %v", err)
	}
	if be.committed[0] != 3 {
		t.Fatalf("committed = %d after WriteDMX post-identify, want 3", be.committed[0])
	}
	if !equalBytes(be.bufs[0], []byte{1, 2, 3}) {
		t.Fatalf("buf = %v, want DMX passthrough", be.bufs[0])
	}
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
