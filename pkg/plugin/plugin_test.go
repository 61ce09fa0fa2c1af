package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseUID(t *testing.T) {
	u, err := ParseUID("7a70:00000100")
	if err != nil {
		t.Fatalf("ParseUID: %v", err)
	}
	if u.ManufacturerID != 0x7a70 || u.DeviceID != 0x100 {
		t.Fatalf("ParseUID = %+v, want {0x7a70 0x100}", u)
	}
	if got := u.String(); got != "7a70:00000100" {
		t.Fatalf("String() = %q, want round-trip", got)
	}
}

func TestParseUIDMalformed(t *testing.T) {
	for _, s := range []string{"", "nocolon", "zzzz:00000100", "7a70:zzzzzzzz"} {
		if _, err := ParseUID(s); err == nil {
			t.Fatalf("ParseUID(%q) succeeded, want error", s)
		}
	}
}

func TestParseBaseUIDOrDefaultFallback(t *testing.T) {
	var warned string
	got := ParseBaseUIDOrDefault("garbage", func(msg string) { warned = msg })
	want, _ := ParseUID(DefaultBaseUID)
	if got != want {
		t.Fatalf("fallback UID = %+v, want %+v", got, want)
	}
	if warned == "" {
		t.Fatalf("expected a warning on fallback")
	}
}

func TestAllocatorIncrementsDeviceID(t *testing.T) {
	base, _ := ParseUID("7a70:00000100")
	a := NewAllocator(base)
	first := a.Next()
	second := a.Next()
	if first.DeviceID != 0x100 || second.DeviceID != 0x101 {
		t.Fatalf("allocated device IDs = %x, %x, want 0x100, 0x101", first.DeviceID, second.DeviceID)
	}
	if first.ManufacturerID != second.ManufacturerID {
		t.Fatalf("manufacturer ID changed between allocations")
	}
}

func TestDiscoverMatchesPrefixPattern(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"i2cdev0", "i2cdev1", "not-a-match", "i2cdevX"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "i2cdev-subdir"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	got, err := Discover(dir, []string{"i2cdev*"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "i2cdev0"),
		filepath.Join(dir, "i2cdev1"),
		filepath.Join(dir, "i2cdevX"),
	}
	if len(got) != len(want) {
		t.Fatalf("Discover = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Discover[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscoverNoMatches(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "unrelated"), nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := Discover(dir, []string{"i2cdev*"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Discover = %v, want empty", got)
	}
}
