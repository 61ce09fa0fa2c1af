package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultBaseUID is used whenever the configured base UID fails to
// parse, matching I2CPlugin::DEFAULT_BASE_UID.
const DefaultBaseUID = "7a70:00000100"

// UID is an RDM manufacturer-ID:device-ID pair.
type UID struct {
	ManufacturerID uint16
	DeviceID       uint32
}

// String renders a UID in "mmmm:dddddddd" form.
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.ManufacturerID, u.DeviceID)
}

// ParseUID parses a "mmmm:dddddddd" hex UID string.
func ParseUID(s string) (UID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return UID{}, fmt.Errorf("malformed UID %q", s)
	}
	mfg, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("malformed manufacturer id in UID %q: %w", s, err)
	}
	dev, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("malformed device id in UID %q: %w", s, err)
	}
	return UID{ManufacturerID: uint16(mfg), DeviceID: uint32(dev)}, nil
}

// ParseBaseUIDOrDefault parses s as a base UID, falling back to
// DefaultBaseUID (and logging the substitution) when s fails to parse
// or is itself malformed.
func ParseBaseUIDOrDefault(s string, warn func(string)) UID {
	base, err := ParseUID(s)
	if err != nil {
		if warn != nil {
			warn(fmt.Sprintf("invalid UID %q, defaulting to %s", s, DefaultBaseUID))
		}
		base, err = ParseUID(DefaultBaseUID)
		if err != nil {
			// DefaultBaseUID is a constant known to parse; this is unreachable.
			return UID{}
		}
	}
	return base
}

// Allocator hands out successive device IDs from a base UID, one per
// discovered device, the way UIDAllocator increments the original's
// device-ID half for each I2CDevice it creates.
type Allocator struct {
	base UID
	next uint32
}

// NewAllocator starts an Allocator at base's device ID.
func NewAllocator(base UID) *Allocator {
	return &Allocator{base: base, next: base.DeviceID}
}

// Next returns the next UID in the allocation sequence.
func (a *Allocator) Next() UID {
	u := UID{ManufacturerID: a.base.ManufacturerID, DeviceID: a.next}
	a.next++
	return u
}
