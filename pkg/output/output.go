// Package output implements per-logical-output responder state: the
// active chipset personality, pixel count, DMX start address and
// device label that together decide how an inbound DMX frame is
// re-encoded onto the I2C bus.
package output

import (
	"fmt"
	"sync"

	"i2c-dmxd/pkg/buffer"
	derrors "i2c-dmxd/pkg/errors"
	"i2c-dmxd/pkg/pixel"
)

// DefaultPersonality is the personality every output starts with.
const DefaultPersonality = pixel.WS2801Individual

// State is one logical output's configurable responder state plus the
// DMX-to-wire dispatch that drives it.
type State struct {
	mu sync.Mutex

	index   int
	uid     string
	backend pixel.Checkouter

	personality   pixel.Personality
	pixelCount    int
	startAddress  int
	deviceLabel   string
	identifyMode  bool
}

// New constructs an output at the given backend output index with the
// spec's defaults: WS2801 Individual, pixel_count 0, start_address 1.
// If label is empty, a default of "Output <index>" is used.
func New(index int, uid, label string, be pixel.Checkouter) *State {
	if label == "" {
		label = fmt.Sprintf("Output %d", index)
	}
	return &State{
		index:        index,
		uid:          uid,
		backend:      be,
		personality:  DefaultPersonality,
		pixelCount:   0,
		startAddress: 1,
		deviceLabel:  label,
	}
}

// Footprint returns the DMX slot footprint of the current personality
// and pixel count.
func (s *State) Footprint() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pixel.Footprint(s.personality, s.pixelCount)
}

// GetPersonality returns the current personality number, 1..10.
func (s *State) GetPersonality() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.personality)
}

// SetPersonality succeeds iff n is a recognized personality number. It
// does not re-validate the current start address against the new
// personality's footprint.
func (s *State) SetPersonality(n int) error {
	if !pixel.IsValid(n) {
		return derrors.PersonalityError(n)
	}
	s.mu.Lock()
	s.personality = pixel.Personality(n)
	s.mu.Unlock()
	return nil
}

// GetPixelCount returns the configured pixel count.
func (s *State) GetPixelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixelCount
}

// SetPixelCount sets the pixel count; any value in [0, 65535] is
// accepted unconditionally, matching set_personality's lack of
// cross-field re-validation.
func (s *State) SetPixelCount(n int) error {
	if n < 0 || n > 65535 {
		return derrors.New(derrors.ErrOutputPersonality, "pixel_count out of range")
	}
	s.mu.Lock()
	s.pixelCount = n
	s.mu.Unlock()
	return nil
}

// GetStartAddress returns the configured DMX start address.
func (s *State) GetStartAddress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startAddress
}

// SetStartAddress succeeds iff the footprint of the current
// personality/pixel_count fits entirely within the 512-slot universe
// starting at a.
func (s *State) SetStartAddress(a int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	footprint := pixel.Footprint(s.personality, s.pixelCount)
	if footprint < 1 || a < 1 || a+footprint-1 > buffer.UniverseSize {
		return derrors.StartAddressError(a, footprint)
	}
	s.startAddress = a
	return nil
}

// GetDeviceLabel returns the configured device label.
func (s *State) GetDeviceLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceLabel
}

// SetDeviceLabel sets the device label; persistence is the caller's
// concern.
func (s *State) SetDeviceLabel(label string) {
	s.mu.Lock()
	s.deviceLabel = label
	s.mu.Unlock()
}

// IdentifyMode reports whether this output is currently identifying.
func (s *State) IdentifyMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identifyMode
}

// WriteDMX dispatches buf to the active personality's encoder, unless
// identify_mode is set, in which case it is a no-op that still
// reports success to the caller.
func (s *State) WriteDMX(buf *buffer.DmxBuffer) error {
	s.mu.Lock()
	if s.identifyMode {
		s.mu.Unlock()
		return nil
	}
	personality, pixelCount, startAddress, index, be := s.personality, s.pixelCount, s.startAddress, s.index, s.backend
	s.mu.Unlock()
	return pixel.Encode(personality, buf, startAddress, pixelCount, index, be)
}

// SetIdentify toggles identify_mode. On a genuine transition, a full
// 512-slot buffer (all 0xFF going into identify, all 0x00 coming out
// of it) is pushed through the active encoder once before the flag is
// latched, so the physical output actually flashes/blacks out rather
// than merely changing a bookkeeping bit.
func (s *State) SetIdentify(flag bool) error {
	s.mu.Lock()
	if s.identifyMode == flag {
		s.mu.Unlock()
		return nil
	}
	personality, pixelCount, startAddress, index, be := s.personality, s.pixelCount, s.startAddress, s.index, s.backend
	s.mu.Unlock()

	full := buffer.New(buffer.UniverseSize)
	if flag {
		full.FullOn()
	} else {
		full.Blackout()
	}
	err := pixel.Encode(personality, full, startAddress, pixelCount, index, be)

	s.mu.Lock()
	s.identifyMode = flag
	s.mu.Unlock()
	return err
}

// Description renders the human-readable status line for this output.
func (s *State) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	footprint := pixel.Footprint(s.personality, s.pixelCount)
	return fmt.Sprintf("Output %d, %s, %d slots @ %d. (%s)",
		s.index, s.personality.Description(), footprint, s.startAddress, s.uid)
}
