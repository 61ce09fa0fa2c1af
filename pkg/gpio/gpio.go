// Package gpio drives the GPIO lines the Hardware backend uses to
// demultiplex I2C writes across physical outputs: output index i
// selects outputs by driving pin k high iff bit k of i is set.
package gpio

import (
	"math/bits"

	"github.com/warthog618/gpiod"

	derrors "i2c-dmxd/pkg/errors"
)

// PinSet drives a binary-addressed bank of GPIO output lines.
type PinSet struct {
	chip  *gpiod.Chip
	lines *gpiod.Lines
	pins  []int
}

// Open requests pins (by chip-relative offset) on chipName as outputs,
// all initially driven low.
func Open(chipName string, pins []int) (*PinSet, error) {
	if len(pins) == 0 {
		return nil, nil
	}
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, derrors.GPIOError("open chip " + chipName + ": " + err.Error())
	}
	lines, err := chip.RequestLines(pins, gpiod.AsOutput(0), gpiod.WithConsumer("i2c-dmxd"))
	if err != nil {
		chip.Close()
		return nil, derrors.GPIOError("request lines: " + err.Error())
	}
	return &PinSet{chip: chip, lines: lines, pins: pins}, nil
}

// Select drives the pin set to the binary expansion of output.
func (p *PinSet) Select(output int) error {
	if p == nil {
		return nil
	}
	values := make([]int, len(p.pins))
	for k := range p.pins {
		if output&(1<<uint(k)) != 0 {
			values[k] = 1
		}
	}
	if err := p.lines.SetValues(values); err != nil {
		return derrors.GPIOError("set values: " + err.Error())
	}
	return nil
}

// Close releases the lines and the chip handle.
func (p *PinSet) Close() error {
	if p == nil {
		return nil
	}
	err := p.lines.Close()
	p.chip.Close()
	return err
}

// RequiredPinCount returns ceil(log2(outputs)) — the number of GPIO
// pins needed to binary-address outputs distinct output values.
func RequiredPinCount(outputs int) int {
	if outputs <= 1 {
		return 0
	}
	return bits.Len(uint(outputs - 1))
}

// ValidatePinCount checks that exactly RequiredPinCount(outputs) pins
// were configured, per the device's "gpio-pin" option.
func ValidatePinCount(pins []int, outputs int) error {
	want := RequiredPinCount(outputs)
	if len(pins) != want {
		return derrors.GPIOError(
			"gpio-pin has the wrong length for the configured output count")
	}
	return nil
}
