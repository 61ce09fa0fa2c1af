// Package device wires one physical I2C device file to a backend, a
// writer and a set of output ports, and loads/persists their
// configuration through a config.Section.
package device

import (
	"fmt"
	"path/filepath"
	"strconv"

	"i2c-dmxd/pkg/backend"
	"i2c-dmxd/pkg/buffer"
	"i2c-dmxd/pkg/config"
	derrors "i2c-dmxd/pkg/errors"
	"i2c-dmxd/pkg/gpio"
	"i2c-dmxd/pkg/i2cbus"
	"i2c-dmxd/pkg/log"
	"i2c-dmxd/pkg/output"
)

const (
	backendHardware = "hardware"
	backendSoftware = "software"

	maxI2CSpeed   = 32000000
	maxPortCount  = 32
	maxGPIOPin    = 1023
	defaultPorts  = 1
	defaultSync   = 0
	defaultBackend = backendSoftware
)

// Device owns one physical I2C file's writer, backend and ports.
type Device struct {
	name    string
	path    string
	writer  *i2cbus.Writer
	be      backend.Backend
	demux   *gpio.PinSet
	ports        []*output.State
	section      *config.Section
	portSections []*config.Section
	log          *log.Logger
}

// New constructs a Device from a config section named "i2c <name>",
// where name is the I2C device file's base name (matching the
// original's FilenameFromPathOrPath truncation). portSection looks up
// the "i2c_port <name> <n>" section for port n, or nil if absent.
func New(path string, sec *config.Section, portSection func(port int) *config.Section, uidFor func(port int) string) (*Device, error) {
	name := filepath.Base(path)
	l := log.GetLogger("device." + name)

	speed, _ := sec.GetIntWithBounds("i2c-speed", intPtr(0), intPtr(maxI2CSpeed), 1000000)
	ceHigh, _ := sec.GetBool("i2c-ce-high", false)
	w := i2cbus.New(path, i2cbus.Options{SpeedHz: uint32(speed), CSEnableHigh: ceHigh})

	backendType, _ := sec.GetChoice("backend", []string{backendHardware, backendSoftware}, defaultBackend)

	var be backend.Backend
	var demux *gpio.PinSet
	var portCount int

	if backendType == backendHardware {
		pins, _ := sec.GetIntList("gpio-pin", ",", []int{})
		for _, p := range pins {
			if p > maxGPIOPin {
				return nil, derrors.ConfigValidationError("gpio-pin", "exceeds maximum pin number")
			}
		}
		// "ports" is optional on a Hardware device; when given it must
		// match what gpio-pin can actually binary-address, catching a
		// misconfiguration instead of silently deriving a different N.
		if wantPorts, err := sec.GetInt("ports", 0); err == nil && wantPorts > 0 {
			if err := gpio.ValidatePinCount(pins, wantPorts); err != nil {
				return nil, err
			}
		}
		var err error
		demux, err = gpio.Open("gpiochip0", pins)
		if err != nil {
			return nil, err
		}
		var gpioDemux backend.GPIODemux = backend.NopDemux{}
		if demux != nil {
			gpioDemux = demux
		}
		be = backend.NewHardware(w, gpioDemux, backend.HardwareOptions{GPIOPinCount: len(pins)})
		portCount = be.N()
		l.WithField("device", name).Infof("hardware backend, %d ports", portCount)
	} else {
		outputs, _ := sec.GetIntWithBounds("ports", intPtr(1), intPtr(maxPortCount), defaultPorts)
		sync, _ := sec.GetIntWithBounds("sync-port", intPtr(-2), intPtr(maxPortCount), defaultSync)
		// SUPPLEMENTED FEATURE: -2 is "last output" shorthand.
		if sync == -2 {
			sync = outputs - 1
		}
		be = backend.NewSoftware(w, backend.SoftwareOptions{Outputs: outputs, SyncOutput: sync})
		portCount = outputs
		l.WithField("device", name).Infof("software backend, %d ports", portCount)
	}

	d := &Device{name: name, path: path, writer: w, be: be, demux: demux, section: sec, log: l}

	defaultLabel := "I2C Device - " + name
	portSections := make([]*config.Section, portCount)
	for i := 0; i < portCount; i++ {
		psec := portSection(i)
		portSections[i] = psec

		label := defaultLabel
		if psec != nil {
			label, _ = psec.Get("device-label", defaultLabel)
		}
		st := output.New(i, uidFor(i), label, be)

		if psec != nil {
			if pc, err := psec.GetInt("pixel-count", 0); err == nil && pc > 0 {
				_ = st.SetPixelCount(pc)
			}
		}
		d.ports = append(d.ports, st)
	}
	d.portSections = portSections
	return d, nil
}

// Start initializes the backend worker and applies deferred per-port
// preferences that depend on a valid footprint (personality/address).
func (d *Device) Start() error {
	if err := d.be.Init(); err != nil {
		return err
	}
	for i, st := range d.ports {
		psec := d.portSections[i]
		if psec == nil {
			continue
		}
		if p, err := psec.GetInt("personality", int(output.DefaultPersonality)); err == nil {
			_ = st.SetPersonality(p)
		}
		if a, err := psec.GetInt("dmx-address", 1); err == nil {
			_ = st.SetStartAddress(a)
		}
	}
	return nil
}

// Stop joins the backend worker, closes the GPIO demux if any, and
// persists per-port preferences back into the given autosave store,
// one "i2c_port <device> <n>" section per port.
func (d *Device) Stop(save *config.AutosaveConfig) error {
	err := d.be.Close()
	if save != nil {
		for i, st := range d.ports {
			sectionName := fmt.Sprintf("i2c_port %s %d", d.name, i)
			save.SetOption(sectionName, "device-label", st.GetDeviceLabel())
			save.SetOption(sectionName, "personality", strconv.Itoa(st.GetPersonality()))
			save.SetOption(sectionName, "dmx-address", strconv.Itoa(st.GetStartAddress()))
			save.SetOption(sectionName, "pixel-count", strconv.Itoa(st.GetPixelCount()))
		}
	}
	return err
}

// Name returns the device's display name.
func (d *Device) Name() string { return "I2C Device " + d.name }

// Path returns the underlying device file path.
func (d *Device) Path() string { return d.path }

// Ports returns the device's output ports, in index order.
func (d *Device) Ports() []*output.State { return d.ports }

// Drops returns the backend's drop counter.
func (d *Device) Drops() uint64 { return d.be.Drops() }

// WriteDMX routes an inbound DMX frame to the given port's encoder.
func (d *Device) WriteDMX(port int, dmx *buffer.DmxBuffer) error {
	if port < 0 || port >= len(d.ports) {
		return derrors.OutputRangeError(port, len(d.ports))
	}
	return d.ports[port].WriteDMX(dmx)
}

func intPtr(v int) *int { return &v }
