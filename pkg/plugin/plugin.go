// Package plugin discovers I2C device files on the host, allocates
// RDM UIDs for them, and owns the Device lifecycle: start at
// discovery, stop (with preference persistence) at shutdown.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"i2c-dmxd/pkg/config"
	"i2c-dmxd/pkg/device"
	"i2c-dmxd/pkg/log"
)

// DefaultDevicePrefix matches I2CPlugin::DEFAULT_I2C_DEVICE_PREFIX.
const DefaultDevicePrefix = "i2cdev"

// Options configures discovery and UID allocation.
type Options struct {
	// Dir is scanned for device files, default "/dev".
	Dir string
	// Prefixes is a set of filename glob patterns; a file matching any
	// one of them is treated as an I2C device. Defaults to
	// []string{DefaultDevicePrefix + "*"}.
	Prefixes []string
	// BaseUID is the RDM base UID new devices are allocated from,
	// "mmmm:dddddddd" hex. Falls back to DefaultBaseUID if malformed.
	BaseUID string
}

// Discover returns the paths of files directly under dir whose base
// name matches any of patterns (filepath.Match semantics), sorted for
// deterministic UID allocation order.
func Discover(dir string, patterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, pat := range patterns {
			ok, err := filepath.Match(pat, e.Name())
			if err != nil {
				return nil, fmt.Errorf("bad device pattern %q: %w", pat, err)
			}
			if ok {
				matches = append(matches, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// Plugin owns every Device discovered on the host.
type Plugin struct {
	devices []*device.Device
	uids    map[string]UID
	log     *log.Logger
}

// New discovers matching device files under opts.Dir, allocates a UID
// for each, and constructs (but does not Start) one Device per file.
// cfg supplies each device's "i2c <name>" section and per-port
// "i2c_port <name> <n>" sections.
func New(cfg *config.Config, opts Options) (*Plugin, error) {
	l := log.GetLogger("plugin.i2c")

	dir := opts.Dir
	if dir == "" {
		dir = "/dev"
	}
	prefixes := opts.Prefixes
	if len(prefixes) == 0 {
		prefixes = []string{DefaultDevicePrefix + "*"}
	}

	base := ParseBaseUIDOrDefault(opts.BaseUID, func(msg string) { l.Warn(msg) })
	alloc := NewAllocator(base)

	paths, err := Discover(dir, prefixes)
	if err != nil {
		return nil, err
	}

	p := &Plugin{uids: map[string]UID{}, log: l}
	for _, path := range paths {
		name := filepath.Base(path)
		sec := cfg.GetSectionOptional("i2c " + name)
		if sec == nil {
			sec = emptySection(name)
		}

		uid := alloc.Next()
		p.uids[path] = uid

		d, err := device.New(path, sec,
			func(port int) *config.Section {
				return cfg.GetSectionOptional(fmt.Sprintf("i2c_port %s %d", name, port))
			},
			func(port int) string {
				return fmt.Sprintf("%s-%d", uid.String(), port)
			})
		if err != nil {
			l.WithField("device", name).Warnf("skipping device: %v", err)
			continue
		}
		p.devices = append(p.devices, d)
	}
	return p, nil
}

// Start initializes every discovered device's backend and registers
// its deferred port preferences. A device that fails to start is
// logged and dropped rather than aborting the whole plugin, matching
// the original's per-device try/continue loop.
func (p *Plugin) Start() {
	var started []*device.Device
	for _, d := range p.devices {
		if err := d.Start(); err != nil {
			p.log.WithField("device", d.Path()).Warnf("failed to start: %v", err)
			continue
		}
		started = append(started, d)
	}
	p.devices = started
}

// Stop stops every device, persisting per-port preferences into save
// if non-nil.
func (p *Plugin) Stop(save *config.AutosaveConfig) error {
	var firstErr error
	for _, d := range p.devices {
		if err := d.Stop(save); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Devices returns every successfully started device.
func (p *Plugin) Devices() []*device.Device {
	return p.devices
}

// UID returns the allocated UID for a device's discovered path.
func (p *Plugin) UID(path string) (UID, bool) {
	u, ok := p.uids[path]
	return u, ok
}

func emptySection(name string) *config.Section {
	cfg, _ := config.LoadString(fmt.Sprintf("[i2c %s]\n", name))
	return cfg.GetSectionOptional("i2c " + name)
}
