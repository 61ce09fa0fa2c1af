package device

import (
	"testing"

	"i2c-dmxd/pkg/config"
)

func uidForTest(port int) string {
	return "7a70:00000100"
}

func TestSoftwareDeviceDefaults(t *testing.T) {
	cfg, err := config.LoadString("[i2c mydev]\nbackend: software\n")
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	sec, err := cfg.GetSection("i2c mydev")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}

	d, err := New("/dev/mydev", sec, func(int) *config.Section { return nil }, uidForTest)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := len(d.Ports()); got != 1 {
		t.Fatalf("len(Ports()) = %d, want 1 (default ports)", got)
	}
	if got := d.Ports()[0].GetDeviceLabel(); got != "I2C Device - mydev" {
		t.Fatalf("GetDeviceLabel() = %q, want default", got)
	}
}

func TestSoftwareDeviceSyncPortSentinel(t *testing.T) {
	cfg, err := config.LoadString("[i2c mydev]\nbackend: software\nports: 4\nsync-port: -2\n")
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	sec, err := cfg.GetSection("i2c mydev")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}

	d, err := New("/dev/mydev", sec, func(int) *config.Section { return nil }, uidForTest)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := len(d.Ports()); got != 4 {
		t.Fatalf("len(Ports()) = %d, want 4", got)
	}
	sw, ok := d.be.(interface{ N() int })
	if !ok {
		t.Fatalf("backend does not expose N()")
	}
	if got := sw.N(); got != 4 {
		t.Fatalf("backend N() = %d, want 4", got)
	}
}

func TestPortSectionOverridesLabel(t *testing.T) {
	cfg, err := config.LoadString(
		"[i2c mydev]\nbackend: software\nports: 2\n\n" +
			"[i2c_port mydev 0]\ndevice-label: Stage Left\n")
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	sec, err := cfg.GetSection("i2c mydev")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}

	d, err := New("/dev/mydev", sec, func(port int) *config.Section {
		return cfg.GetSectionOptional("i2c_port mydev " + itoa(port))
	}, uidForTest)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := d.Ports()[0].GetDeviceLabel(); got != "Stage Left" {
		t.Fatalf("port 0 label = %q, want override", got)
	}
	if got := d.Ports()[1].GetDeviceLabel(); got != "I2C Device - mydev" {
		t.Fatalf("port 1 label = %q, want default", got)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
