// Package i2cbus opens the bitbang I2C character device the daemon
// writes DMX-derived pixel frames to, and issues the mode/speed/message
// ioctls the device expects.
package i2cbus

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	derrors "i2c-dmxd/pkg/errors"
	"i2c-dmxd/pkg/log"
	"i2c-dmxd/pkg/metrics"
)

// BitsPerWord is fixed at 8 for every device this daemon drives.
const BitsPerWord = 8

// DefaultSpeedHz and MaxSpeedHz bound the bus clock the device accepts.
const (
	DefaultSpeedHz = 1000000
	MaxSpeedHz     = 32000000
)

// Options configures a Writer.
type Options struct {
	// SpeedHz is the bus clock; 0 means DefaultSpeedHz.
	SpeedHz uint32

	// CSEnableHigh inverts the chip-select polarity bit in the mode
	// byte, for devices that need chip select active-high.
	CSEnableHigh bool
}

var (
	writesMetric = metrics.NewCounter("i2c_writes_total", "total I2C write attempts")
	errorsMetric = metrics.NewCounter("i2c_write_errors_total", "total failed or short I2C writes")
)

func init() {
	metrics.MustRegister(writesMetric)
	metrics.MustRegister(errorsMetric)
}

// Writer owns one I2C device file descriptor and exposes the narrow
// backend.Sink surface: DevicePath, Init, Write.
type Writer struct {
	mu   sync.Mutex
	path string
	opts Options
	fd   int
	log  *log.Logger
}

// New constructs a Writer for the given device path. Init must be
// called before Write.
func New(devicePath string, opts Options) *Writer {
	if opts.SpeedHz == 0 {
		opts.SpeedHz = DefaultSpeedHz
	}
	if opts.SpeedHz > MaxSpeedHz {
		opts.SpeedHz = MaxSpeedHz
	}
	return &Writer{
		path: devicePath,
		opts: opts,
		fd:   -1,
		log:  log.GetLogger("i2cbus"),
	}
}

// DevicePath returns the path to the underlying character device.
func (w *Writer) DevicePath() string { return w.path }

// Init opens the device and configures mode, word size and bus speed.
func (w *Writer) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_RDWR, 0)
	if err != nil {
		return derrors.BusOpenError(w.path, err)
	}
	fd := int(f.Fd())

	mode := uint8(0)
	if w.opts.CSEnableHigh {
		mode |= csHighFlag
	}
	if err := ioctlSetUint8(fd, ioctlWrMode, mode); err != nil {
		f.Close()
		return derrors.BusOpenError(w.path, fmt.Errorf("WR_MODE: %w", err))
	}
	if err := ioctlSetUint8(fd, ioctlWrBitsPerWord, BitsPerWord); err != nil {
		f.Close()
		return derrors.BusOpenError(w.path, fmt.Errorf("WR_BITS_PER_WORD: %w", err))
	}
	if err := ioctlSetUint32(fd, ioctlWrMaxSpeedHz, w.opts.SpeedHz); err != nil {
		f.Close()
		return derrors.BusOpenError(w.path, fmt.Errorf("WR_MAX_SPEED_HZ: %w", err))
	}

	// f itself is never closed; fd is retained directly, mirroring the
	// original's SocketCloser.Release() pattern.
	w.fd = fd
	w.log.WithField("device", w.path).Infof("opened I2C device, speed=%d", w.opts.SpeedHz)
	return nil
}

// Write sends data as a single I2C message via I2C_IOC_MESSAGE(1).
func (w *Writer) Write(data []byte) (int, error) {
	w.mu.Lock()
	fd := w.fd
	w.mu.Unlock()
	if fd < 0 {
		return 0, derrors.New(derrors.ErrBusWrite, "device not initialized")
	}

	xfer := i2cIOCTransfer{
		Len: uint32(len(data)),
	}
	if len(data) > 0 {
		xfer.TxBuf = uint64(uintptr(unsafe.Pointer(&data[0])))
	}

	labels := metrics.Labels{"device": w.path}
	writesMetric.Inc(labels)

	n, errno := ioctlMessage(fd, &xfer)
	if errno != 0 || n != len(data) {
		errorsMetric.Inc(labels)
		return n, derrors.BusWriteError(w.path, len(data), n)
	}
	return n, nil
}

// Close closes the underlying file descriptor.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fd < 0 {
		return nil
	}
	err := unix.Close(w.fd)
	w.fd = -1
	return err
}
