// Package backend implements the multiplexing engine between many
// DMX-producing ports and one I2C-writing worker. Two interchangeable
// strategies are provided: Hardware (one buffer per output, demuxed by
// GPIO) and Software (a single concatenated buffer with optional
// sync-output gating).
package backend

import (
	"sync"

	derrors "i2c-dmxd/pkg/errors"
	"i2c-dmxd/pkg/log"
	"i2c-dmxd/pkg/metrics"
)

var dropsMetric = metrics.NewCounter("i2c_drops_total", "total commits dropped because a write was already pending")

func init() {
	metrics.MustRegister(dropsMetric)
}

// Sink is the narrow I2C bus write surface a backend's worker drives.
// It is implemented by pkg/i2cbus.Writer for real hardware and by
// FakeSink for tests.
type Sink interface {
	DevicePath() string
	Init() error
	Write(data []byte) (int, error)
}

// Backend is the common producer/consumer contract both multiplexing
// strategies implement.
type Backend interface {
	// Checkout reserves length bytes of payload scratch for output,
	// followed by a latchBytes region already zeroed. Returns nil iff
	// output is out of range. The returned slice has length bytes; the
	// caller fills them and then calls Commit.
	Checkout(output, length, latchBytes int) []byte

	// Commit marks output's buffer pending and wakes the worker.
	Commit(output int) error

	// Init starts the worker goroutine.
	Init() error

	// Close stops the worker and releases resources.
	Close() error

	// DevicePath forwards from the sink.
	DevicePath() string

	// N returns the number of logical outputs this backend multiplexes.
	N() int

	// Drops returns the current drop counter.
	Drops() uint64
}

// outputBuffer is one Hardware-backend output's owned byte array.
type outputBuffer struct {
	data       []byte
	size       int
	actualSize int
	latchBytes int
	pending    bool
}

// checkout implements the DATA MODEL resize rule: growing beyond the
// current capacity reallocates a zero-filled array; shrinking retains
// the existing allocation without clearing payload bytes. The trailing
// latchBytes region is always re-zeroed before returning.
func (o *outputBuffer) checkout(length, latch int) []byte {
	total := length + latch
	if total > o.actualSize {
		o.data = make([]byte, total)
		o.actualSize = total
	}
	o.size = length
	o.latchBytes = latch
	for i := length; i < total; i++ {
		o.data[i] = 0
	}
	return o.data[:length:total]
}

// frame returns the payload+latch bytes ready for the bus.
func (o *outputBuffer) frame() []byte {
	n := o.size + o.latchBytes
	buf := make([]byte, n)
	copy(buf, o.data[:n])
	return buf
}

// GPIODemux drives the GPIO lines that select which physical output a
// Hardware-backend write is addressed to.
type GPIODemux interface {
	Select(output int) error
	Close() error
}

// NopDemux is used when there are no GPIO pins configured (N=1).
type NopDemux struct{}

// Select is a no-op.
func (NopDemux) Select(int) error { return nil }

// Close is a no-op.
func (NopDemux) Close() error { return nil }

// Hardware is the Hardware backend variant: one logical buffer per
// output, demultiplexed onto the bus by driving GPIO pins.
type Hardware struct {
	mu   sync.Mutex
	cond *sync.Cond

	outputs []outputBuffer
	n       int

	sink  Sink
	demux GPIODemux
	log   *log.Logger

	exit    bool
	started bool
	drops   uint64

	workerDone chan struct{}
}

// HardwareOptions configures a Hardware backend.
type HardwareOptions struct {
	// GPIOPinCount is the number of GPIO pins used to binary-address
	// outputs. N = 2^GPIOPinCount.
	GPIOPinCount int
}

// NewHardware constructs a Hardware backend. demux may be NopDemux{}
// when GPIOPinCount is 0.
func NewHardware(sink Sink, demux GPIODemux, opts HardwareOptions) *Hardware {
	n := 1 << opts.GPIOPinCount
	h := &Hardware{
		outputs: make([]outputBuffer, n),
		n:       n,
		sink:    sink,
		demux:   demux,
		log:     log.GetLogger("backend.hardware"),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// N returns the number of logical outputs.
func (h *Hardware) N() int { return h.n }

// DevicePath forwards from the sink.
func (h *Hardware) DevicePath() string { return h.sink.DevicePath() }

// Drops returns the drop counter.
func (h *Hardware) Drops() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drops
}

// Checkout reserves length bytes of scratch for output.
func (h *Hardware) Checkout(output, length, latchBytes int) []byte {
	if output < 0 || output >= h.n {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputs[output].checkout(length, latchBytes)
}

// Commit marks output pending and wakes the worker.
func (h *Hardware) Commit(output int) error {
	if output < 0 || output >= h.n {
		return derrors.OutputRangeError(output, h.n)
	}
	h.mu.Lock()
	ob := &h.outputs[output]
	if ob.pending {
		h.drops++
		dropsMetric.Inc(metrics.Labels{"device": h.sink.DevicePath()})
	} else {
		ob.pending = true
	}
	h.mu.Unlock()
	h.cond.Signal()
	return nil
}

// Init opens the sink and starts the worker goroutine.
func (h *Hardware) Init() error {
	if err := h.sink.Init(); err != nil {
		return err
	}
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.workerDone = make(chan struct{})
	h.mu.Unlock()
	go h.worker()
	return nil
}

// Close stops the worker, joins it, and closes the GPIO demux.
func (h *Hardware) Close() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.exit = true
	h.mu.Unlock()
	h.cond.Signal()
	<-h.workerDone
	return h.demux.Close()
}

func (h *Hardware) worker() {
	defer close(h.workerDone)
	for {
		h.mu.Lock()
		for !h.exit && !h.anyPendingLocked() {
			h.cond.Wait()
		}
		if h.exit {
			h.mu.Unlock()
			return
		}
		output := h.firstPendingLocked()
		ob := &h.outputs[output]
		frame := ob.frame()
		ob.pending = false
		h.mu.Unlock()

		if err := h.demux.Select(output); err != nil {
			h.log.WithField("output", output).Warnf("gpio select failed: %v", err)
		}
		if _, err := h.sink.Write(frame); err != nil {
			h.log.WithField("device", h.sink.DevicePath()).Warnf("write failed: %v", err)
		}
	}
}

func (h *Hardware) anyPendingLocked() bool {
	for i := range h.outputs {
		if h.outputs[i].pending {
			return true
		}
	}
	return false
}

func (h *Hardware) firstPendingLocked() int {
	for i := range h.outputs {
		if h.outputs[i].pending {
			return i
		}
	}
	return -1
}
