package backend

import (
	"sync"

	derrors "i2c-dmxd/pkg/errors"
	"i2c-dmxd/pkg/log"
	"i2c-dmxd/pkg/metrics"
)

// Software is the Software backend variant: a single concatenated
// buffer across all outputs, with an optional sync-output gate.
type Software struct {
	mu   sync.Mutex
	cond *sync.Cond

	n       int
	sizes   []int
	latches []int
	offsets []int
	buf     []byte

	// syncOutput is -1 ("every commit writes") or an output index
	// whose commit alone triggers a bus write.
	syncOutput int

	writePending bool
	writeLen     int

	sink Sink
	log  *log.Logger

	exit       bool
	started    bool
	drops      uint64
	workerDone chan struct{}
}

// SoftwareOptions configures a Software backend.
type SoftwareOptions struct {
	// Outputs is the number of logical outputs (N).
	Outputs int

	// SyncOutput is -1 for "every commit writes", or an output index
	// in [0, Outputs) whose commit alone flushes the buffer.
	SyncOutput int
}

// DefaultSoftwareOptions returns the spec's defaults: outputs=1, sync=0.
func DefaultSoftwareOptions() SoftwareOptions {
	return SoftwareOptions{Outputs: 1, SyncOutput: 0}
}

// NewSoftware constructs a Software backend.
func NewSoftware(sink Sink, opts SoftwareOptions) *Software {
	n := opts.Outputs
	if n < 1 {
		n = 1
	}
	s := &Software{
		n:          n,
		sizes:      make([]int, n),
		latches:    make([]int, n),
		offsets:    make([]int, n),
		syncOutput: opts.SyncOutput,
		sink:       sink,
		log:        log.GetLogger("backend.software"),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// N returns the number of logical outputs.
func (s *Software) N() int { return s.n }

// DevicePath forwards from the sink.
func (s *Software) DevicePath() string { return s.sink.DevicePath() }

// Drops returns the drop counter.
func (s *Software) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Checkout reserves length bytes of scratch for output i within the
// concatenated buffer.
func (s *Software) Checkout(i, length, latch int) []byte {
	if i < 0 || i >= s.n {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if length != s.sizes[i] || latch != s.latches[i] {
		s.resizeLocked(i, length, latch)
	}
	off := s.offsets[i]
	return s.buf[off : off+length : off+length+latch]
}

// resizeLocked recomputes the concatenated buffer layout when output
// i's size or latch changes. Other outputs' payload bytes are carried
// over at their new offsets; output i's own segment is zero-filled
// fresh (it is not assumed that any partial old content is still
// meaningful once its shape has changed).
func (s *Software) resizeLocked(i, length, latch int) {
	oldOffsets := s.offsets
	oldBuf := s.buf
	oldSizes := s.sizes

	s.sizes[i] = length
	s.latches[i] = latch

	newOffsets := make([]int, s.n)
	total := 0
	for k := 0; k < s.n; k++ {
		newOffsets[k] = total
		total += s.sizes[k] + s.latches[k]
	}
	newBuf := make([]byte, total)
	for k := 0; k < s.n; k++ {
		if k == i {
			continue
		}
		n := oldSizes[k]
		if n == 0 {
			continue
		}
		srcOff := oldOffsets[k]
		if srcOff+n <= len(oldBuf) {
			copy(newBuf[newOffsets[k]:], oldBuf[srcOff:srcOff+n])
		}
	}
	s.buf = newBuf
	s.offsets = newOffsets
}

// Commit marks the concatenated buffer pending for the bus per the
// sync-output gate.
func (s *Software) Commit(i int) error {
	if i < 0 || i >= s.n {
		return derrors.OutputRangeError(i, s.n)
	}
	s.mu.Lock()
	trigger := s.syncOutput < 0 || i == s.syncOutput
	if trigger {
		if s.writePending {
			s.drops++
			dropsMetric.Inc(metrics.Labels{"device": s.sink.DevicePath()})
		} else {
			s.writePending = true
			s.writeLen = len(s.buf)
		}
	}
	s.mu.Unlock()
	if trigger {
		s.cond.Signal()
	}
	return nil
}

// Init opens the sink and starts the worker goroutine.
func (s *Software) Init() error {
	if err := s.sink.Init(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.workerDone = make(chan struct{})
	s.mu.Unlock()
	go s.worker()
	return nil
}

// Close stops the worker and joins it.
func (s *Software) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.exit = true
	s.mu.Unlock()
	s.cond.Signal()
	<-s.workerDone
	return nil
}

func (s *Software) worker() {
	defer close(s.workerDone)
	for {
		s.mu.Lock()
		for !s.exit && !s.writePending {
			s.cond.Wait()
		}
		if s.exit {
			s.mu.Unlock()
			return
		}
		frame := make([]byte, s.writeLen)
		copy(frame, s.buf[:s.writeLen])
		s.writePending = false
		s.mu.Unlock()

		if _, err := s.sink.Write(frame); err != nil {
			s.log.WithField("device", s.sink.DevicePath()).Warnf("write failed: %v", err)
		}
	}
}
