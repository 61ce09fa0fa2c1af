// Package statusws serves a websocket endpoint that periodically
// pushes each device's name, path and drop counter to connected
// browsers, the monitoring-surface analogue of the teacher's
// Moonraker live-status push.
package statusws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"i2c-dmxd/pkg/log"
)

// Source reports a device's live counters. pkg/device.Device
// satisfies this.
type Source interface {
	Name() string
	Path() string
	Drops() uint64
}

// DeviceStatus is one device's snapshot, sent as a websocket JSON
// message.
type DeviceStatus struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Drops uint64 `json:"drops"`
}

// StatusMessage is the periodic broadcast payload.
type StatusMessage struct {
	EventTime float64        `json:"eventtime"`
	Devices   []DeviceStatus `json:"devices"`
}

// Server pushes StatusMessage snapshots to every connected client at
// a fixed interval.
type Server struct {
	addr     string
	interval time.Duration
	sources  func() []Source

	upgrader websocket.Upgrader
	clients  map[int64]*client
	clientMu sync.RWMutex
	nextID   int64

	httpServer *http.Server
	running    atomic.Bool
	startTime  time.Time
	log        *log.Logger
}

type client struct {
	id     int64
	conn   *websocket.Conn
	sendCh chan StatusMessage
	done   chan struct{}
	mu     sync.Mutex
}

// Config configures a status server.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8081".
	Addr string
	// Interval is the broadcast period, default 1s.
	Interval time.Duration
	// Sources returns the live set of devices to report on, called
	// once per broadcast tick.
	Sources func() []Source
}

// New constructs a Server. Call Start to begin serving.
func New(cfg Config) *Server {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		addr:     cfg.Addr,
		interval: interval,
		sources:  cfg.Sources,
		clients:  make(map[int64]*client),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		startTime: time.Now(),
		log:       log.GetLogger("statusws"),
	}
}

// Start serves the websocket endpoint and blocks until Stop closes
// the listener.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleWebSocket)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.running.Store(true)
	s.log.WithField("addr", s.addr).Info("status websocket starting")

	go s.broadcastLoop()

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes every connected client and shuts down the listener.
func (s *Server) Stop() error {
	s.running.Store(false)

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*client)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		sendCh: make(chan StatusMessage, 8),
		done:   make(chan struct{}),
	}
	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()

	go c.writePump()
	c.readPump(func() { s.removeClient(c.id) })
}

func (s *Server) removeClient(id int64) {
	s.clientMu.Lock()
	delete(s.clients, id)
	s.clientMu.Unlock()
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for s.running.Load() {
		<-ticker.C
		s.broadcast()
	}
}

func (s *Server) broadcast() {
	if s.sources == nil {
		return
	}
	msg := StatusMessage{EventTime: time.Since(s.startTime).Seconds()}
	for _, src := range s.sources() {
		msg.Devices = append(msg.Devices, DeviceStatus{
			Name:  src.Name(),
			Path:  src.Path(),
			Drops: src.Drops(),
		})
	}

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.send(msg)
	}
}

func (c *client) send(msg StatusMessage) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		// channel full, drop this tick's update for this client
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) readPump(onClose func()) {
	defer func() {
		onClose()
		c.close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
