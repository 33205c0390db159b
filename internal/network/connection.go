// Package network implements the client TCP listener, per-connection write
// queues and the frame fan-out used to deliver packets to many sockets.
package network

import (
	"cmp"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/telemetry"
)

// DefaultWriteTimeout bounds a single socket write.
const DefaultWriteTimeout = 10 * time.Second

// outbound is one queued frame. A nil frame asks the writer to close the
// connection once everything queued before it has been written.
type outbound struct {
	frame []byte
	done  chan struct{}
}

// Connection wraps a client TCP connection. Writes are queued and drained by
// a dedicated goroutine so frames reach the socket in the order they were
// submitted, and a slow client never blocks the caller.
type Connection struct {
	id           uint64
	conn         net.Conn
	remote       string
	logger       zerolog.Logger
	metrics      *telemetry.Metrics
	writeTimeout time.Duration
	connectedAt  time.Time

	mu           sync.Mutex
	queue        []outbound
	closed       bool
	lastActivity time.Time

	bytesSent atomic.Uint64
	wake      chan struct{}
	done      chan struct{}
}

// NewConnection wraps conn and starts its writer.
func NewConnection(id uint64, conn net.Conn, metrics *telemetry.Metrics) *Connection {
	now := time.Now()
	remote := MaskIP(conn.RemoteAddr().String())
	c := &Connection{
		id:           id,
		conn:         conn,
		remote:       remote,
		metrics:      metrics,
		writeTimeout: DefaultWriteTimeout,
		connectedAt:  now,
		lastActivity: now,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		logger: log.With().
			Str("component", "connection").
			Uint64("conn_id", id).
			Str("remote", remote).
			Logger(),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection's listener-assigned id.
func (c *Connection) ID() uint64 {
	return c.id
}

// Remote returns the masked remote address.
func (c *Connection) Remote() string {
	return c.remote
}

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() zerolog.Logger {
	return c.logger
}

// Read reads the next chunk of bytes from the socket.
func (c *Connection) Read(buf []byte) (int, error) {
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()
	}
	return n, err
}

// Send queues frame for writing. The returned channel is closed once the
// frame was written, failed, or was discarded because the connection closed.
func (c *Connection) Send(frame []byte) <-chan struct{} {
	return c.enqueue(outbound{frame: frame, done: make(chan struct{})})
}

// CloseAfterFlush closes the connection after every frame queued so far has
// been written.
func (c *Connection) CloseAfterFlush() <-chan struct{} {
	return c.enqueue(outbound{done: make(chan struct{})})
}

func (c *Connection) enqueue(item outbound) <-chan struct{} {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(item.done)
		return item.done
	}
	c.queue = append(c.queue, item)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return item.done
}

func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			batch := c.queue
			c.queue = nil
			c.mu.Unlock()

			if len(batch) == 0 {
				break
			}

			for i, item := range batch {
				if item.frame == nil {
					close(item.done)
					c.Close()
					release(batch[i+1:])
					return
				}
				err := c.write(item.frame)
				close(item.done)
				if err != nil {
					if !c.IsClosed() {
						c.logger.Debug().Err(err).Msg("write failed, closing connection")
					}
					c.Close()
					release(batch[i+1:])
					return
				}
			}
		}
	}
}

func (c *Connection) write(frame []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	n, err := c.conn.Write(frame)
	c.bytesSent.Add(uint64(n))
	c.metrics.BytesSent(n)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}

func release(items []outbound) {
	for _, item := range items {
		close(item.done)
	}
}

// Close closes the socket immediately and discards queued frames.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	close(c.done)
	release(pending)
	c.logger.Debug().Msg("connection closed")
	return c.conn.Close()
}

// Done is closed when the connection closes.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// IsClosed returns whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActivity returns the time of the last read or write.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ConnectedAt returns the time the connection was accepted.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// BytesSent returns the number of bytes written so far.
func (c *Connection) BytesSent() uint64 {
	return c.bytesSent.Load()
}

// MaskIP hides the last two octets of an IPv4 address for logging. Other
// address forms are returned without the port.
func MaskIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return host
	}
	return parts[0] + "." + parts[1] + ".x.x"
}

// ConnectionRegistry tracks open client connections.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[uint64]*Connection
}

// NewConnectionRegistry creates a new ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[uint64]*Connection),
	}
}

// Register adds a connection to the registry.
func (r *ConnectionRegistry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
}

// Unregister removes a connection from the registry and closes it.
func (r *ConnectionRegistry) Unregister(id uint64) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// GetAll returns a snapshot of the open connections.
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		result = append(result, c)
	}
	return result
}

// ConnectionInfo describes an open connection for operators.
type ConnectionInfo struct {
	ID           uint64    `json:"id"`
	Remote       string    `json:"remote"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	BytesSent    uint64    `json:"bytes_sent"`
}

// Info returns a snapshot of the connection for operators.
func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		ID:           c.ID(),
		Remote:       c.Remote(),
		ConnectedAt:  c.ConnectedAt(),
		LastActivity: c.LastActivity(),
		BytesSent:    c.BytesSent(),
	}
}

// List returns the details of every open connection, oldest first.
func (r *ConnectionRegistry) List() []ConnectionInfo {
	conns := r.GetAll()
	out := make([]ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Info())
	}
	slices.SortFunc(out, func(a, b ConnectionInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Count returns the number of open connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
