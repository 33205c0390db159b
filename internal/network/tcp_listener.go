package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/protocol"
	"github.com/brickd-project/brickd/internal/telemetry"
)

// Session receives the decoded frame payloads of one connection.
type Session interface {
	// HandlePayloads is called from the connection's reader goroutine with
	// the payloads completed by the latest read, in arrival order.
	HandlePayloads(payloads [][]byte)
	// Closed is called once after the socket closed.
	Closed()
}

// SessionHandler creates a Session for every accepted connection.
type SessionHandler interface {
	Open(conn *Connection) Session
}

// TCPListener accepts client connections, splits the inbound byte stream
// into frames and hands the payloads to the connection's session.
type TCPListener struct {
	cfg      *config.Config
	handler  SessionHandler
	registry *ConnectionRegistry
	metrics  *telemetry.Metrics
	listener net.Listener
	nextID   atomic.Uint64
}

// NewTCPListener creates a new TCP listener.
func NewTCPListener(cfg *config.Config, handler SessionHandler, metrics *telemetry.Metrics) *TCPListener {
	return &TCPListener{
		cfg:      cfg,
		handler:  handler,
		registry: NewConnectionRegistry(),
		metrics:  metrics,
	}
}

// Registry returns the registry of open connections.
func (l *TCPListener) Registry() *ConnectionRegistry {
	return l.registry
}

// Addr returns the bound address once Listen succeeded.
func (l *TCPListener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Listen binds the configured address.
func (l *TCPListener) Listen(ctx context.Context) error {
	addr := l.cfg.ListenAddr()

	keepAlive := time.Duration(l.cfg.GetApplicationData().Network.KeepAliveSec) * time.Second
	lc := ReuseAddrListenConfig(keepAlive)
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener on %s: %w", addr, err)
	}
	l.listener = ln

	log.Info().Str("addr", ln.Addr().String()).Msg("game listener started")
	if l.cfg.GetGameData().Local {
		log.Info().Msg("running server locally")
	}
	return nil
}

// Serve accepts connections until ctx is cancelled. Listen must have been
// called first.
func (l *TCPListener) Serve(ctx context.Context) error {
	if l.listener == nil {
		return errors.New("listener not bound")
	}

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("game listener stopping")
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				log.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		go l.handleConnection(ctx, conn)
	}
}

// Start binds and serves.
func (l *TCPListener) Start(ctx context.Context) error {
	if err := l.Listen(ctx); err != nil {
		return err
	}
	return l.Serve(ctx)
}

// handleConnection runs the read loop of one client. Every read is fed to
// the connection's demuxer and the completed payloads are passed on.
func (l *TCPListener) handleConnection(ctx context.Context, rawConn net.Conn) {
	netCfg := l.cfg.GetApplicationData().Network
	if tcp, ok := rawConn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	conn := NewConnection(l.nextID.Add(1), rawConn, l.metrics)
	if netCfg.WriteTimeoutSec > 0 {
		conn.writeTimeout = time.Duration(netCfg.WriteTimeoutSec) * time.Second
	}
	logger := conn.Logger()
	logger.Info().Msg("new client")

	l.registry.Register(conn)
	l.metrics.ConnectionOpened()

	session := l.handler.Open(conn)
	defer func() {
		l.registry.Unregister(conn.ID())
		l.metrics.ConnectionClosed()
		session.Closed()
		logger.Info().Msg("lost connection")
	}()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-conn.Done():
		}
	}()

	demux := protocol.NewDemuxer(netCfg.ReassemblyLimitBytes)
	buf := make([]byte, netCfg.ReadBufferBytes)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			payloads, dropped := demux.Feed(buf[:n])
			if len(payloads) > 0 {
				l.metrics.FramesReceived(len(payloads))
				session.HandlePayloads(payloads)
			}
			// The stream cannot be resynchronized once a partial frame is gone.
			if dropped > 0 {
				l.metrics.BytesDiscarded(dropped)
				logger.Warn().Int("bytes", dropped).Msg("reassembly limit exceeded, closing connection")
				conn.Close()
				return
			}
		}
		if err != nil {
			if !conn.IsClosed() && !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("read error, closing connection")
			}
			return
		}
	}
}

// Stop closes the listening socket.
func (l *TCPListener) Stop() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
