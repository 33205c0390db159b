package network

import (
	"context"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog/log"
)

// Socket is a destination for frames.
type Socket interface {
	Send(frame []byte) <-chan struct{}
	IsClosed() bool
}

// Delivery tracks the writes started by one Send or Broadcast.
type Delivery struct {
	// Sent is the number of sockets the frame was queued on.
	Sent int
	// Skipped is the number of sockets that were already closed.
	Skipped int

	pending []<-chan struct{}
}

// Wait blocks until every queued write finished or ctx is done.
func (d *Delivery) Wait(ctx context.Context) error {
	for _, ch := range d.pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Done returns a channel closed once every queued write finished.
func (d *Delivery) Done() <-chan struct{} {
	out := make(chan struct{})
	go func() {
		d.Wait(context.Background())
		close(out)
	}()
	return out
}

// Send queues frame on a single socket. A closed socket is skipped.
func Send(frame []byte, s Socket) *Delivery {
	return Broadcast(frame, []Socket{s})
}

// Broadcast queues frame on every socket in targets. Each socket writes
// independently; a closed or failing socket affects no other target.
func Broadcast(frame []byte, targets []Socket) *Delivery {
	d := &Delivery{pending: make([]<-chan struct{}, 0, len(targets))}
	for _, s := range targets {
		if s == nil || s.IsClosed() {
			d.Skipped++
			continue
		}
		d.pending = append(d.pending, s.Send(frame))
		d.Sent++
	}
	return d
}

// maxParallelShutdown bounds how many connections are flushed at once
// during shutdown.
const maxParallelShutdown = 32

// ShutdownAll sends frame to every registered connection, waits up to
// timeout for each to flush, and closes them all.
func (r *ConnectionRegistry) ShutdownAll(frame []byte, timeout time.Duration) {
	conns := r.GetAll()
	swg := sizedwaitgroup.New(maxParallelShutdown)

	for _, c := range conns {
		swg.Add()
		go func(c *Connection) {
			defer swg.Done()
			if frame != nil {
				select {
				case <-c.Send(frame):
				case <-time.After(timeout):
				}
			}
			c.Close()
		}(c)
	}
	swg.Wait()

	log.Info().Int("connections", len(conns)).Msg("all connections closed")
}
