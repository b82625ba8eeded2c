package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
)

// pollInterval bounds how long a read blocks before the context is rechecked.
const pollInterval = 250 * time.Millisecond

// DatagramHandler consumes one inbound datagram. Implementations must not
// retain data after returning.
type DatagramHandler interface {
	HandleDatagram(ctx context.Context, data []byte, peer net.Addr)
}

// ReceiverOptions tune the receive loop.
type ReceiverOptions struct {
	BufferSize int        // Largest datagram read; longer ones are truncated by the OS
	RateLimit  rate.Limit // Datagrams per second; 0 disables limiting
	RateBurst  int
}

// Receiver reads datagrams from one UDP socket and hands them to a handler.
type Receiver struct {
	conn    net.PacketConn
	handler DatagramHandler
	limiter *rate.Limiter
	bufSize int
}

// Listen binds addr and returns a receiver ready to Run.
func Listen(addr string, handler DatagramHandler, opts ReceiverOptions) (*Receiver, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return NewReceiver(conn, handler, opts), nil
}

// NewReceiver wraps an already bound socket.
func NewReceiver(conn net.PacketConn, handler DatagramHandler, opts ReceiverOptions) *Receiver {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 65536
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return &Receiver{conn: conn, handler: handler, limiter: limiter, bufSize: opts.BufferSize}
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Run reads until ctx is cancelled, then closes the socket. Malformed or
// unexpected datagrams are the handler's concern; nothing a peer sends stops
// the loop.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.conn.Close()

	logger.Info("UDP receiver listening", logger.Fields{"addr": r.Addr().String()})
	buf := make([]byte, r.bufSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		n, peer, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("UDP read failed", logger.Fields{"error": err.Error()})
			continue
		}

		if r.limiter != nil && !r.limiter.Allow() {
			logger.Warn("Datagram dropped by rate limiter", logger.WithDatagram(peer, n))
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		r.dispatch(ctx, data, peer)
	}
}

func (r *Receiver) dispatch(ctx context.Context, data []byte, peer net.Addr) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Datagram handler panicked", fmt.Errorf("%v", p), logger.WithDatagram(peer, len(data)))
		}
	}()
	r.handler.HandleDatagram(ctx, data, peer)
}
