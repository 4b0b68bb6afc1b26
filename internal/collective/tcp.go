package collective

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const dialRetryInterval = 100 * time.Millisecond

// TCP is a group member connected over TCP in a hub and spoke layout. Rank 0
// gathers every peer's contribution, reduces, and sends the result back.
type TCP struct {
	rank int
	size int

	mu     sync.Mutex
	round  uint64
	peers  []net.Conn // rank 0 only, indexed by rank; peers[0] is nil
	hub    net.Conn   // ranks > 0 only
	closed bool
}

// Listener accepts peer connections for the rank 0 member.
type Listener struct {
	ln net.Listener
}

// Listen opens the coordinator endpoint on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops accepting connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Accept waits for size-1 peers to connect and identify themselves, then
// returns the rank 0 member. The listener is closed on return.
func (l *Listener) Accept(ctx context.Context, size int) (*TCP, error) {
	defer l.ln.Close()

	if size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", size)
	}

	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	t := &TCP{rank: 0, size: size, peers: make([]net.Conn, size)}
	for joined := 1; joined < size; {
		conn, err := l.ln.Accept()
		if err != nil {
			t.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("accept peer: %w", err)
		}

		var hello Message
		if err := ReadMessage(conn, &hello); err != nil {
			conn.Close()
			t.Close()
			return nil, fmt.Errorf("read hello: %w", err)
		}
		if hello.Type != MsgTypeHello || hello.Size != size || hello.Rank < 1 || hello.Rank >= size || t.peers[hello.Rank] != nil {
			conn.Close()
			t.Close()
			return nil, fmt.Errorf("invalid hello from %s: rank %d size %d", conn.RemoteAddr(), hello.Rank, hello.Size)
		}
		t.peers[hello.Rank] = conn
		joined++
	}
	return t, nil
}

// Dial connects a non-zero rank to the coordinator at addr, retrying until the
// coordinator is reachable or ctx is done.
func Dial(ctx context.Context, addr string, rank, size int) (*TCP, error) {
	if rank < 1 || rank >= size {
		return nil, fmt.Errorf("rank %d out of range for group size %d", rank, size)
	}

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			if err := WriteMessage(conn, Message{Type: MsgTypeHello, Rank: rank, Size: size}); err != nil {
				conn.Close()
				return nil, fmt.Errorf("send hello: %w", err)
			}
			return &TCP{rank: rank, size: size, hub: conn}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w", addr, errors.Join(ctx.Err(), err))
		case <-time.After(dialRetryInterval):
		}
	}
}

func (t *TCP) Rank() int { return t.rank }

func (t *TCP) Size() int { return t.size }

func (t *TCP) AllReduceMax(ctx context.Context, vals []int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.round++

	conns := t.peers
	if t.rank != 0 {
		conns = []net.Conn{t.hub}
	}
	stop := context.AfterFunc(ctx, func() {
		for _, c := range conns {
			if c != nil {
				c.SetDeadline(time.Now())
			}
		}
	})
	defer stop()
	defer func() {
		for _, c := range conns {
			if c != nil {
				c.SetDeadline(time.Time{})
			}
		}
	}()

	var err error
	if t.rank == 0 {
		err = t.gather(vals)
	} else {
		err = t.contribute(vals)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *TCP) gather(vals []int32) error {
	for r := 1; r < t.size; r++ {
		var msg Message
		if err := ReadMessage(t.peers[r], &msg); err != nil {
			return fmt.Errorf("read contribution from rank %d: %w", r, err)
		}
		if msg.Type != MsgTypeReduce || msg.Round != t.round {
			return fmt.Errorf("unexpected %q round %d from rank %d, want round %d", msg.Type, msg.Round, r, t.round)
		}
		if len(msg.Values) != len(vals) {
			return fmt.Errorf("%w: rank %d sent %d values, want %d", ErrMismatch, r, len(msg.Values), len(vals))
		}
		maxInto(vals, msg.Values)
	}

	result := Message{Type: MsgTypeReduce, Rank: 0, Round: t.round, Values: vals}
	for r := 1; r < t.size; r++ {
		if err := WriteMessage(t.peers[r], result); err != nil {
			return fmt.Errorf("send result to rank %d: %w", r, err)
		}
	}
	return nil
}

func (t *TCP) contribute(vals []int32) error {
	msg := Message{Type: MsgTypeReduce, Rank: t.rank, Round: t.round, Values: vals}
	if err := WriteMessage(t.hub, msg); err != nil {
		return fmt.Errorf("send contribution: %w", err)
	}

	var result Message
	if err := ReadMessage(t.hub, &result); err != nil {
		return fmt.Errorf("read result: %w", err)
	}
	if result.Type != MsgTypeReduce || result.Round != t.round || len(result.Values) != len(vals) {
		return fmt.Errorf("unexpected result %q round %d with %d values", result.Type, result.Round, len(result.Values))
	}
	copy(vals, result.Values)
	return nil
}

// Close releases every connection. Pending reductions on other members fail.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.hub != nil {
		errs = append(errs, t.hub.Close())
	}
	for _, c := range t.peers {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

var (
	_ Group = Single{}
	_ Group = (*Local)(nil)
	_ Group = (*TCP)(nil)
)
