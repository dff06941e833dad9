package bc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const DefaultPort = "9000"

// Dial - open TCP session with the camera, port 9000 if not set
func Dial(ctx context.Context, address string, timeout time.Duration, log zerolog.Logger) (*Conn, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return NewConn(conn, log), nil
}

// Conn - one TCP session with the camera. Single reader goroutine
// dispatches messages to subscriptions by msg ID, writers are serialized.
type Conn struct {
	conn net.Conn
	dec  *Decoder
	log  zerolog.Logger

	mu     sync.Mutex
	routes map[uint32]*Subscription
	closed bool

	wmu sync.Mutex

	encrypted atomic.Bool

	recv atomic.Int64
	send atomic.Int64

	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

func NewConn(conn net.Conn, log zerolog.Logger) *Conn {
	c := &Conn{
		conn:    conn,
		log:     log,
		routes:  map[uint32]*Subscription{},
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.dec = NewDecoder(&countReader{r: conn, n: &c.recv})

	go c.reader()

	return c
}

// Subscribe - exclusive route for the msg ID until Subscription.Close
func (c *Conn) Subscribe(msgID uint32) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrDisconnected
	}
	if _, ok := c.routes[msgID]; ok {
		return nil, fmt.Errorf("%w: msg id %d", ErrAlreadySubscribed, msgID)
	}

	sub := &Subscription{
		conn:  c,
		msgID: msgID,
		ch:    make(chan *Message, 100),
		done:  make(chan struct{}),
	}
	c.routes[msgID] = sub
	return sub, nil
}

// SetEncrypted - turn on the BC cipher for all further XML payloads.
// There is no way back for the lifetime of the connection. The reader calls it
// on the legacy login reply, before the next message is decoded.
func (c *Conn) SetEncrypted() {
	if c.encrypted.CompareAndSwap(false, true) {
		c.log.Trace().Msgf("[bc] encryption on %s", c.conn.RemoteAddr())
	}
}

func (c *Conn) Encrypted() bool {
	return c.encrypted.Load()
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// BytesRecv and BytesSent count raw bytes on the socket
func (c *Conn) BytesRecv() int64 {
	return c.recv.Load()
}

func (c *Conn) BytesSent() int64 {
	return c.send.Load()
}

// Done closed when the reader stops
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err - why the reader stopped, valid after Done
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close stops the reader and waits for it. Returns an error only
// if the reader died from a panic.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.conn.Close()
	})
	<-c.done
	if errors.Is(c.err, ErrReaderPanic) {
		return c.err
	}
	return nil
}

func (c *Conn) write(msg *Message) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}

	b, err := msg.Marshal(c.encrypted.Load())
	if err != nil {
		return err
	}

	c.wmu.Lock()
	n, err := c.conn.Write(b)
	c.wmu.Unlock()

	c.send.Add(int64(n))

	if err != nil {
		return fmt.Errorf("%w: %w", ErrDisconnected, err)
	}
	return nil
}

func (c *Conn) reader() {
	defer func() {
		if r := recover(); r != nil {
			c.finish(fmt.Errorf("%w: %v", ErrReaderPanic, r))
		}
	}()

	for {
		msg, err := c.dec.Decode(c.encrypted.Load())
		if err != nil {
			c.finish(err)
			return
		}
		// next header may already carry a ciphered body
		if msg.MsgID == MsgIDLogin && msg.ResponseCode == ResponseCodeEncrypted {
			c.SetEncrypted()
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *Message) {
	c.mu.Lock()
	sub := c.routes[msg.MsgID]
	c.mu.Unlock()

	if sub == nil {
		c.log.Debug().Msgf("[bc] drop msg id=%d num=%d code=0x%04x", msg.MsgID, msg.MsgNum, msg.ResponseCode)
		return
	}

	// Full channel blocks the reader and so every route on this connection.
	// Media chunks can't be dropped without breaking the unit stream, a stalled
	// ping times out and the session is restarted.
	// The lock is not held here, Subscribe and Close still work.
	select {
	case sub.ch <- msg:
	case <-sub.done:
		c.mu.Lock()
		if c.routes[msg.MsgID] == sub {
			delete(c.routes, msg.MsgID)
		}
		c.mu.Unlock()
		c.log.Debug().Msgf("[bc] drop msg id=%d for closed subscription", msg.MsgID)
	case <-c.closing:
	}
}

func (c *Conn) finish(err error) {
	select {
	case <-c.closing:
		// reader errors after Close are expected
		if !errors.Is(err, ErrReaderPanic) {
			err = ErrDisconnected
		}
	default:
		if errors.Is(err, io.EOF) {
			err = ErrDisconnected
		}
		c.log.Debug().Err(err).Msgf("[bc] reader stop %s", c.conn.RemoteAddr())
	}

	c.mu.Lock()
	c.closed = true
	c.err = err
	for id, sub := range c.routes {
		close(sub.ch)
		delete(c.routes, id)
	}
	c.mu.Unlock()

	_ = c.conn.Close()
	close(c.done)
}

// Subscription - receive side of one msg ID
type Subscription struct {
	conn  *Conn
	msgID uint32

	ch        chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) MsgID() uint32 {
	return s.msgID
}

// Send - the message must have the subscription msg ID
func (s *Subscription) Send(msg *Message) error {
	if msg.MsgID != s.msgID {
		panic(fmt.Sprintf("bc: send msg id %d with subscription %d", msg.MsgID, s.msgID))
	}
	return s.conn.write(msg)
}

// Recv - next message with the subscription msg ID.
// Returns ErrTimeout or ErrDisconnected.
func (s *Subscription) Recv(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, ErrDisconnected
		}
		return msg, nil
	case <-s.done:
		return nil, ErrDisconnected
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Close releases the msg ID, safe to call many times
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		c := s.conn
		c.mu.Lock()
		if c.routes[s.msgID] == s {
			delete(c.routes, s.msgID)
		}
		c.mu.Unlock()

		c.dec.Forget(s.msgID)
	})
}

type countReader struct {
	r io.Reader
	n *atomic.Int64
}

func (r *countReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n.Add(int64(n))
	return n, err
}
