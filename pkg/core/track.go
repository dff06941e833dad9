package core

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
)

var ErrCantGetTrack = errors.New("can't get track")

// Receiver - source side of the track, fan-out to all Senders
type Receiver struct {
	Node

	Media *Media

	bytes   atomic.Int64
	packets atomic.Int64
}

func NewReceiver(media *Media, codec *Codec) *Receiver {
	Assert(codec != nil)

	r := &Receiver{Node: Node{id: NewID(), Codec: codec}, Media: media}
	r.Input = func(packet *Packet) {
		r.bytes.Add(int64(len(packet.Payload)))
		r.packets.Add(1)
		for _, child := range r.Childs() {
			child.Input(packet)
		}
	}
	return r
}

// WriteRTP - non blocking write to all Senders buffers
func (r *Receiver) WriteRTP(packet *Packet) {
	r.Input(packet)
}

func (r *Receiver) Senders() int {
	return len(r.Childs())
}

func (r *Receiver) String() string {
	return r.Codec.String() +
		", bytes=" + strconv.FormatInt(r.bytes.Load(), 10) +
		", senders=" + strconv.Itoa(r.Senders())
}

func (r *Receiver) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Sender - consumer side of the track with own buffer and goroutine,
// so slow consumer never blocks the camera reader
type Sender struct {
	Node

	Media *Media

	// Handler - consumer output, called from the Sender goroutine
	Handler HandlerFunc

	bytes   int
	packets int
	drops   int

	buf  chan *Packet
	done chan struct{}

	mu sync.Mutex
}

func NewSender(media *Media, codec *Codec) *Sender {
	bufSize := 128
	if GetKind(codec.Name) == KindVideo {
		bufSize = 64 // whole frames
	}

	s := &Sender{
		Node:  Node{id: NewID(), Codec: codec},
		Media: media,
		buf:   make(chan *Packet, bufSize),
	}
	s.Input = func(packet *Packet) {
		s.mu.Lock()
		// write to nil chan never happens, select goes to default
		select {
		case s.buf <- packet:
			s.bytes += len(packet.Payload)
			s.packets++
		default:
			s.drops++
		}
		s.mu.Unlock()
	}
	s.Output = func(packet *Packet) {
		s.Handler(packet)
	}
	s.onClose = s.closeBuffer
	return s
}

// HandleRTP - bind to Receiver and start reading
func (s *Sender) HandleRTP(parent *Receiver) {
	s.WithParent(&parent.Node)
	s.Start()
}

func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil || s.done != nil {
		return
	}
	s.done = make(chan struct{})

	go func(buf chan *Packet, done chan struct{}) {
		for packet := range buf {
			s.Output(packet)
		}
		close(done)
	}(s.buf, s.done)
}

// Wait - until Sender closed and all buffered packets handled
func (s *Sender) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Sender) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.buf == nil:
		return "closed"
	case s.done == nil:
		return "new"
	}
	return "connected"
}

func (s *Sender) Stats() (packets, drops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.drops
}

func (s *Sender) closeBuffer() {
	s.mu.Lock()
	if s.buf != nil {
		close(s.buf)
		s.buf = nil
	}
	s.mu.Unlock()
}

func (s *Sender) String() string {
	s.mu.Lock()
	info := s.Codec.String() + ", bytes=" + strconv.Itoa(s.bytes)
	if s.drops > 0 {
		info += ", drops=" + strconv.Itoa(s.drops)
	}
	s.mu.Unlock()
	return info
}

func (s *Sender) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
