package bc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxBodySize - larger body length in a header is treated as a broken stream
const MaxBodySize = 16 << 20

// Marshal - header and body ready for the wire.
// XML parts are encrypted when the session cipher is active, binary payload never.
func (m *Message) Marshal(encrypted bool) ([]byte, error) {
	var ext, payload []byte

	if m.IsLegacy() {
		payload = m.marshalLegacy()
	} else {
		if m.Extension != nil {
			if !m.HasPayloadOffset() {
				return nil, fmt.Errorf("bc: extension with class 0x%04x", m.Class)
			}

			var err error
			if ext, err = marshalXML(m.Extension, "Extension"); err != nil {
				return nil, err
			}
			if encrypted {
				ext = Crypt(m.ChannelID, ext)
			}
		}

		switch p := m.Payload.(type) {
		case *Body:
			var err error
			if payload, err = marshalXML(p, "body"); err != nil {
				return nil, err
			}
			if encrypted {
				payload = Crypt(m.ChannelID, payload)
			}
		case Binary:
			payload = p
		}
	}

	size := m.headerSize()
	b := make([]byte, size, size+len(ext)+len(payload))

	binary.LittleEndian.PutUint32(b, MagicHeader)
	binary.LittleEndian.PutUint32(b[4:], m.MsgID)
	binary.LittleEndian.PutUint32(b[8:], uint32(len(ext)+len(payload)))
	b[12] = m.ChannelID
	b[13] = m.StreamType
	binary.LittleEndian.PutUint16(b[14:], m.MsgNum)
	binary.LittleEndian.PutUint16(b[16:], m.ResponseCode)
	binary.LittleEndian.PutUint16(b[18:], m.Class)
	if m.HasPayloadOffset() {
		binary.LittleEndian.PutUint32(b[20:], uint32(len(ext)))
	}

	b = append(b, ext...)
	b = append(b, payload...)
	return b, nil
}

func (m *Message) marshalLegacy() []byte {
	if m.Legacy != nil {
		b := make([]byte, legacyLoginSize)
		copy(b[:32], m.Legacy.Username)
		copy(b[32:64], m.Legacy.Password)
		return b
	}
	if b, ok := m.Payload.(Binary); ok {
		return b
	}
	return nil
}

// Encode - write one message to w
func Encode(w io.Writer, msg *Message, encrypted bool) error {
	b, err := msg.Marshal(encrypted)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decoder reads messages from a byte stream. It remembers which messages
// switched to binary mode. Decode must be called from one goroutine,
// Forget is safe from any.
type Decoder struct {
	rd   *bufio.Reader
	head [HeaderSizeOffset]byte

	mu     sync.Mutex
	binary map[binaryKey]struct{}
}

// binaryKey - msg numbers wrap, so the msg ID is part of the key
type binaryKey struct {
	msgID  uint32
	msgNum uint16
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		rd:     bufio.NewReaderSize(r, 64*1024),
		binary: map[binaryKey]struct{}{},
	}
}

// Forget - drop binary mode for all messages with this ID
func (d *Decoder) Forget(msgID uint32) {
	d.mu.Lock()
	for key := range d.binary {
		if key.msgID == msgID {
			delete(d.binary, key)
		}
	}
	d.mu.Unlock()
}

func (d *Decoder) isBinary(key binaryKey) bool {
	d.mu.Lock()
	_, ok := d.binary[key]
	d.mu.Unlock()
	return ok
}

// Decode - read next message. Returns io.EOF only if the stream ended
// exactly on a message boundary.
func (d *Decoder) Decode(encrypted bool) (*Message, error) {
	if _, err := io.ReadFull(d.rd, d.head[:HeaderSize]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}

	magic := binary.LittleEndian.Uint32(d.head[:])
	if magic != MagicHeader && magic != MagicHeaderRev {
		return nil, fmt.Errorf("%w: magic 0x%08x", ErrBadHeader, magic)
	}

	msg := &Message{
		Meta: Meta{
			MsgID:        binary.LittleEndian.Uint32(d.head[4:]),
			ChannelID:    d.head[12],
			StreamType:   d.head[13],
			MsgNum:       binary.LittleEndian.Uint16(d.head[14:]),
			ResponseCode: binary.LittleEndian.Uint16(d.head[16:]),
			Class:        binary.LittleEndian.Uint16(d.head[18:]),
		},
	}
	size := binary.LittleEndian.Uint32(d.head[8:])
	if size > MaxBodySize {
		return nil, fmt.Errorf("%w: body %d", ErrBadHeader, size)
	}

	var offset uint32
	if msg.HasPayloadOffset() {
		if _, err := io.ReadFull(d.rd, d.head[HeaderSize:]); err != nil {
			return nil, ErrTruncated
		}
		offset = binary.LittleEndian.Uint32(d.head[HeaderSize:])
		if offset > size {
			return nil, fmt.Errorf("%w: payload offset %d > body %d", ErrBadHeader, offset, size)
		}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.rd, body); err != nil {
		return nil, ErrTruncated
	}

	if msg.IsLegacy() {
		d.decodeLegacy(msg, body)
		return msg, nil
	}

	// the reply that turns the cipher on is already encrypted
	cipher := encrypted || (msg.MsgID == MsgIDLogin && msg.ResponseCode == ResponseCodeEncrypted)

	key := binaryKey{msgID: msg.MsgID, msgNum: msg.MsgNum}

	if ext := body[:offset]; len(ext) > 0 {
		if cipher {
			ext = Crypt(msg.ChannelID, ext)
		}
		msg.Extension = &Extension{}
		_ = unmarshalXML(ext, msg.Extension)
		if msg.Extension.IsBinary() {
			d.mu.Lock()
			d.binary[key] = struct{}{}
			d.mu.Unlock()
		}
	}

	if payload := body[offset:]; len(payload) > 0 {
		if d.isBinary(key) {
			msg.Payload = Binary(payload)
		} else {
			if cipher {
				payload = Crypt(msg.ChannelID, payload)
			}
			b := &Body{}
			_ = unmarshalXML(payload, b)
			msg.Payload = b
		}
	}

	return msg, nil
}

func (d *Decoder) decodeLegacy(msg *Message, body []byte) {
	if msg.MsgID == MsgIDLogin && len(body) >= 64 {
		msg.Legacy = &LegacyLogin{
			Username: string(body[:32]),
			Password: string(body[32:64]),
		}
	} else if len(body) > 0 {
		msg.Payload = Binary(body)
	}
}
