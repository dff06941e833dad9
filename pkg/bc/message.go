package bc

// Header layout (little endian)
//
//	+-------+-------+---------+----+--------+--------+----------+-------+----------------+
//	| MAGIC | MSGID | BODYLEN | CH | STREAM | MSGNUM | RESPONSE | CLASS | PAYLOAD OFFSET |
//	+-------+-------+---------+----+--------+--------+----------+-------+----------------+
//	|   4   |   4   |    4    | 1  |   1    |   2    |    2     |   2   | 4 (optional)   |
//	+-------+-------+---------+----+--------+--------+----------+-------+----------------+
const (
	MagicHeader    = uint32(0x0abcdef0)
	MagicHeaderRev = uint32(0x0fedcba0)

	HeaderSize       = 20
	HeaderSizeOffset = 24
)

const (
	MsgIDLogin      = uint32(1)
	MsgIDLogout     = uint32(2)
	MsgIDVideo      = uint32(3)
	MsgIDVideoStop  = uint32(4)
	MsgIDVersion    = uint32(80)
	MsgIDPing       = uint32(93)
	MsgIDGetGeneral = uint32(104)
	MsgIDSetGeneral = uint32(105)
)

const (
	ClassLegacy       = uint16(0x6514)
	ClassModern       = uint16(0x6614) // modern message without payload offset
	ClassModernOffset = uint16(0x6414)
	ClassModernReply  = uint16(0x0000)
)

const (
	ResponseCodeRequest    = uint16(0)
	ResponseCodeOK         = uint16(200)
	ResponseCodeBadRequest = uint16(400)

	// legacy login offer: "client understands BC encryption"
	ResponseCodeEncryptOffer = uint16(0x01dc)
	// legacy login reply: "all further payloads are encrypted"
	ResponseCodeEncrypted = uint16(0x01dd)
)

const (
	StreamMain = "mainStream"
	StreamSub  = "subStream"
)

// StreamType - stream number for the header field
func StreamType(name string) uint8 {
	if name == StreamSub {
		return 1
	}
	return 0
}

type Meta struct {
	MsgID        uint32
	ChannelID    uint8
	StreamType   uint8
	MsgNum       uint16
	ResponseCode uint16
	Class        uint16
}

// HasPayloadOffset - only some classes carry the extension length in the header
func (m *Meta) HasPayloadOffset() bool {
	return m.Class == ClassModernOffset || m.Class == ClassModernReply
}

func (m *Meta) IsLegacy() bool {
	return m.Class == ClassLegacy
}

func (m *Meta) headerSize() int {
	if m.HasPayloadOffset() {
		return HeaderSizeOffset
	}
	return HeaderSize
}

type Message struct {
	Meta

	// Legacy is set only for legacy login messages
	Legacy *LegacyLogin

	// Extension describes the payload that follows it
	Extension *Extension
	Payload   Payload
}

// Payload is one of: nil (absent), *Body or Binary
type Payload interface {
	payload()
}

// Binary - opaque payload, usually a chunk of the media stream
type Binary []byte

func (Binary) payload() {}

func (*Body) payload() {}

// LegacyLogin - fixed size login body, both fields are 32 bytes with a zero last byte
type LegacyLogin struct {
	Username string
	Password string
}

const legacyLoginSize = 1836

// NewMessage - modern message with XML payload
func NewMessage(meta Meta, body *Body) *Message {
	return &Message{Meta: meta, Payload: body}
}

// Body returns XML payload or nil
func (m *Message) Body() *Body {
	if body, ok := m.Payload.(*Body); ok {
		return body
	}
	return nil
}

// Binary returns binary payload or nil
func (m *Message) Binary() Binary {
	if b, ok := m.Payload.(Binary); ok {
		return b
	}
	return nil
}

// IsEmpty - modern message without extension and payload
func (m *Message) IsEmpty() bool {
	return m.Legacy == nil && m.Extension == nil && m.Payload == nil
}
