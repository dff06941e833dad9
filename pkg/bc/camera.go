package bc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entropin/neolink/pkg/bcmedia"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 5 * time.Second

// captureFrameUnits - how many units to check for an I-frame
const captureFrameUnits = 30

// Camera - logged in session with one camera channel
type Camera struct {
	conn    *Conn
	channel uint8
	timeout time.Duration
	log     zerolog.Logger

	msgNum   atomic.Uint32
	loggedIn atomic.Bool

	mu         sync.Mutex
	user       *LoginUser
	aesKey     [16]byte
	deviceInfo *DeviceInfo
}

// Connect - dial the camera, you need to Login after that
func Connect(ctx context.Context, address string, channel uint8, timeout time.Duration, log zerolog.Logger) (*Camera, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	conn, err := Dial(ctx, address, timeout, log)
	if err != nil {
		return nil, err
	}

	return NewCamera(conn, channel, timeout, log), nil
}

func NewCamera(conn *Conn, channel uint8, timeout time.Duration, log zerolog.Logger) *Camera {
	return &Camera{conn: conn, channel: channel, timeout: timeout, log: log}
}

func (c *Camera) Conn() *Conn {
	return c.conn
}

func (c *Camera) ChannelID() uint8 {
	return c.channel
}

func (c *Camera) LoggedIn() bool {
	return c.loggedIn.Load()
}

// AESKey - derived on login, not used by BC encryption
func (c *Camera) AESKey() [16]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aesKey
}

func (c *Camera) DeviceInfo() *DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceInfo
}

// Disconnect - logout and close the connection
func (c *Camera) Disconnect() error {
	c.Logout()
	return c.conn.Close()
}

func (c *Camera) newMsgNum() uint16 {
	return uint16(c.msgNum.Add(1) - 1)
}

func (c *Camera) newMeta(msgID uint32) Meta {
	return Meta{
		MsgID:     msgID,
		ChannelID: c.channel,
		MsgNum:    c.newMsgNum(),
		Class:     ClassModernOffset,
	}
}

// request - send message and wait for the reply with the same msg ID
func (c *Camera) request(msg *Message) (*Message, error) {
	sub, err := c.conn.Subscribe(msg.MsgID)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	if err = sub.Send(msg); err != nil {
		return nil, err
	}

	reply, err := sub.Recv(c.timeout)
	if err != nil {
		return nil, err
	}

	if reply.ResponseCode != ResponseCodeOK {
		return nil, &ReplyError{Reply: reply, Why: "not ok"}
	}
	return reply, nil
}

// Ping - keepalive, camera replies with empty message
func (c *Camera) Ping() error {
	_, err := c.request(&Message{Meta: c.newMeta(MsgIDPing)})
	return err
}

func (c *Camera) Version() (*VersionInfo, error) {
	reply, err := c.request(&Message{Meta: c.newMeta(MsgIDVersion)})
	if err != nil {
		return nil, err
	}

	if body := reply.Body(); body != nil && body.VersionInfo != nil {
		return body.VersionInfo, nil
	}
	return nil, &ReplyError{Reply: reply, Why: "no version info"}
}

// GetTime - camera clock, zero time if the clock was never set
func (c *Camera) GetTime() (time.Time, error) {
	reply, err := c.request(&Message{Meta: c.newMeta(MsgIDGetGeneral)})
	if err != nil {
		return time.Time{}, err
	}

	body := reply.Body()
	if body == nil || body.SystemGeneral == nil {
		return time.Time{}, &ReplyError{Reply: reply, Why: "no system general"}
	}

	g := body.SystemGeneral
	if g.Year == nil || *g.Year == 0 || g.Month == nil || g.Day == nil || g.Hour == nil || g.Minute == nil || g.Second == nil {
		return time.Time{}, nil
	}

	var offset int
	if g.TimeZone != nil {
		offset = -int(*g.TimeZone)
	}

	loc := time.FixedZone("", offset)
	return time.Date(
		int(*g.Year), time.Month(*g.Month), int(*g.Day),
		int(*g.Hour), int(*g.Minute), int(*g.Second), 0, loc,
	), nil
}

func (c *Camera) SetTime(t time.Time) error {
	_, offset := t.Zone()

	tz := int32(-offset)
	year := int32(t.Year())
	month := uint8(t.Month())
	day := uint8(t.Day())
	hour := uint8(t.Hour())
	minute := uint8(t.Minute())
	second := uint8(t.Second())

	msg := &Message{
		Meta: c.newMeta(MsgIDSetGeneral),
		Payload: &Body{
			SystemGeneral: &SystemGeneral{
				Version:  XMLVersion,
				TimeZone: &tz,
				Year:     &year,
				Month:    &month,
				Day:      &day,
				Hour:     &hour,
				Minute:   &minute,
				Second:   &second,
			},
		},
	}

	_, err := c.request(msg)
	return err
}

// Stream - running video subscription
type Stream struct {
	*bcmedia.Demuxer

	camera *Camera
	sub    *Subscription
	name   string
	once   sync.Once
}

// StartVideo - ask camera for the stream (mainStream or subStream).
// Only one stream per connection can run at a time.
func (c *Camera) StartVideo(stream string) (*Stream, error) {
	sub, err := c.conn.Subscribe(MsgIDVideo)
	if err != nil {
		return nil, err
	}

	meta := c.newMeta(MsgIDVideo)
	meta.StreamType = StreamType(stream)

	msg := &Message{
		Meta: meta,
		Payload: &Body{
			Preview: &Preview{
				Version:    XMLVersion,
				ChannelID:  c.channel,
				Handle:     0,
				StreamType: stream,
			},
		},
	}
	if err = sub.Send(msg); err != nil {
		sub.Close()
		return nil, err
	}

	c.log.Debug().Msgf("[bc] start video %s stream=%s", c.conn.RemoteAddr(), stream)

	rd := &videoReader{sub: sub, timeout: c.timeout}

	return &Stream{
		Demuxer: bcmedia.NewDemuxer(rd),
		camera:  c,
		sub:     sub,
		name:    stream,
	}, nil
}

// Close - stop receiving, the camera is asked to stop sending
func (s *Stream) Close() {
	s.once.Do(func() {
		s.sub.Close()
		s.camera.stopVideo(s.name)
	})
}

func (c *Camera) stopVideo(stream string) {
	sub, err := c.conn.Subscribe(MsgIDVideoStop)
	if err != nil {
		return
	}
	defer sub.Close()

	meta := c.newMeta(MsgIDVideoStop)
	meta.StreamType = StreamType(stream)

	msg := &Message{
		Meta: meta,
		Payload: &Body{
			Preview: &Preview{Version: XMLVersion, ChannelID: c.channel, StreamType: stream},
		},
	}
	if err = sub.Send(msg); err != nil {
		c.log.Trace().Err(err).Msg("[bc] stop video")
	}
}

// StreamTo - blocks until context cancel, stream error or sink error
func (c *Camera) StreamTo(ctx context.Context, stream string, sink bcmedia.Sink) error {
	video, err := c.StartVideo(stream)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, video.Close)
	defer stop()
	defer video.Close()

	for {
		unit, err := video.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err = sink.Accept(unit); err != nil {
			return err
		}
	}
}

// CaptureFrame - first I-frame from the stream
func (c *Camera) CaptureFrame(stream string) (*bcmedia.Unit, error) {
	video, err := c.StartVideo(stream)
	if err != nil {
		return nil, err
	}
	defer video.Close()

	for i := 0; i < captureFrameUnits; i++ {
		unit, err := video.Next()
		if err != nil {
			return nil, err
		}
		if unit.Kind == bcmedia.KindIFrame {
			return unit, nil
		}
	}

	return nil, fmt.Errorf("%w: no I-frame in %d units", ErrTimeout, captureFrameUnits)
}

// videoReader - binary payloads of the video subscription as a byte stream
type videoReader struct {
	sub     *Subscription
	timeout time.Duration
	buf     []byte
}

func (r *videoReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		msg, err := r.sub.Recv(r.timeout)
		if err != nil {
			return 0, err
		}

		if msg.ResponseCode == ResponseCodeBadRequest {
			return 0, &ReplyError{Reply: msg, Why: "video refused"}
		}

		// XML replies to the start request have no media
		r.buf = msg.Binary()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
