package bc

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeCamera - server side of the test connection
type fakeCamera struct {
	t         *testing.T
	conn      net.Conn
	dec       *Decoder
	encrypted bool
}

func (f *fakeCamera) recv() *Message {
	require.Nil(f.t, f.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msg, err := f.dec.Decode(f.encrypted)
	require.Nil(f.t, err)
	return msg
}

func (f *fakeCamera) send(msg *Message) {
	require.Nil(f.t, Encode(f.conn, msg, f.encrypted))
}

func (f *fakeCamera) reply(req *Message, code uint16, body *Body) {
	msg := &Message{
		Meta: Meta{
			MsgID:        req.MsgID,
			ChannelID:    req.ChannelID,
			MsgNum:       req.MsgNum,
			ResponseCode: code,
			Class:        ClassModernReply,
		},
	}
	if body != nil {
		msg.Payload = body
	}
	f.send(msg)
}

func newTestConn(t *testing.T) (*Conn, *fakeCamera) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.Nil(t, err)

	server := <-accepted
	require.NotNil(t, server)

	conn := NewConn(client, zerolog.Nop())

	t.Cleanup(func() {
		_ = conn.Close()
		_ = server.Close()
	})

	return conn, &fakeCamera{t: t, conn: server, dec: NewDecoder(server)}
}

func TestSubscribeExclusive(t *testing.T) {
	conn, _ := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)

	_, err = conn.Subscribe(MsgIDVideo)
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	other, err := conn.Subscribe(MsgIDPing)
	require.Nil(t, err)
	other.Close()

	sub.Close()
	sub.Close()

	sub, err = conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)
	sub.Close()
}

func TestSubscriptionRoute(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDVersion)
	require.Nil(t, err)
	defer sub.Close()

	// nobody waits for ping, it should be dropped
	camera.send(&Message{Meta: Meta{MsgID: MsgIDPing, MsgNum: 1, Class: ClassModernReply}})
	camera.send(&Message{
		Meta:    Meta{MsgID: MsgIDVersion, MsgNum: 2, ResponseCode: ResponseCodeOK, Class: ClassModernReply},
		Payload: &Body{VersionInfo: &VersionInfo{Name: "Cam"}},
	})

	msg, err := sub.Recv(time.Second)
	require.Nil(t, err)
	require.Equal(t, MsgIDVersion, msg.MsgID)
	require.Equal(t, uint16(2), msg.MsgNum)
	require.Equal(t, "Cam", msg.Body().VersionInfo.Name)

	_, err = sub.Recv(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSubscriptionOrder(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)
	defer sub.Close()

	for i := uint16(0); i < 10; i++ {
		camera.send(&Message{
			Meta:      Meta{MsgID: MsgIDVideo, MsgNum: i, Class: ClassModernReply},
			Extension: NewBinaryExtension(),
			Payload:   Binary{byte(i)},
		})
	}

	for i := uint16(0); i < 10; i++ {
		msg, err := sub.Recv(time.Second)
		require.Nil(t, err)
		require.Equal(t, i, msg.MsgNum)
		require.Equal(t, Binary{byte(i)}, msg.Binary())
	}
}

func TestSubscriptionSend(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDPing)
	require.Nil(t, err)
	defer sub.Close()

	require.Nil(t, sub.Send(&Message{Meta: Meta{MsgID: MsgIDPing, MsgNum: 5, Class: ClassModernOffset}}))

	msg := camera.recv()
	require.Equal(t, MsgIDPing, msg.MsgID)
	require.Equal(t, uint16(5), msg.MsgNum)
	require.Positive(t, conn.BytesSent())

	require.Panics(t, func() {
		_ = sub.Send(&Message{Meta: Meta{MsgID: MsgIDVersion}})
	})
}

func TestDisconnect(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)

	require.Nil(t, camera.conn.Close())

	_, err = sub.Recv(time.Second)
	require.ErrorIs(t, err, ErrDisconnected)

	<-conn.Done()
	require.ErrorIs(t, conn.Err(), ErrDisconnected)

	_, err = conn.Subscribe(MsgIDPing)
	require.ErrorIs(t, err, ErrDisconnected)

	require.Nil(t, conn.Close())
}

func TestTruncatedStream(t *testing.T) {
	conn, camera := newTestConn(t)

	b, err := (&Message{Meta: Meta{MsgID: MsgIDPing, Class: ClassModernOffset}, Payload: &Body{}}).Marshal(false)
	require.Nil(t, err)

	_, err = camera.conn.Write(b[:len(b)-3])
	require.Nil(t, err)
	require.Nil(t, camera.conn.Close())

	<-conn.Done()
	require.ErrorIs(t, conn.Err(), ErrTruncated)
}

func TestCloseSubscriberAbandoned(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)

	// fill the channel and close without reading
	for i := 0; i < 150; i++ {
		camera.send(&Message{
			Meta:      Meta{MsgID: MsgIDVideo, MsgNum: 1, Class: ClassModernReply},
			Extension: NewBinaryExtension(),
			Payload:   Binary{1, 2, 3},
		})
	}
	sub.Close()

	// reader is not stuck, another route still works
	ping, err := conn.Subscribe(MsgIDPing)
	require.Nil(t, err)
	defer ping.Close()

	camera.send(&Message{Meta: Meta{MsgID: MsgIDPing, MsgNum: 2, Class: ClassModernReply}})

	msg, err := ping.Recv(time.Second)
	require.Nil(t, err)
	require.Equal(t, uint16(2), msg.MsgNum)

	require.Nil(t, conn.Close())
}

func TestEncryptedSwitch(t *testing.T) {
	conn, camera := newTestConn(t)

	sub, err := conn.Subscribe(MsgIDLogin)
	require.Nil(t, err)
	defer sub.Close()

	// both replies are on the wire before the client reads the first one
	camera.encrypted = true
	camera.send(&Message{
		Meta: Meta{MsgID: MsgIDLogin, MsgNum: 1, ResponseCode: ResponseCodeEncrypted, Class: ClassModernReply},
		Payload: &Body{
			Encryption: &Encryption{Version: XMLVersion, Type: "md5", Nonce: testNonce},
		},
	})
	camera.send(&Message{
		Meta:    Meta{MsgID: MsgIDLogin, MsgNum: 2, ResponseCode: ResponseCodeOK, Class: ClassModernReply},
		Payload: &Body{DeviceInfo: &DeviceInfo{Resolution: Resolution{Name: "2304*1296", Width: 2304}}},
	})

	msg, err := sub.Recv(time.Second)
	require.Nil(t, err)
	require.Equal(t, testNonce, msg.Body().Encryption.Nonce)
	require.True(t, conn.Encrypted())

	msg, err = sub.Recv(time.Second)
	require.Nil(t, err)
	require.NotNil(t, msg.Body().DeviceInfo)
	require.Equal(t, uint32(2304), msg.Body().DeviceInfo.Resolution.Width)
}

func TestDispatchBackpressure(t *testing.T) {
	conn, camera := newTestConn(t)

	video, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)
	defer video.Close()

	ping, err := conn.Subscribe(MsgIDPing)
	require.Nil(t, err)
	defer ping.Close()

	for i := 0; i < 150; i++ {
		camera.send(&Message{
			Meta:      Meta{MsgID: MsgIDVideo, MsgNum: 1, Class: ClassModernReply},
			Extension: NewBinaryExtension(),
			Payload:   Binary{byte(i)},
		})
	}
	camera.send(&Message{Meta: Meta{MsgID: MsgIDPing, MsgNum: 2, Class: ClassModernReply}})

	// video consumer is behind, ping waits in the socket
	_, err = ping.Recv(100 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)

	for i := 0; i < 150; i++ {
		msg, err := video.Recv(time.Second)
		require.Nil(t, err)
		require.Equal(t, Binary{byte(i)}, msg.Binary())
	}

	msg, err := ping.Recv(time.Second)
	require.Nil(t, err)
	require.Equal(t, uint16(2), msg.MsgNum)
}

// brokenConn panics on read after trigger
type brokenConn struct {
	net.Conn
	trigger chan struct{}
}

func (c *brokenConn) Read([]byte) (int, error) {
	<-c.trigger
	panic("broken read")
}

func TestReaderPanic(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	trigger := make(chan struct{})
	conn := NewConn(&brokenConn{Conn: client, trigger: trigger}, zerolog.Nop())

	sub, err := conn.Subscribe(MsgIDVideo)
	require.Nil(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := sub.Recv(5 * time.Second)
		errs <- err
	}()

	close(trigger)

	require.ErrorIs(t, <-errs, ErrDisconnected)

	<-conn.Done()
	require.ErrorIs(t, conn.Err(), ErrReaderPanic)

	err = conn.Close()
	require.ErrorIs(t, err, ErrReaderPanic)
	require.Contains(t, err.Error(), "broken read")

	_, err = conn.Subscribe(MsgIDPing)
	require.ErrorIs(t, err, ErrDisconnected)
}
