package bc

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/entropin/neolink/pkg/bcmedia"
	"github.com/stretchr/testify/require"
)

func TestPing(t *testing.T) {
	camera, fake := newTestCamera(t)

	errs := make(chan error, 1)
	go func() { errs <- camera.Ping() }()

	req := fake.recv()
	require.Equal(t, MsgIDPing, req.MsgID)
	fake.reply(req, ResponseCodeOK, nil)

	require.Nil(t, <-errs)

	go func() { errs <- camera.Ping() }()
	req = fake.recv()
	fake.reply(req, ResponseCodeBadRequest, nil)

	require.ErrorIs(t, <-errs, ErrUnexpectedReply)
}

func TestMsgNum(t *testing.T) {
	camera, fake := newTestCamera(t)

	go func() {
		_ = camera.Ping()
		_ = camera.Ping()
	}()

	req := fake.recv()
	require.Equal(t, uint16(0), req.MsgNum)
	fake.reply(req, ResponseCodeOK, nil)

	req = fake.recv()
	require.Equal(t, uint16(1), req.MsgNum)
	fake.reply(req, ResponseCodeOK, nil)
}

func TestVersion(t *testing.T) {
	camera, fake := newTestCamera(t)

	type result struct {
		info *VersionInfo
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		info, err := camera.Version()
		ch <- result{info, err}
	}()

	req := fake.recv()
	require.Equal(t, MsgIDVersion, req.MsgID)
	fake.reply(req, ResponseCodeOK, &Body{VersionInfo: &VersionInfo{
		Name:            "Driveway",
		SerialNumber:    "00000000000000",
		FirmwareVersion: "v3.0.0.136_20121102",
	}})

	res := <-ch
	require.Nil(t, res.err)
	require.Equal(t, "Driveway", res.info.Name)
	require.Equal(t, "v3.0.0.136_20121102", res.info.FirmwareVersion)
}

func TestTime(t *testing.T) {
	camera, fake := newTestCamera(t)

	loc := time.FixedZone("", 7*3600)
	ts := time.Date(2021, 5, 6, 7, 8, 9, 0, loc)

	errs := make(chan error, 1)
	go func() { errs <- camera.SetTime(ts) }()

	req := fake.recv()
	require.Equal(t, MsgIDSetGeneral, req.MsgID)
	general := req.Body().SystemGeneral
	require.Equal(t, int32(-25200), *general.TimeZone)
	require.Equal(t, int32(2021), *general.Year)
	require.Equal(t, uint8(9), *general.Second)
	fake.reply(req, ResponseCodeOK, nil)
	require.Nil(t, <-errs)

	type result struct {
		ts  time.Time
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ts, err := camera.GetTime()
		ch <- result{ts, err}
	}()

	req = fake.recv()
	require.Equal(t, MsgIDGetGeneral, req.MsgID)
	fake.reply(req, ResponseCodeOK, &Body{SystemGeneral: general})

	res := <-ch
	require.Nil(t, res.err)
	require.True(t, ts.Equal(res.ts))

	// clock was never set
	go func() {
		ts, err := camera.GetTime()
		ch <- result{ts, err}
	}()
	req = fake.recv()
	zero := int32(0)
	fake.reply(req, ResponseCodeOK, &Body{SystemGeneral: &SystemGeneral{Version: XMLVersion, Year: &zero}})

	res = <-ch
	require.Nil(t, res.err)
	require.True(t, res.ts.IsZero())
}

func iframe(payload []byte) []byte {
	b := []byte("00dcH264")
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = append(b, payload...)
	return append(b, make([]byte, (8-len(payload)%8)%8)...)
}

func pframe(payload []byte) []byte {
	b := iframe(payload)
	b[1] = '1'
	return b
}

func (f *fakeCamera) sendVideo(req *Message, chunks ...[]byte) {
	f.send(&Message{
		Meta:      Meta{MsgID: MsgIDVideo, MsgNum: req.MsgNum, ResponseCode: ResponseCodeOK, Class: ClassModernReply},
		Extension: NewBinaryExtension(),
		Payload:   Binary(chunks[0]),
	})
	for _, chunk := range chunks[1:] {
		f.send(&Message{
			Meta:    Meta{MsgID: MsgIDVideo, MsgNum: req.MsgNum, ResponseCode: ResponseCodeOK, Class: ClassModernReply},
			Payload: Binary(chunk),
		})
	}
}

func TestStreamTo(t *testing.T) {
	camera, fake := newTestCamera(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	units := make(chan *bcmedia.Unit, 10)
	sink := bcmedia.SinkFunc(func(unit *bcmedia.Unit) error {
		units <- unit
		return nil
	})

	errs := make(chan error, 1)
	go func() { errs <- camera.StreamTo(ctx, StreamSub, sink) }()

	req := fake.recv()
	require.Equal(t, MsgIDVideo, req.MsgID)
	require.Equal(t, uint8(1), req.StreamType)
	require.Equal(t, StreamSub, req.Body().Preview.StreamType)

	// XML ack without media, then units split across messages
	fake.reply(req, ResponseCodeOK, nil)

	stream := append(iframe(make([]byte, 100)), pframe(make([]byte, 200))...)
	fake.sendVideo(req, stream[:50], stream[50:130], stream[130:])

	unit := <-units
	require.Equal(t, bcmedia.KindIFrame, unit.Kind)
	require.Len(t, unit.Payload, 100)

	unit = <-units
	require.Equal(t, bcmedia.KindPFrame, unit.Kind)
	require.Len(t, unit.Payload, 200)

	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	msg := fake.recv()
	require.Equal(t, MsgIDVideoStop, msg.MsgID)
}

func TestStreamToSinkError(t *testing.T) {
	camera, fake := newTestCamera(t)

	errStop := errors.New("stop")
	sink := bcmedia.SinkFunc(func(unit *bcmedia.Unit) error {
		return errStop
	})

	errs := make(chan error, 1)
	go func() { errs <- camera.StreamTo(context.Background(), StreamMain, sink) }()

	req := fake.recv()
	fake.sendVideo(req, iframe([]byte{1, 2, 3}))

	require.ErrorIs(t, <-errs, errStop)
}

func TestCaptureFrame(t *testing.T) {
	camera, fake := newTestCamera(t)

	type result struct {
		unit *bcmedia.Unit
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		unit, err := camera.CaptureFrame(StreamMain)
		ch <- result{unit, err}
	}()

	req := fake.recv()
	fake.sendVideo(req, pframe([]byte{1}), iframe([]byte{2, 2}))

	res := <-ch
	require.Nil(t, res.err)
	require.Equal(t, bcmedia.KindIFrame, res.unit.Kind)
	require.Equal(t, []byte{2, 2}, res.unit.Payload)
}

func TestVideoRefused(t *testing.T) {
	camera, fake := newTestCamera(t)

	errs := make(chan error, 1)
	go func() {
		_, err := camera.CaptureFrame(StreamMain)
		errs <- err
	}()

	req := fake.recv()
	fake.reply(req, ResponseCodeBadRequest, nil)

	require.ErrorIs(t, <-errs, ErrUnexpectedReply)
}
