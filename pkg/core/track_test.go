package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSender(t *testing.T) {
	recv := make(chan *Packet) // blocking consumer

	sender := NewSender(nil, &Codec{Name: CodecPCML})
	sender.Handler = func(packet *Packet) {
		recv <- packet
	}
	require.Equal(t, "new", sender.State())

	sender.Start()
	require.Equal(t, "connected", sender.State())

	sender.Input(&Packet{Payload: []byte{1}})
	sender.Input(&Packet{Payload: []byte{2}})

	packets, drops := sender.Stats()
	require.Equal(t, 2, packets)
	require.Equal(t, 0, drops)

	packet := <-recv
	require.Equal(t, []byte{1}, packet.Payload)

	sender.Close()
	require.Equal(t, "closed", sender.State())

	// input after close is dropped
	sender.Input(&Packet{})
	packets, drops = sender.Stats()
	require.Equal(t, 2, packets)
	require.Equal(t, 1, drops)

	// buffered packet still delivered
	packet = <-recv
	require.Equal(t, []byte{2}, packet.Payload)

	sender.Wait()
}

func TestReceiverFanOut(t *testing.T) {
	codec := &Codec{Name: CodecH264, ClockRate: 90000, PayloadType: PayloadTypeRAW}
	receiver := NewReceiver(&Media{Kind: KindVideo, Direction: DirectionRecvonly}, codec)

	var senders []*Sender
	results := make(chan byte, 10)

	for i := 0; i < 3; i++ {
		sender := NewSender(nil, codec)
		sender.Handler = func(packet *Packet) {
			results <- packet.Payload[0]
		}
		sender.HandleRTP(receiver)
		senders = append(senders, sender)
	}
	require.Equal(t, 3, receiver.Senders())

	receiver.WriteRTP(&Packet{Payload: []byte{7}})
	for i := 0; i < 3; i++ {
		require.Equal(t, byte(7), <-results)
	}

	senders[0].Close()
	require.Equal(t, 2, receiver.Senders())

	// closing receiver closes orphan senders
	receiver.Close()
	require.Equal(t, 0, receiver.Senders())
	require.Equal(t, "closed", senders[1].State())
	require.Equal(t, "closed", senders[2].State())
}

func TestCodecMatch(t *testing.T) {
	codec := &Codec{Name: CodecAAC, ClockRate: 16000, Channels: 1}

	require.True(t, codec.Match(&Codec{Name: CodecAny}))
	require.True(t, codec.Match(&Codec{Name: CodecAAC}))
	require.False(t, codec.Match(&Codec{Name: CodecAAC, ClockRate: 8000}))
	require.False(t, codec.Match(&Codec{Name: CodecPCML}))

	medias := ParseQuery(map[string][]string{"video": {"h264,h265"}, "audio": {"aac"}})
	require.Len(t, medias, 2)
	require.Equal(t, KindVideo, medias[0].Kind)
	require.Len(t, medias[0].Codecs, 2)
	require.NotNil(t, medias[1].MatchCodec(codec))
}

func TestDecodeH264(t *testing.T) {
	fmtp := "packetization-mode=1;sprop-parameter-sets=Z2QAKawrQCgC3QgAAAMACAAAAwGQeMGVAA==,aO48sA==;profile-level-id=640029"
	require.Equal(t, "High 4.1", DecodeH264(fmtp))

	codec := &Codec{Name: CodecH264, ClockRate: 90000, FmtpLine: fmtp}
	require.Equal(t, "H.264 High 4.1", codec.Text())
}

func TestWriteBuffer(t *testing.T) {
	wb := NewWriteBuffer(nil)

	// written before the real writer is attached
	_, err := wb.Write([]byte("abc"))
	require.Nil(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = wb.Write([]byte("def"))
		_ = wb.Close()
	}()

	var buf bytes.Buffer
	n, err := wb.WriteTo(&buf)
	require.Nil(t, err)
	require.Equal(t, int64(6), n)
	require.Equal(t, "abcdef", buf.String())
}

func TestWorker(t *testing.T) {
	calls := make(chan struct{}, 10)

	var n int
	w := NewWorker(time.Millisecond, func() time.Duration {
		calls <- struct{}{}
		if n++; n < 3 {
			return time.Millisecond
		}
		return 0
	})
	defer w.Stop()

	for i := 0; i < 3; i++ {
		<-calls
	}
}
