package bc

import (
	"context"
	"sync"

	"github.com/entropin/neolink/pkg/aac"
	"github.com/entropin/neolink/pkg/bcmedia"
	"github.com/entropin/neolink/pkg/core"
	"github.com/entropin/neolink/pkg/h264"
	"github.com/entropin/neolink/pkg/h264/annexb"
	"github.com/entropin/neolink/pkg/h265"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Producer - camera stream as core tracks. Implements bcmedia.Sink,
// so it can be fed by Camera.StreamTo. It outlives camera reconnects.
type Producer struct {
	core.Connection

	log zerolog.Logger

	mu    sync.Mutex
	video *core.Receiver
	audio *core.Receiver
	ready chan struct{} // closed on first video track

	width, height int
	fps           uint8

	videoSeq  uint16
	audioSeq  uint16
	audioTime uint32

	consumers []*core.Connection
}

func NewProducer(source string, log zerolog.Logger) *Producer {
	return &Producer{
		Connection: core.Connection{
			ID:         core.NewID(),
			FormatName: "bc",
			Protocol:   "tcp",
			Source:     source,
		},
		log:   log,
		ready: make(chan struct{}),
	}
}

func (p *Producer) Accept(unit *bcmedia.Unit) error {
	switch unit.Kind {
	case bcmedia.KindInfoV1, bcmedia.KindInfoV2:
		p.mu.Lock()
		p.width, p.height, p.fps = int(unit.Width), int(unit.Height), unit.FPS
		p.mu.Unlock()
	case bcmedia.KindIFrame, bcmedia.KindPFrame:
		p.writeVideo(unit)
	case bcmedia.KindAAC:
		p.writeAAC(unit)
	case bcmedia.KindADPCM:
		p.writePCM(unit)
	}
	return nil
}

func (p *Producer) writeVideo(unit *bcmedia.Unit) {
	avcc := annexb.EncodeToAVCC(unit.Payload)
	if len(avcc) == 0 {
		return
	}

	p.mu.Lock()
	video := p.video
	if video == nil {
		// wait keyframe with parameter sets
		if unit.Kind != bcmedia.KindIFrame {
			p.mu.Unlock()
			return
		}

		var codec *core.Codec
		var width, height int
		switch unit.Codec {
		case bcmedia.CodecH264:
			codec = h264.NewCodec(avcc)
			width, height = h264.Resolution(avcc)
		case bcmedia.CodecH265:
			codec = h265.NewCodec(avcc)
			width, height = h265.Resolution(avcc)
		default:
			p.mu.Unlock()
			p.log.Warn().Msgf("[bc] unsupported video codec: %q", unit.Codec)
			return
		}

		if width > 0 && height > 0 {
			p.width, p.height = width, height
		}

		video = p.addTrack(core.KindVideo, codec)
		p.video = video
		close(p.ready)

		p.log.Debug().Msgf("[bc] video %s %dx%d", codec.Text(), p.width, p.height)
	}
	p.videoSeq++
	seq := p.videoSeq
	p.mu.Unlock()

	video.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Marker:         true,
			SequenceNumber: seq,
			// camera clock in microseconds to 90 kHz
			Timestamp: uint32(uint64(unit.Microseconds) * 90 / 1000),
		},
		Payload: avcc,
	})
}

func (p *Producer) writeAAC(unit *bcmedia.Unit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.audio == nil {
		codec, err := aac.ADTSToCodec(unit.Payload)
		if err != nil {
			p.log.Trace().Err(err).Msg("[bc] aac")
			return
		}
		p.audio = p.addTrack(core.KindAudio, codec)
	} else if p.audio.Codec.Name != core.CodecAAC {
		return
	}

	frames, err := aac.SplitADTS(unit.Payload)
	if err != nil {
		p.log.Trace().Err(err).Msg("[bc] aac")
	}

	for _, frame := range frames {
		p.writeAudio(frame)
		p.audioTime += aac.AUTime
	}
}

func (p *Producer) writePCM(unit *bcmedia.Unit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.audio == nil {
		p.audio = p.addTrack(core.KindAudio, &core.Codec{
			Name:        core.CodecPCML,
			ClockRate:   bcmedia.PCMSampleRate,
			Channels:    1,
			PayloadType: core.PayloadTypeRAW,
		})
	} else if p.audio.Codec.Name != core.CodecPCML {
		return
	}

	p.writeAudio(unit.Payload)
	p.audioTime += uint32(len(unit.Payload) / 2)
}

// writeAudio - under lock
func (p *Producer) writeAudio(payload []byte) {
	p.audioSeq++
	p.audio.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Marker:         true,
			SequenceNumber: p.audioSeq,
			Timestamp:      p.audioTime,
		},
		Payload: payload,
	})
}

// addTrack - under lock
func (p *Producer) addTrack(kind string, codec *core.Codec) *core.Receiver {
	media := &core.Media{
		Kind:      kind,
		Direction: core.DirectionRecvonly,
		Codecs:    []*core.Codec{codec},
	}
	p.Medias = append(p.Medias, media)

	receiver, _ := p.GetTrack(media, codec)
	return receiver
}

// Video - wait for the first keyframe
func (p *Producer) Video(ctx context.Context) (*core.Receiver, error) {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.video, nil
}

// Audio - nil if camera has no audio or it wasn't seen yet
func (p *Producer) Audio() *core.Receiver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio
}

// Resolution - from stream info or SPS, zero if unknown
func (p *Producer) Resolution() (width, height int, fps uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height, p.fps
}

// MediasInfo - copy of known medias, safe for the API
func (p *Producer) MediasInfo() []*core.Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*core.Media(nil), p.Medias...)
}

// AddConsumer - register consumer, its Senders must be bound to tracks already
func (p *Producer) AddConsumer(cons *core.Connection) {
	p.mu.Lock()
	p.consumers = append(p.consumers, cons)
	p.mu.Unlock()
}

func (p *Producer) RemoveConsumer(cons *core.Connection) {
	p.mu.Lock()
	for i, c := range p.consumers {
		if c == cons {
			p.consumers = append(p.consumers[:i], p.consumers[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	_ = cons.Stop()
}

func (p *Producer) Consumers() []*core.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*core.Connection(nil), p.consumers...)
}

func (p *Producer) Stop() error {
	p.mu.Lock()
	consumers := p.consumers
	p.consumers = nil
	p.mu.Unlock()

	for _, cons := range consumers {
		_ = cons.Stop()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Connection.Stop()
}
