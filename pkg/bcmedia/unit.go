package bcmedia

import "errors"

var ErrMalformedStream = errors.New("bcmedia: malformed stream")

type Kind byte

const (
	KindInfoV1 Kind = iota + 1
	KindInfoV2
	KindIFrame
	KindPFrame
	KindAAC
	KindADPCM
)

func (k Kind) String() string {
	switch k {
	case KindInfoV1:
		return "info_v1"
	case KindInfoV2:
		return "info_v2"
	case KindIFrame:
		return "iframe"
	case KindPFrame:
		return "pframe"
	case KindAAC:
		return "aac"
	case KindADPCM:
		return "adpcm"
	}
	return "unknown"
}

const (
	CodecH264 = "H264"
	CodecH265 = "H265"
	CodecAAC  = "AAC"
	CodecPCM  = "PCM" // s16le mono, decoded from camera ADPCM

	PCMSampleRate = 8000
)

// Unit - one self-contained media element from the camera stream
type Unit struct {
	Kind  Kind
	Codec string

	// Payload - Annex-B video, ADTS AAC or PCM samples
	Payload []byte

	// Microseconds - camera clock for video units
	Microseconds uint32
	// Time - POSIX seconds, only some I-frames have it
	Time uint32

	// stream info, only for info units
	Width  uint32
	Height uint32
	FPS    uint8
}

func (u *Unit) IsVideo() bool {
	return u.Kind == KindIFrame || u.Kind == KindPFrame
}

func (u *Unit) IsAudio() bool {
	return u.Kind == KindAAC || u.Kind == KindADPCM
}

// Sink receives units in stream order. Returning an error stops the stream.
type Sink interface {
	Accept(unit *Unit) error
}

// SinkFunc - function adapter for Sink
type SinkFunc func(unit *Unit) error

func (f SinkFunc) Accept(unit *Unit) error {
	return f(unit)
}
