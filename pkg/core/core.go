package core

import (
	"strings"
	"sync/atomic"
)

const (
	DirectionRecvonly = "recvonly"
	DirectionSendonly = "sendonly"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
)

const (
	CodecH264 = "H264" // payloadType: 96
	CodecH265 = "H265"

	CodecAAC  = "MPEG4-GENERIC"
	CodecPCML = "PCML" // Linear PCM (little endian)

	CodecAny = "ANY"
)

// PayloadTypeRAW - packet payload is a whole frame, not RTP payload:
// AVCC for video, raw AAC frame, PCM samples
const PayloadTypeRAW byte = 255

var id atomic.Uint32

func NewID() uint32 {
	return id.Add(1)
}

func GetKind(name string) string {
	switch name {
	case CodecH264, CodecH265:
		return KindVideo
	case CodecAAC, CodecPCML:
		return KindAudio
	}
	return ""
}

// Between - value from s between sub1 and sub2
func Between(s, sub1, sub2 string) string {
	i := strings.Index(s, sub1)
	if i < 0 {
		return ""
	}
	s = s[i+len(sub1):]

	if sub2 == "" {
		return s
	}
	if i = strings.Index(s, sub2); i >= 0 {
		return s[:i]
	}
	return s
}

// Assert - panic on programmer error
func Assert(ok bool) {
	if !ok {
		panic("assert")
	}
}
