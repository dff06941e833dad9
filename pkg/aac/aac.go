package aac

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/deepch/vdk/codec/aacparser"
	"github.com/entropin/neolink/pkg/core"
)

// AUTime - samples in one AAC frame
const AUTime = 1024

// FMTP - RFC 3640 params before the config hex
const FMTP = "streamtype=5;profile-level-id=1;mode=AAC-hbr;sizelength=13;indexlength=3;indexdeltalength=3;config="

func IsADTS(b []byte) bool {
	return len(b) > 7 && b[0] == 0xFF && b[1]&0xF6 == 0xF0
}

// ADTSToCodec - codec with MPEG4 audio config from the first ADTS header
func ADTSToCodec(b []byte) (*core.Codec, error) {
	if !IsADTS(b) {
		return nil, errors.New("aac: not ADTS")
	}

	config, _, _, _, err := aacparser.ParseADTSHeader(b)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(nil)
	if err = aacparser.WriteMPEG4AudioConfig(buf, config); err != nil {
		return nil, err
	}

	return &core.Codec{
		Name:        core.CodecAAC,
		ClockRate:   uint32(config.SampleRate),
		Channels:    uint16(config.ChannelLayout.Count()),
		FmtpLine:    FMTP + hex.EncodeToString(buf.Bytes()),
		PayloadType: core.PayloadTypeRAW,
	}, nil
}

// SplitADTS - raw AAC frames without ADTS headers, one unit can hold many frames
func SplitADTS(b []byte) (frames [][]byte, err error) {
	for len(b) > 0 {
		if !IsADTS(b) {
			return frames, errors.New("aac: not ADTS")
		}
		_, hdrlen, framelen, _, err := aacparser.ParseADTSHeader(b)
		if err != nil {
			return frames, err
		}
		if framelen > len(b) || framelen <= hdrlen {
			return frames, errors.New("aac: wrong ADTS frame size")
		}
		frames = append(frames, b[hdrlen:framelen])
		b = b[framelen:]
	}
	return
}
