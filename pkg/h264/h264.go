package h264

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/deepch/vdk/codec/h264parser"
	"github.com/entropin/neolink/pkg/core"
	"github.com/entropin/neolink/pkg/h264/annexb"
)

const (
	NALUTypePFrame = 1 // Coded slice of a non-IDR picture
	NALUTypeIFrame = 5 // Coded slice of an IDR picture
	NALUTypeSEI    = 6 // Supplemental enhancement information (SEI)
	NALUTypeSPS    = 7 // Sequence parameter set
	NALUTypePPS    = 8 // Picture parameter set
	NALUTypeAUD    = 9 // Access unit delimiter
)

func NALUType(nalu []byte) byte {
	return nalu[0] & 0x1F
}

// IsKeyframe - check if any NALU in AVCC access unit is IDR
func IsKeyframe(avcc []byte) bool {
	for _, nalu := range annexb.Split(avcc) {
		switch NALUType(nalu) {
		case NALUTypePFrame:
			return false
		case NALUTypeIFrame:
			return true
		}
	}
	return false
}

// GetParameterSet - SPS and PPS from AVCC access unit
func GetParameterSet(avcc []byte) (sps, pps []byte) {
	for _, nalu := range annexb.Split(avcc) {
		switch NALUType(nalu) {
		case NALUTypeSPS:
			sps = nalu
		case NALUTypePPS:
			pps = nalu
		}
	}
	return
}

// GetFmtpLine - from SPS and PPS, empty if keyframe has no parameter sets
func GetFmtpLine(avcc []byte) string {
	sps, pps := GetParameterSet(avcc)
	if len(sps) < 4 || pps == nil {
		return ""
	}

	return "packetization-mode=1" +
		";profile-level-id=" + strings.ToUpper(hex.EncodeToString(sps[1:4])) +
		";sprop-parameter-sets=" + base64.StdEncoding.EncodeToString(sps) + "," + base64.StdEncoding.EncodeToString(pps)
}

// NewCodec - codec from the first keyframe with parameter sets
func NewCodec(avcc []byte) *core.Codec {
	return &core.Codec{
		Name:        core.CodecH264,
		ClockRate:   90000,
		FmtpLine:    GetFmtpLine(avcc),
		PayloadType: core.PayloadTypeRAW,
	}
}

// Resolution - picture size from SPS
func Resolution(avcc []byte) (width, height int) {
	sps, pps := GetParameterSet(avcc)
	if sps == nil || pps == nil {
		return
	}
	codec, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps)
	if err != nil {
		return
	}
	return codec.Width(), codec.Height()
}
