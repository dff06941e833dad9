package h265

import (
	"encoding/base64"

	"github.com/deepch/vdk/codec/h265parser"
	"github.com/entropin/neolink/pkg/core"
	"github.com/entropin/neolink/pkg/h264/annexb"
)

const (
	NALUTypePFrame  = 1
	NALUTypeIFrame  = 19
	NALUTypeIFrame2 = 20
	NALUTypeIFrame3 = 21
	NALUTypeVPS     = 32
	NALUTypeSPS     = 33
	NALUTypePPS     = 34
)

func NALUType(nalu []byte) byte {
	return (nalu[0] >> 1) & 0x3F
}

func IsKeyframe(avcc []byte) bool {
	for _, nalu := range annexb.Split(avcc) {
		switch NALUType(nalu) {
		case NALUTypePFrame:
			return false
		case NALUTypeIFrame, NALUTypeIFrame2, NALUTypeIFrame3:
			return true
		}
	}
	return false
}

func GetParameterSet(avcc []byte) (vps, sps, pps []byte) {
	for _, nalu := range annexb.Split(avcc) {
		switch NALUType(nalu) {
		case NALUTypeVPS:
			vps = nalu
		case NALUTypeSPS:
			sps = nalu
		case NALUTypePPS:
			pps = nalu
		}
	}
	return
}

func GetFmtpLine(avcc []byte) string {
	vps, sps, pps := GetParameterSet(avcc)
	if vps == nil || sps == nil || pps == nil {
		return ""
	}

	return "sprop-vps=" + base64.StdEncoding.EncodeToString(vps) +
		";sprop-sps=" + base64.StdEncoding.EncodeToString(sps) +
		";sprop-pps=" + base64.StdEncoding.EncodeToString(pps)
}

func NewCodec(avcc []byte) *core.Codec {
	return &core.Codec{
		Name:        core.CodecH265,
		ClockRate:   90000,
		FmtpLine:    GetFmtpLine(avcc),
		PayloadType: core.PayloadTypeRAW,
	}
}

func Resolution(avcc []byte) (width, height int) {
	vps, sps, pps := GetParameterSet(avcc)
	if vps == nil || sps == nil || pps == nil {
		return
	}
	codec, err := h265parser.NewCodecDataFromVPSAndSPSAndPPS(vps, sps, pps)
	if err != nil {
		return
	}
	return codec.Width(), codec.Height()
}
