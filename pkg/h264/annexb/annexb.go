// Package annexb - universal for H264 and H265
package annexb

import (
	"bytes"
	"encoding/binary"

	"github.com/deepch/vdk/codec/h264parser"
)

const StartCode = "\x00\x00\x00\x01"

// EncodeToAVCC - Annex-B access unit to AVCC (4 bytes big endian size before each NALU).
// Camera sends 3 and 4 bytes start codes, so the result is a new slice.
func EncodeToAVCC(b []byte) []byte {
	nalus, _ := h264parser.SplitNALUs(b)

	size := 0
	for _, nalu := range nalus {
		size += 4 + len(nalu)
	}

	avcc := make([]byte, 0, size)
	for _, nalu := range nalus {
		avcc = binary.BigEndian.AppendUint32(avcc, uint32(len(nalu)))
		avcc = append(avcc, nalu...)
	}
	return avcc
}

// DecodeAVCC - AVCC to Annex-B, same size, sizes replaced by start codes
func DecodeAVCC(b []byte, safeClone bool) []byte {
	if safeClone {
		b = bytes.Clone(b)
	}
	for i := 0; i+4 <= len(b); {
		size := int(binary.BigEndian.Uint32(b[i:]))
		copy(b[i:], StartCode)
		i += 4 + size
	}
	return b
}

// Split - AVCC to separate NALUs without size
func Split(avcc []byte) (nalus [][]byte) {
	for len(avcc) > 4 {
		size := 4 + int(binary.BigEndian.Uint32(avcc))
		if size > len(avcc) {
			break
		}
		if size > 4 {
			nalus = append(nalus, avcc[4:size])
		}
		avcc = avcc[size:]
	}
	return
}
