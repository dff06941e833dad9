package bcmedia

import (
	"encoding/binary"
	"errors"
)

var imaIndexTable = [16]int8{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// DecodeADPCM - one DVI-4 block to s16le PCM.
//
// Block header: predictor int16, step index uint8, reserved byte. The predictor
// is the first sample, then two samples per byte, low nibble first.
func DecodeADPCM(block []byte) ([]byte, error) {
	if len(block) < 4 {
		return nil, errors.New("bcmedia: short adpcm block")
	}

	predictor := int32(int16(binary.LittleEndian.Uint16(block)))
	index := int32(block[2])
	if index > 88 {
		index = 88
	}

	data := block[4:]
	pcm := make([]byte, 0, 2+len(data)*4)
	pcm = binary.LittleEndian.AppendUint16(pcm, uint16(predictor))

	for _, b := range data {
		for _, nibble := range [2]byte{b & 0x0F, b >> 4} {
			predictor, index = imaDecode(nibble, predictor, index)
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(predictor)))
		}
	}

	return pcm, nil
}

func imaDecode(nibble byte, predictor, index int32) (int32, int32) {
	step := imaStepTable[index]

	diff := step >> 3
	if nibble&1 != 0 {
		diff += step >> 2
	}
	if nibble&2 != 0 {
		diff += step >> 1
	}
	if nibble&4 != 0 {
		diff += step
	}
	if nibble&8 != 0 {
		predictor -= diff
	} else {
		predictor += diff
	}

	if predictor > 32767 {
		predictor = 32767
	} else if predictor < -32768 {
		predictor = -32768
	}

	index += int32(imaIndexTable[nibble])
	if index < 0 {
		index = 0
	} else if index > 88 {
		index = 88
	}

	return predictor, index
}
