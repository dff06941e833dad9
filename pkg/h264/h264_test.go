package h264

import (
	"encoding/hex"
	"testing"

	"github.com/entropin/neolink/pkg/h264/annexb"
	"github.com/stretchr/testify/require"
)

func TestAnnexB(t *testing.T) {
	// SPS, PPS with 4 bytes start code, IDR with 3 bytes
	s := "00000001" + "6764001f" + "00000001" + "68ee3cb0" + "000001" + "65888840"
	src, err := hex.DecodeString(s)
	require.Nil(t, err)

	avcc := annexb.EncodeToAVCC(src)
	require.Equal(t, "00000004"+"6764001f"+"00000004"+"68ee3cb0"+"00000004"+"65888840", hex.EncodeToString(avcc))

	require.True(t, IsKeyframe(avcc))

	sps, pps := GetParameterSet(avcc)
	require.Equal(t, "6764001f", hex.EncodeToString(sps))
	require.Equal(t, "68ee3cb0", hex.EncodeToString(pps))

	fmtp := GetFmtpLine(avcc)
	require.Equal(t, "packetization-mode=1;profile-level-id=64001F;sprop-parameter-sets=Z2QAHw==,aO48sA==", fmtp)

	b := annexb.DecodeAVCC(avcc, true)
	require.Equal(t, "00000001"+"6764001f"+"00000001"+"68ee3cb0"+"00000001"+"65888840", hex.EncodeToString(b))
	// source not changed
	require.Equal(t, byte(4), avcc[3])
}

func TestPFrame(t *testing.T) {
	src, err := hex.DecodeString("00000001419a")
	require.Nil(t, err)

	avcc := annexb.EncodeToAVCC(src)
	require.False(t, IsKeyframe(avcc))
	require.Equal(t, "", GetFmtpLine(avcc))

	codec := NewCodec(avcc)
	require.Equal(t, uint32(90000), codec.ClockRate)
	require.False(t, codec.IsRTP())
}
