package core

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

type Codec struct {
	Name        string // H264, H265, MPEG4-GENERIC, PCML
	ClockRate   uint32 // 90000, 8000, 16000...
	Channels    uint16 // 0, 1, 2
	FmtpLine    string
	PayloadType uint8
}

func (c *Codec) String() string {
	s := fmt.Sprintf("%d %s", c.PayloadType, c.Name)
	if c.ClockRate != 0 && c.ClockRate != 90000 {
		s = fmt.Sprintf("%s/%d", s, c.ClockRate)
	}
	if c.Channels > 0 {
		s = fmt.Sprintf("%s/%d", s, c.Channels)
	}
	return s
}

// Text - human readable codec info for the API
func (c *Codec) Text() string {
	if c.Name == CodecH264 {
		if profile := DecodeH264(c.FmtpLine); profile != "" {
			return "H.264 " + profile
		}
	}

	s := c.Name
	if c.ClockRate != 0 && c.ClockRate != 90000 {
		s += "/" + strconv.Itoa(int(c.ClockRate))
	}
	if c.Channels > 0 {
		s += "/" + strconv.Itoa(int(c.Channels))
	}
	return s
}

func (c *Codec) IsRTP() bool {
	return c.PayloadType != PayloadTypeRAW
}

// Match - ANY codec, zero clock rate or channels on either side match anything
func (c *Codec) Match(remote *Codec) bool {
	if c.Name == CodecAny || remote.Name == CodecAny {
		return true
	}

	return c.Name == remote.Name &&
		(c.ClockRate == 0 || remote.ClockRate == 0 || c.ClockRate == remote.ClockRate) &&
		(c.Channels == 0 || remote.Channels == 0 || c.Channels == remote.Channels)
}

// DecodeH264 - profile and level from sprop-parameter-sets
func DecodeH264(fmtp string) string {
	ps := Between(fmtp, "sprop-parameter-sets=", ",")
	if ps == "" {
		return ""
	}

	sps, _ := base64.StdEncoding.DecodeString(ps)
	if len(sps) < 4 {
		return ""
	}

	var profile string
	switch sps[1] {
	case 0x42:
		profile = "Baseline"
	case 0x4D:
		profile = "Main"
	case 0x58:
		profile = "Extended"
	case 0x64:
		profile = "High"
	default:
		profile = fmt.Sprintf("0x%02X", sps[1])
	}

	return fmt.Sprintf("%s %d.%d", profile, sps[3]/10, sps[3]%10)
}
