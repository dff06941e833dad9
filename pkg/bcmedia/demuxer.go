package bcmedia

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Magics are ASCII tags read as little endian uint32
const (
	magicInfoV1 = 0x31303031 // "1001"
	magicInfoV2 = 0x32303031 // "1002"

	// "00dc".."90dc", first char is the stream number
	magicIFrameFirst = 0x63643030
	magicIFrameLast  = 0x63643039
	// "01dc".."91dc", same for P-frames
	magicPFrameFirst = 0x63643130
	magicPFrameLast  = 0x63643139

	magicAAC   = 0x62773530 // "05wb"
	magicADPCM = 0x62773130 // "01wb"

	adpcmSubMagic = 0x0100

	infoSize = 32
)

// MaxFrameSize - larger video frame size in a unit header is treated as a broken stream
const MaxFrameSize = 16 << 20

// Demuxer pulls units from the camera byte stream.
// Units can be split over many network messages and one message can hold many units.
type Demuxer struct {
	rd  *bufio.Reader
	buf [32]byte
}

func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{rd: bufio.NewReaderSize(r, 64*1024)}
}

// Next - read exactly one unit. Source errors on the unit boundary are returned as is,
// inside the unit as io.ErrUnexpectedEOF.
func (d *Demuxer) Next() (*Unit, error) {
	if _, err := io.ReadFull(d.rd, d.buf[:4]); err != nil {
		return nil, err
	}

	magic := binary.LittleEndian.Uint32(d.buf[:])

	switch {
	case magic == magicInfoV1:
		return d.readInfo(KindInfoV1)
	case magic == magicInfoV2:
		return d.readInfo(KindInfoV2)
	case magic >= magicIFrameFirst && magic <= magicIFrameLast:
		return d.readVideo(KindIFrame)
	case magic >= magicPFrameFirst && magic <= magicPFrameLast:
		return d.readVideo(KindPFrame)
	case magic == magicAAC:
		return d.readAAC()
	case magic == magicADPCM:
		return d.readADPCM()
	}

	return nil, fmt.Errorf("%w: magic 0x%08x", ErrMalformedStream, magic)
}

// info: header size, width, height, unknown, fps, start and end date, reserved
func (d *Demuxer) readInfo(kind Kind) (*Unit, error) {
	b := d.buf[:infoSize-4]
	if err := d.readFull(b); err != nil {
		return nil, err
	}

	return &Unit{
		Kind:   kind,
		Width:  binary.LittleEndian.Uint32(b[4:]),
		Height: binary.LittleEndian.Uint32(b[8:]),
		FPS:    b[13],
	}, nil
}

// video: codec, payload size, additional header size, microseconds, unknown
func (d *Demuxer) readVideo(kind Kind) (*Unit, error) {
	b := d.buf[:20]
	if err := d.readFull(b); err != nil {
		return nil, err
	}

	unit := &Unit{
		Kind:         kind,
		Codec:        string(b[:4]),
		Microseconds: binary.LittleEndian.Uint32(b[12:]),
	}

	size := binary.LittleEndian.Uint32(b[4:])
	if size == 0 || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s size %d", ErrMalformedStream, kind, size)
	}

	additional := binary.LittleEndian.Uint32(b[8:])
	if additional > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s header size %d", ErrMalformedStream, kind, additional)
	}
	if kind == KindIFrame && additional >= 4 {
		if err := d.readFull(d.buf[:4]); err != nil {
			return nil, err
		}
		unit.Time = binary.LittleEndian.Uint32(d.buf[:])
		additional -= 4
	}
	if err := d.skip(int(additional)); err != nil {
		return nil, err
	}

	var err error
	if unit.Payload, err = d.readPayload(int(size)); err != nil {
		return nil, err
	}
	return unit, nil
}

func (d *Demuxer) readAAC() (*Unit, error) {
	if err := d.readFull(d.buf[:4]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint16(d.buf[:])
	if size == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrMalformedStream, KindAAC)
	}

	payload, err := d.readPayload(int(size))
	if err != nil {
		return nil, err
	}
	return &Unit{Kind: KindAAC, Codec: CodecAAC, Payload: payload}, nil
}

// adpcm: size, size again, sub magic, half block size, then DVI-4 block.
// Size counts the sub magic and half block fields.
func (d *Demuxer) readADPCM() (*Unit, error) {
	b := d.buf[:8]
	if err := d.readFull(b); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint16(b)
	if size < 8 {
		return nil, fmt.Errorf("%w: adpcm size %d", ErrMalformedStream, size)
	}
	if sub := binary.LittleEndian.Uint16(b[4:]); sub != adpcmSubMagic {
		return nil, fmt.Errorf("%w: adpcm sub magic 0x%04x", ErrMalformedStream, sub)
	}

	block := make([]byte, size-4)
	if err := d.readFull(block); err != nil {
		return nil, err
	}
	if err := d.skip(padding(int(size))); err != nil {
		return nil, err
	}

	pcm, err := DecodeADPCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStream, err)
	}
	return &Unit{Kind: KindADPCM, Codec: CodecPCM, Payload: pcm}, nil
}

func (d *Demuxer) readPayload(size int) ([]byte, error) {
	payload := make([]byte, size)
	if err := d.readFull(payload); err != nil {
		return nil, err
	}
	if err := d.skip(padding(size)); err != nil {
		return nil, err
	}
	return payload, nil
}

// readFull - inside the unit any end of data is unexpected
func (d *Demuxer) readFull(b []byte) error {
	if _, err := io.ReadFull(d.rd, b); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (d *Demuxer) skip(n int) error {
	if n == 0 {
		return nil
	}
	if _, err := d.rd.Discard(n); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// payloads are aligned to 8 bytes
func padding(size int) int {
	return (8 - size%8) % 8
}
