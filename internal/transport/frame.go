package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Stream tethers (tcp, serial) carry messages as: magic 0x94 0xC3, uint16
// big-endian payload length, payload. Readers skip noise until the magic.
var frameMagic = [2]byte{0x94, 0xC3}

const (
	frameHeaderLen  = 4
	maxFramePayload = math.MaxUint16
)

// fillFunc reads exactly len(buf) bytes or fails.
type fillFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty frame payload")
	}
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("frame payload too large: %d > %d", len(payload), maxFramePayload)
	}

	frame := make([]byte, frameHeaderLen, frameHeaderLen+len(payload))
	frame[0], frame[1] = frameMagic[0], frameMagic[1]
	// #nosec G115 -- bounded by maxFramePayload above.
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))

	return append(frame, payload...), nil
}

// decodeFrame returns the next non-empty payload. Zero-length frames carry
// nothing and are skipped like noise.
func decodeFrame(fill fillFunc) ([]byte, error) {
	var n int
	for n == 0 {
		if err := seekMagic(fill); err != nil {
			return nil, err
		}

		var size [2]byte
		if err := fill(size[:]); err != nil {
			return nil, fmt.Errorf("read frame length: %w", err)
		}
		n = int(binary.BigEndian.Uint16(size[:]))
	}

	payload := make([]byte, n)
	if err := fill(payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	return payload, nil
}

func seekMagic(fill fillFunc) error {
	var b [1]byte
	matched := 0
	for matched < len(frameMagic) {
		if err := fill(b[:]); err != nil {
			return fmt.Errorf("read frame magic: %w", err)
		}
		switch {
		case b[0] == frameMagic[matched]:
			matched++
		case b[0] == frameMagic[0]:
			matched = 1
		default:
			matched = 0
		}
	}

	return nil
}

func readerFill(r io.Reader) fillFunc {
	return func(buf []byte) error {
		_, err := io.ReadFull(r, buf)
		return err
	}
}
