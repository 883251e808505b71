package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// FrameKind tags the binary frame. One kind exists today; the tag keeps the
// layout extensible without a version bump.
type FrameKind byte

// FrameBulk carries a bulk payload referenced by a structured response.
const FrameBulk FrameKind = 0x01

// Payload kinds carried in bulk frames.
const (
	PayloadTree           = "tree"
	PayloadTreeCompressed = "tree+zstd"
	PayloadScreenshot     = "screenshot"
)

// MaxFramePayload bounds a single frame. Screen captures stay well under this.
const MaxFramePayload = 32 << 20

var (
	ErrFrameTruncated = errors.New("frame: truncated")
	ErrFrameTooLarge  = errors.New("frame: payload exceeds limit")
)

// Frame is one bulk payload, correlated to the structured response that
// references it. Layout on the wire:
//
//	[kind:1][corr-len:2 BE][corr][payload-kind-len:1][payload-kind][payload-len:4 BE][payload]
type Frame struct {
	Kind          FrameKind
	CorrelationID string
	PayloadKind   string
	Payload       []byte
}

// Encode writes the wire layout.
func (f Frame) Encode() ([]byte, error) {
	if len(f.CorrelationID) > 0xFFFF {
		return nil, fmt.Errorf("frame: correlation id too long (%d bytes)", len(f.CorrelationID))
	}
	if len(f.PayloadKind) > 0xFF {
		return nil, fmt.Errorf("frame: payload kind too long (%d bytes)", len(f.PayloadKind))
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, 0, 1+2+len(f.CorrelationID)+1+len(f.PayloadKind)+4+len(f.Payload))
	buf = append(buf, byte(f.Kind))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.CorrelationID)))
	buf = append(buf, f.CorrelationID...)
	buf = append(buf, byte(len(f.PayloadKind)))
	buf = append(buf, f.PayloadKind...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Payload)))
	buf = append(buf, f.Payload...)
	return buf, nil
}

// DecodeFrame parses one wire frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if len(raw) < 1+2 {
		return f, ErrFrameTruncated
	}
	f.Kind = FrameKind(raw[0])
	pos := 1

	corrLen := int(binary.BigEndian.Uint16(raw[pos:]))
	pos += 2
	if len(raw) < pos+corrLen+1 {
		return f, ErrFrameTruncated
	}
	f.CorrelationID = string(raw[pos : pos+corrLen])
	pos += corrLen

	kindLen := int(raw[pos])
	pos++
	if len(raw) < pos+kindLen+4 {
		return f, ErrFrameTruncated
	}
	f.PayloadKind = string(raw[pos : pos+kindLen])
	pos += kindLen

	payloadLen := int(binary.BigEndian.Uint32(raw[pos:]))
	pos += 4
	if payloadLen > MaxFramePayload {
		return f, ErrFrameTooLarge
	}
	if len(raw) != pos+payloadLen {
		return f, ErrFrameTruncated
	}
	f.Payload = raw[pos:]
	return f, nil
}

// Shared zstd coders; both are concurrency-safe.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Compress squeezes a serialized tree for the wire. Screenshots are already
// PNG-compressed and skip this.
func Compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/3))
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}

// TreeFrame builds a compressed tree frame for the given request.
func TreeFrame(correlationID string, serialized []byte) Frame {
	return Frame{
		Kind:          FrameBulk,
		CorrelationID: correlationID,
		PayloadKind:   PayloadTreeCompressed,
		Payload:       Compress(serialized),
	}
}

// ScreenshotFrame builds an image frame for the given request.
func ScreenshotFrame(correlationID string, encoded []byte) Frame {
	return Frame{
		Kind:          FrameBulk,
		CorrelationID: correlationID,
		PayloadKind:   PayloadScreenshot,
		Payload:       encoded,
	}
}
