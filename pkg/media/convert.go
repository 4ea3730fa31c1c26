package media

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleFormat is the sample encoding negotiated with the host device.
type SampleFormat uint8

const (
	FormatS16 SampleFormat = iota // 16-bit signed little-endian
	FormatU16                     // 16-bit unsigned little-endian
	FormatF32                     // 32-bit float little-endian
)

// ParseFormat maps a config name to a sample format.
func ParseFormat(name string) (SampleFormat, error) {
	switch name {
	case "s16", "":
		return FormatS16, nil
	case "u16":
		return FormatU16, nil
	case "f32":
		return FormatF32, nil
	}
	return 0, fmt.Errorf("unknown sample format: %v", name)
}

// Bytes returns the size of one sample in bytes.
func (f SampleFormat) Bytes() int {
	if f == FormatF32 {
		return 4
	}
	return 2
}

func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatU16:
		return "u16"
	case FormatF32:
		return "f32"
	}
	return "?"
}

// Encode writes src samples into dst using the f encoding and returns
// the number of bytes written. dst must fit len(src) * f.Bytes() bytes.
func Encode(f SampleFormat, src Samples, dst []byte) int {
	switch f {
	case FormatU16:
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[i<<1:], uint16(int32(s)+0x8000))
		}
		return len(src) << 1
	case FormatF32:
		for i, s := range src {
			binary.LittleEndian.PutUint32(dst[i<<2:], math.Float32bits(float32(s)/0x8000))
		}
		return len(src) << 2
	default:
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[i<<1:], uint16(s))
		}
		return len(src) << 1
	}
}
