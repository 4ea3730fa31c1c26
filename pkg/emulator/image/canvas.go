package image

import (
	"errors"
	"fmt"
	"image"

	"github.com/cloudretro/retrohost/pkg/emulator"
	"github.com/cloudretro/retrohost/pkg/logger"
	"golang.org/x/image/draw"
)

// ErrUnsupportedPixelFormat is returned for frame formats the decoder
// has no unpacking scheme for (ARGB1555 included, a known gap).
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

const (
	ScaleNot              = iota // skips image interpolation
	ScaleNearestNeighbour        // nearest neighbour interpolation
	ScaleBilinear                // bilinear interpolation
)

// readTail is how many trailing source bytes one pixel read may touch.
// Reads that would land within this margin of the end of the frame are
// skipped instead of failing, which tolerates truncated frames.
const readTail = 2

// Canvas converts native core frames into an RGBA image reused between
// frames. Not safe for concurrent use; the emulation thread owns it.
type Canvas struct {
	frame  *image.RGBA
	w, h   int
	pad    int // stride minus packed row size, tracked for diagnostics
	scaled *image.RGBA
	vw, vh int
	scaler int
	log    *logger.Logger
}

func NewCanvas(log *logger.Logger) *Canvas {
	return &Canvas{frame: image.NewRGBA(image.Rectangle{}), log: log}
}

// SetViewport rescales every decoded frame to the w x h size.
func (c *Canvas) SetViewport(w, h int, scaler int) {
	c.vw, c.vh = w, h
	c.scaler = scaler
	c.scaled = nil
}

// Draw decodes one native frame into the canvas image.
// The returned image is valid until the next Draw call.
func (c *Canvas) Draw(f emulator.RawFrame) (*image.RGBA, error) {
	switch f.Fmt {
	case emulator.Fmt565, emulator.Fmt8888:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPixelFormat, f.Fmt)
	}

	if f.W != c.w || f.H != c.h {
		c.resize(f)
	}

	bpp := f.Fmt.BPP()
	pix, stride := c.frame.Pix, c.frame.Stride
	for y := 0; y < f.H; y++ {
		row := y * f.Stride
		out := y * stride
		for x := 0; x < f.W; x++ {
			src := row + x*bpp
			if src+readTail >= len(f.Data) {
				continue
			}
			dst := out + x<<2
			switch f.Fmt {
			case emulator.Fmt565:
				px := uint32(f.Data[src]) | uint32(f.Data[src+1])<<8
				pix[dst] = uint8((px >> 8) & 0xf8)
				pix[dst+1] = uint8((px >> 3) & 0xfc)
				pix[dst+2] = uint8((px << 3) & 0xfc)
			case emulator.Fmt8888:
				pix[dst] = f.Data[src+2]
				pix[dst+1] = f.Data[src+1]
				pix[dst+2] = f.Data[src]
			}
			pix[dst+3] = 0xff
		}
	}

	if c.vw > 0 && c.vh > 0 && (c.vw != f.W || c.vh != f.H) {
		if c.scaled == nil {
			c.scaled = image.NewRGBA(image.Rect(0, 0, c.vw, c.vh))
		}
		Resize(c.scaler, c.frame, c.scaled)
		return c.scaled, nil
	}

	return c.frame, nil
}

// Pad returns the row padding of the last decoded frame in bytes.
func (c *Canvas) Pad() int { return c.pad }

// resize reallocates the canvas image filled with opaque black.
func (c *Canvas) resize(f emulator.RawFrame) {
	c.w, c.h = f.W, f.H
	c.frame = image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for i := 3; i < len(c.frame.Pix); i += 4 {
		c.frame.Pix[i] = 0xff
	}
	c.pad = f.Stride - f.W*f.Fmt.BPP()
	if c.pad < 0 {
		c.pad = 0
	}
	c.log.Debug().Msgf("Display mode changed: %v %vx%v (pitch %v, pad %v)",
		f.Fmt, f.W, f.H, f.Stride, c.pad)
}

func Resize(scaleType int, src *image.RGBA, out *image.RGBA) {
	switch scaleType {
	case ScaleBilinear:
		draw.ApproxBiLinear.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	case ScaleNot:
		fallthrough
	case ScaleNearestNeighbour:
		fallthrough
	default:
		draw.NearestNeighbor.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
}

// ParseScaler maps a config name to a scale type.
func ParseScaler(name string) int {
	if name == "bilinear" {
		return ScaleBilinear
	}
	return ScaleNearestNeighbour
}
