// Package testcore is a self-contained emulation core producing a
// moving RGB565 gradient and a stereo sine tone. It backs the pipeline
// self-check binary and the session tests, no real core required.
package testcore

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cloudretro/retrohost/pkg/emulator"
)

const (
	sampleRate = 32000.0
	fps        = 60
	toneHz     = 440.0
)

type Core struct {
	w, h  int
	fb    []byte
	tick  uint32
	phase float64
	pcm   []int16
}

func New(w, h int) *Core {
	return &Core{w: w, h: h, fb: make([]byte, w*h*2)}
}

func (c *Core) Step(_ *emulator.InputState) error {
	c.tick++

	// scrolling gradient, one 565 pixel per (x+y+tick)
	for y := 0; y < c.h; y++ {
		row := y * c.w * 2
		for x := 0; x < c.w; x++ {
			v := uint32(x+y) + uint32(c.tick)
			px := uint16((v&0x1f)<<11 | (v&0x3f)<<5 | v&0x1f)
			binary.LittleEndian.PutUint16(c.fb[row+x*2:], px)
		}
	}

	// one video frame worth of tone
	frames := int(sampleRate) / fps
	step := 2 * math.Pi * toneHz / sampleRate
	for i := 0; i < frames; i++ {
		s := int16(math.Sin(c.phase) * 0.25 * math.MaxInt16)
		c.pcm = append(c.pcm, s, s)
		c.phase += step
		if c.phase > 2*math.Pi {
			c.phase -= 2 * math.Pi
		}
	}
	return nil
}

func (c *Core) Framebuffer() (emulator.RawFrame, error) {
	if c.tick == 0 {
		return emulator.RawFrame{}, emulator.ErrNoFramebuffer
	}
	return emulator.RawFrame{
		Data:   c.fb,
		Stride: c.w * 2,
		W:      c.w,
		H:      c.h,
		Fmt:    emulator.Fmt565,
	}, nil
}

func (c *Core) ReadAudio() []int16 {
	out := c.pcm
	c.pcm = nil
	return out
}

func (c *Core) SampleRate() float64 { return sampleRate }
func (c *Core) FPS() int            { return fps }

func (c *Core) SaveState() ([]byte, error) {
	state := make([]byte, 12)
	binary.LittleEndian.PutUint32(state, c.tick)
	binary.LittleEndian.PutUint64(state[4:], math.Float64bits(c.phase))
	return state, nil
}

func (c *Core) LoadState(data []byte) error {
	if len(data) < 12 {
		return errors.New("truncated state")
	}
	c.tick = binary.LittleEndian.Uint32(data)
	c.phase = math.Float64frombits(binary.LittleEndian.Uint64(data[4:]))
	return nil
}

func (c *Core) Close() { c.pcm = nil }
