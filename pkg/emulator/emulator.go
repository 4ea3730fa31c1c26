package emulator

import "errors"

// ErrNoFramebuffer is returned by Framebuffer when the core has not
// produced a frame for the current step. It is recoverable: the caller
// skips the frame and carries on.
var ErrNoFramebuffer = errors.New("no framebuffer")

type PixelFormat uint8

const (
	// Fmt1555 is a declared but not decodable format, see image.Canvas.
	Fmt1555 PixelFormat = iota
	Fmt8888
	Fmt565
)

// BPP returns the pixel size of the format in bytes.
func (f PixelFormat) BPP() int {
	if f == Fmt8888 {
		return 4
	}
	return 2
}

func (f PixelFormat) String() string {
	switch f {
	case Fmt1555:
		return "ARGB1555"
	case Fmt8888:
		return "ARGB8888"
	case Fmt565:
		return "RGB565"
	}
	return "?"
}

// RawFrame is the core's native framebuffer.
// Data is borrowed read-only memory which stays valid only until the
// next Step call overwrites it, so it must be consumed in place.
// Stride is the byte length of one row and may exceed W * BPP.
type RawFrame struct {
	Data   []byte
	Stride int
	W, H   int
	Fmt    PixelFormat
}

// Core is the emulation core contract.
// One Step produces at most one frame and a batch of audio samples.
type Core interface {
	// Step runs the core for one video frame with the input state.
	Step(input *InputState) error
	// Framebuffer returns the native frame of the last step,
	// or ErrNoFramebuffer.
	Framebuffer() (RawFrame, error)
	// ReadAudio drains the stereo 16-bit samples produced since the
	// previous call.
	ReadAudio() []int16
	SampleRate() float64
	FPS() int
	SaveState() ([]byte, error)
	LoadState(data []byte) error
	Close()
}
