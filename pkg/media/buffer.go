package media

import (
	"errors"
	"sync"

	"github.com/cloudretro/retrohost/pkg/logger"
)

type Samples []int16

// Buffer carries stereo 16-bit samples from the emulation thread to the
// host audio callback. The producer appends at core rate, the consumer
// drains at device rate; ReadStereo resamples between the two and drops
// stale samples when the buffer runs too far ahead of the callback.
//
// One lock guards the sample slice. Both operations are plain copies
// with no allocation inside the locked region, so the real-time audio
// thread never blocks for long.
type Buffer struct {
	mu      sync.Mutex
	s       Samples
	ratio   float64 // core rate / device rate
	trigger float64
	target  float64
	log     *logger.Logger
}

// NewBuffer creates a sample buffer resampling coreHz to deviceHz.
// The trigger/target pair tunes drift compensation, see config.Audio.
func NewBuffer(coreHz, deviceHz, trigger, target float64, log *logger.Logger) (*Buffer, error) {
	if coreHz <= 0 || deviceHz <= 0 {
		return nil, errors.New("invalid sample rate")
	}
	if trigger <= target || target <= 0 {
		return nil, errors.New("invalid delay compensation params")
	}
	return &Buffer{
		s:       make(Samples, 0, int(coreHz)), // ~1s headroom before regrowth
		ratio:   coreHz / deviceHz,
		trigger: trigger,
		target:  target,
		log:     log,
	}, nil
}

// Ratio returns the fixed resample ratio of the session.
func (b *Buffer) Ratio() float64 { return b.ratio }

// Len returns the current occupancy in samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.s)
}

// Write appends newly produced core samples.
// Odd trailing samples are cut so the buffer always holds whole
// stereo frames.
func (b *Buffer) Write(s Samples) {
	s = s[:len(s)&^1]
	if len(s) == 0 {
		return
	}
	b.mu.Lock()
	b.s = append(b.s, s...)
	b.mu.Unlock()
}

// ReadStereo fills out with interleaved stereo frames resampled from
// the buffered core samples, zero-filling whatever cannot be served
// (underrun plays silence). len(out) must be even.
//
// Output frame i takes source frame floor(i * ratio); every source
// frame up to and including the last one taken is then discarded,
// skipped frames included, which keeps the buffer growth bounded.
func (b *Buffer) ReadStereo(out Samples) {
	frames := len(out) >> 1
	if frames == 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.s) > 0 {
		delay := float64(len(b.s)) / (float64(len(out)) * b.ratio)
		if delay > b.trigger {
			// drop down to the target, not to zero: the left-over
			// tail saves the next callback from starting empty
			skip := int((delay-b.target)*float64(len(out))) &^ 1
			if skip > len(b.s) {
				skip = len(b.s)
			}
			b.drop(skip)
			skippedSamples.Add(float64(skip))
			b.log.Debug().Msgf("Skipped %05d samples, delay factor %.2f", skip, delay)
		}
	}

	avail := len(b.s) >> 1
	n, last := 0, -1
	for ; n < frames; n++ {
		src := int(float64(n) * b.ratio)
		if src >= avail {
			break
		}
		out[n<<1] = b.s[src<<1]
		out[n<<1|1] = b.s[src<<1|1]
		last = src
	}
	for i := n << 1; i < len(out); i++ {
		out[i] = 0
	}
	if n < frames {
		underruns.Inc()
	}
	if last >= 0 {
		b.drop((last + 1) << 1)
	}
}

// drop removes n samples from the front. Callers hold the lock.
func (b *Buffer) drop(n int) {
	copy(b.s, b.s[n:])
	b.s = b.s[:len(b.s)-n]
}
