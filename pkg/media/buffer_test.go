package media

import (
	"testing"

	"github.com/cloudretro/retrohost/pkg/logger"
)

func newTestBuffer(t *testing.T, coreHz, deviceHz float64) *Buffer {
	t.Helper()
	b, err := NewBuffer(coreHz, deviceHz, 1.6, 1.5, logger.Default())
	if err != nil {
		t.Fatalf("buffer init failed: %v", err)
	}
	return b
}

func TestReadStereoSilence(t *testing.T) {
	for _, srcLen := range []int{0, 2, 100, 4096} {
		b := newTestBuffer(t, 32000, 48000)
		b.Write(make(Samples, srcLen))

		out := make(Samples, 256)
		for i := range out {
			out[i] = -1
		}
		b.ReadStereo(out)
		for i, v := range out {
			if v != 0 {
				t.Fatalf("src len %v: out[%v] = %v, want 0", srcLen, i, v)
			}
		}
	}
}

func TestReadStereoEmptyAndZeroRequests(t *testing.T) {
	b := newTestBuffer(t, 32000, 48000)

	// empty buffer, any request
	b.ReadStereo(make(Samples, 512))
	// zero request, non-empty buffer
	b.Write(samplesOf(3, 100))
	b.ReadStereo(nil)
	b.ReadStereo(make(Samples, 0))
	if b.Len() != 100 {
		t.Fatalf("zero-length read consumed samples: %v", b.Len())
	}

	// sub-frame requests serve no frames but still get silenced
	odd := Samples{-1}
	b.ReadStereo(odd)
	if odd[0] != 0 {
		t.Fatalf("sub-frame output kept a stale sample: %v", odd[0])
	}
	if b.Len() != 100 {
		t.Fatalf("sub-frame read consumed samples: %v", b.Len())
	}
}

func TestWriteKeepsStereoAlignment(t *testing.T) {
	b := newTestBuffer(t, 44100, 48000)
	b.Write(samplesOf(1, 7))
	if b.Len() != 6 {
		t.Fatalf("buffer len %v, want whole stereo frames (6)", b.Len())
	}
}

func TestReadStereoCopiesInOrder(t *testing.T) {
	// ratio 1, occupancy below the drop trigger: output mirrors input
	b := newTestBuffer(t, 48000, 48000)
	in := make(Samples, 40)
	for i := range in {
		in[i] = int16(i)
	}
	b.Write(in)

	out := make(Samples, 32)
	b.ReadStereo(out)
	for i, v := range out {
		if v != int16(i) {
			t.Fatalf("out[%v] = %v, want %v", i, v, i)
		}
	}
	if b.Len() != 8 {
		t.Fatalf("consumed prefix mismatch: %v left, want 8", b.Len())
	}
}

func TestReadStereoDecimationDiscardsSkipped(t *testing.T) {
	// ratio 2: every other source frame is taken, but all of them
	// up to the last consumed one must be discarded
	b := newTestBuffer(t, 96000, 48000)
	b.Write(make(Samples, 300)) // below the drop trigger (320)

	out := make(Samples, 100)
	b.ReadStereo(out)
	// last output frame 49 reads source frame 98, consuming frames
	// 0..98 even though every other one was never copied
	if b.Len() != 300-99*2 {
		t.Fatalf("buffer len %v, want %v", b.Len(), 300-99*2)
	}
}

func TestReadStereoEndToEnd(t *testing.T) {
	// device 48000, core 32000, ratio ~0.667
	b := newTestBuffer(t, 32000, 48000)
	b.Write(samplesOf(7, 2000)) // 1000 stereo frames

	out := make(Samples, 1000) // 500 frames per callback
	for i := 0; i < 20; i++ {
		b.ReadStereo(out)
	}
	if b.Len() != 0 {
		t.Fatalf("buffer should drain, %v samples left", b.Len())
	}
	// keeps serving silence after the drain
	b.ReadStereo(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%v] = %v, want silence", i, v)
		}
	}
}

func TestDriftCompensationBoundsOccupancy(t *testing.T) {
	// the producer runs 10% ahead of the consumer; without delay
	// compensation occupancy grows without bound
	b := newTestBuffer(t, 32000, 48000)

	const request = 1000 // samples per callback
	produced := (int(float64(request)*b.Ratio()*1.1) + 1) &^ 1

	out := make(Samples, request)
	max := 0
	for i := 0; i < 1000; i++ {
		b.Write(samplesOf(5, produced))
		b.ReadStereo(out)
		if l := b.Len(); l > max {
			max = l
		}
	}

	// the drop trigger sits at 1.6 * request * ratio samples; with one
	// cycle of slack on top the occupancy must never pass ~2x that
	limit := 2 * int(1.6*float64(request)*b.Ratio())
	if max > limit {
		t.Fatalf("occupancy grew to %v samples, want <= %v", max, limit)
	}
	if b.Len() > limit {
		t.Fatalf("final occupancy %v, want <= %v", b.Len(), limit)
	}
}

func TestReadStereoNeverReadsOutOfBounds(t *testing.T) {
	// odd rate pairs with tiny buffers; a bad source index would panic
	rates := [][2]float64{{32000, 48000}, {48000, 32000}, {44100, 48000}, {96000, 22050}}
	for _, r := range rates {
		b := newTestBuffer(t, r[0], r[1])
		for _, srcLen := range []int{0, 2, 4, 10, 1000} {
			for _, reqLen := range []int{0, 2, 8, 512, 2048} {
				b.Write(samplesOf(1, srcLen))
				b.ReadStereo(make(Samples, reqLen))
			}
		}
	}
}

func samplesOf(v int16, l int) (s Samples) {
	s = make(Samples, l)
	for i := range s {
		s[i] = v
	}
	return
}

func BenchmarkReadStereo(b *testing.B) {
	buf, _ := NewBuffer(32000, 48000, 1.6, 1.5, logger.Default())
	in := samplesOf(3, 1334)
	out := make(Samples, 2048)
	for i := 0; i < b.N; i++ {
		buf.Write(in)
		buf.ReadStereo(out)
	}
	b.ReportAllocs()
}
