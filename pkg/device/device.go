package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudretro/retrohost/pkg/config"
	"github.com/cloudretro/retrohost/pkg/logger"
	"github.com/cloudretro/retrohost/pkg/media"
	"github.com/ebitengine/oto/v3"
)

// ErrChannelCount is a configuration-fatal error: the pipeline carries
// interleaved stereo frames end to end.
var ErrChannelCount = errors.New("only stereo output is supported")

// Source is the consume operation plugged into the host audio callback.
// ReadStereo must fill the whole slice (silence on underrun) and is
// called on the audio thread at the cadence of the OS audio subsystem.
type Source interface {
	ReadStereo(out media.Samples)
}

// StreamConfig is the configuration negotiated with the host device.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Format     media.SampleFormat
	BufferSize time.Duration
}

// Device owns the host audio context.
// The underlying backend keeps one context per process; Close suspends
// it rather than destroying it.
type Device struct {
	ctx  *oto.Context
	conf StreamConfig
	log  *logger.Logger
}

// Open negotiates an output configuration with the default host audio
// device and returns a device ready to stream.
func Open(conf config.Audio, log *logger.Logger) (*Device, error) {
	if conf.Channels != 2 {
		return nil, fmt.Errorf("%w, requested %v channels", ErrChannelCount, conf.Channels)
	}

	format, err := media.ParseFormat(conf.Format)
	if err != nil {
		return nil, err
	}
	var otoFormat oto.Format
	switch format {
	case media.FormatS16:
		otoFormat = oto.FormatSignedInt16LE
	case media.FormatF32:
		otoFormat = oto.FormatFloat32LE
	default:
		// the backend has no unsigned 16-bit output
		return nil, fmt.Errorf("sample format %v is not supported by the audio backend, use s16 or f32", format)
	}

	sc := StreamConfig{
		SampleRate: conf.SampleRate,
		Channels:   conf.Channels,
		Format:     format,
		BufferSize: time.Duration(conf.BufferMs) * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sc.SampleRate,
		ChannelCount: sc.Channels,
		Format:       otoFormat,
		BufferSize:   sc.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("audio device open failed: %w", err)
	}
	<-ready

	log.Info().Msgf("Audio device: %vHz %vch %v, buffer %v",
		sc.SampleRate, sc.Channels, sc.Format, sc.BufferSize)

	return &Device{ctx: ctx, conf: sc, log: log}, nil
}

// StreamConfig returns the negotiated output configuration.
func (d *Device) StreamConfig() StreamConfig { return d.conf }

// Start wires src into the periodic host audio callback and begins
// playback. The stream keeps pulling until Close.
func (d *Device) Start(src Source) (*Stream, error) {
	if src == nil {
		return nil, errors.New("no audio source")
	}
	player := d.ctx.NewPlayer(&reader{src: src, format: d.conf.Format})
	player.Play()
	if !player.IsPlaying() {
		err := player.Close()
		return nil, fmt.Errorf("audio stream didn't start: %v", err)
	}
	return &Stream{player: player, log: d.log}, nil
}

// Close suspends the audio context.
func (d *Device) Close() error {
	if d.ctx == nil {
		return nil
	}
	return d.ctx.Suspend()
}

// Stream owns one running playback stream.
type Stream struct {
	player *oto.Player
	log    *logger.Logger
}

// Close stops playback and releases the stream. Safe to call on the
// zero value and more than once.
//
// Backend I/O errors accumulated during playback never reach the
// emulation loop; they surface here, in the log.
func (s *Stream) Close() error {
	if s.player == nil {
		return nil
	}
	if err := s.player.Err(); err != nil {
		s.log.Error().Err(err).Msg("audio stream had playback errors")
	}
	err := s.player.Close()
	s.player = nil
	if err != nil {
		return fmt.Errorf("audio stream close failed: %w", err)
	}
	return nil
}

// reader adapts the pull model of the audio thread to the source's
// consume operation, converting to the negotiated sample encoding.
// The intermediate buffer is reused, no allocation after warm-up.
type reader struct {
	src    Source
	format media.SampleFormat
	buf    media.Samples
}

func (r *reader) Read(p []byte) (int, error) {
	frameBytes := 2 * r.format.Bytes()
	frames := len(p) / frameBytes
	if frames == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := frames << 1
	if cap(r.buf) < n {
		r.buf = make(media.Samples, n)
	}
	buf := r.buf[:n]
	r.src.ReadStereo(buf)
	return media.Encode(r.format, buf, p), nil
}
