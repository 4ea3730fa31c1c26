package session

import (
	"errors"
	"fmt"
	stdimage "image"
	"sync"
	"time"

	"github.com/cloudretro/retrohost/pkg/config"
	"github.com/cloudretro/retrohost/pkg/device"
	"github.com/cloudretro/retrohost/pkg/emulator"
	"github.com/cloudretro/retrohost/pkg/emulator/image"
	"github.com/cloudretro/retrohost/pkg/logger"
	"github.com/cloudretro/retrohost/pkg/media"
	"github.com/cloudretro/retrohost/pkg/os"
	"github.com/cloudretro/retrohost/pkg/storage"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State uint8

const (
	Idle State = iota
	Running
)

var ErrBusy = errors.New("session is already running")

var droppedFrames = promauto.NewCounter(prometheus.CounterOpts{
	Name: "retrohost_video_dropped_frames_total",
	Help: "Steps which produced no framebuffer.",
})

// Output is the slice of the device bridge the session drives.
// *device.Device implements it. The device itself outlives the
// session; the session owns only the stream it starts.
type Output interface {
	StreamConfig() device.StreamConfig
	Start(src device.Source) (*device.Stream, error)
}

// Session steps one core per host video frame and moves its A/V output
// into the host-facing pipelines. Two states: Idle and Running.
//
// While Running, the session goroutine owns the core, the canvas and
// the input state; the audio callback shares only the sample buffer.
type Session struct {
	id     string
	conf   config.Config
	log    *logger.Logger
	core   emulator.Core
	input  *emulator.InputState
	canvas *image.Canvas
	out    Output
	store  storage.Storage

	onVideo func(*stdimage.RGBA)

	mu     sync.Mutex
	state  State
	buf    *media.Buffer
	stream *device.Stream
	done   chan struct{}

	coreMu sync.Mutex
}

func New(core emulator.Core, out Output, conf config.Config, log *logger.Logger) (*Session, error) {
	store, err := storage.NewStateStorage(conf.Storage.SavesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create the save path: %w", err)
	}
	var st storage.Storage = store
	if conf.Storage.Compression {
		st = &storage.ZipStorage{Storage: store}
	}

	id := uuid.Must(uuid.NewV4()).String()
	log = log.Extend(log.With().Str("m", "session"))

	canvas := image.NewCanvas(log)
	if v := conf.Video.Viewport; v.Width > 0 && v.Height > 0 {
		canvas.SetViewport(v.Width, v.Height, image.ParseScaler(conf.Video.Scaler))
	}

	return &Session{
		id:     id,
		conf:   conf,
		log:    log,
		core:   core,
		input:  emulator.NewInputState(),
		canvas: canvas,
		out:    out,
		store:  st,
	}, nil
}

func (s *Session) Id() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetGameName names the save file of the running game.
func (s *Session) SetGameName(name string) { s.store.SetMainSaveName(name) }

// SetVideoCb sets the display surface callback. The frame it receives
// is reused between ticks; copy it to keep it.
func (s *Session) SetVideoCb(cb func(*stdimage.RGBA)) { s.onVideo = cb }

// Input passes controller input to the running core.
func (s *Session) Input(player int, data []byte) { s.input.SetInput(player, data) }

// Run transitions Idle -> Running and blocks stepping the core until
// Stop is called or a fatal core error occurs. The device stream and
// sample buffer live exactly as long as the run.
func (s *Session) Run() error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrBusy
	}

	sc := s.out.StreamConfig()
	if sc.Channels != 2 {
		s.mu.Unlock()
		return device.ErrChannelCount
	}

	buf, err := media.NewBuffer(
		s.core.SampleRate(), float64(sc.SampleRate),
		s.conf.Audio.DelayTrigger, s.conf.Audio.DelayTarget, s.log)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	stream, err := s.out.Start(buf)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("audio stream start failed: %w", err)
	}

	s.buf, s.stream = buf, stream
	s.done = make(chan struct{})
	s.state = Running
	s.mu.Unlock()

	s.log.Info().Msgf("Session %v started: core %.0fHz -> device %vHz, ratio %.4f",
		s.id, s.core.SampleRate(), sc.SampleRate, buf.Ratio())

	defer s.teardown()

	if s.HasSave() {
		if err := s.RestoreGameState(); err != nil {
			s.log.Error().Err(err).Msg("couldn't load the save file")
		}
	}

	if sec := s.conf.Storage.AutosaveSec; sec > 0 {
		go s.autosave(sec)
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.core.FPS()))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.tick(); err != nil {
				s.log.Error().Err(err).Msg("fatal core error, session ends")
				return err
			}
		case <-s.done:
			return nil
		}
	}
}

// Stop requests the Running -> Idle transition. Safe to call from any
// goroutine, at any time, more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// tick runs one emulation frame. The core lock keeps autosave from
// snapshotting mid-step.
func (s *Session) tick() error {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()

	if err := s.core.Step(s.input); err != nil {
		return err
	}

	fb, err := s.core.Framebuffer()
	switch {
	case errors.Is(err, emulator.ErrNoFramebuffer):
		// recoverable, skip the frame
		s.log.Warn().Msg("No framebuffer!")
		droppedFrames.Inc()
	case err != nil:
		return err
	default:
		frame, err := s.canvas.Draw(fb)
		if err != nil {
			return err
		}
		if s.onVideo != nil {
			s.onVideo(frame)
		}
	}

	s.buf.Write(s.core.ReadAudio())
	return nil
}

// teardown releases the session resources in a fixed order: the audio
// stream stops before the sample buffer is dropped, so the callback
// can't observe a torn-down buffer.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}

	if err := s.stream.Close(); err != nil {
		s.log.Error().Err(err).Msg("audio stream close failed")
	}
	s.stream, s.buf = nil, nil
	// cancel the autosave goroutine on every exit path, not only Stop
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.state = Idle
	s.mu.Unlock()

	if s.conf.Storage.SaveOnClose {
		if err := s.saveState(); err != nil {
			s.log.Error().Err(err).Msg("save on close failed")
		}
	}

	s.log.Info().Msgf("Session %v ended", s.id)
}

func (s *Session) HasSave() bool { return os.Exists(s.store.GetSavePath()) }

// SaveGameState writes the current core state to the filesystem.
func (s *Session) SaveGameState() error { return s.saveState() }

func (s *Session) saveState() error {
	s.coreMu.Lock()
	state, err := s.core.SaveState()
	s.coreMu.Unlock()
	if err != nil {
		return err
	}
	return s.store.Save(s.store.GetSavePath(), state)
}

// RestoreGameState loads the saved core state from the filesystem.
func (s *Session) RestoreGameState() error {
	state, err := s.store.Load(s.store.GetSavePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return s.core.LoadState(state)
}

func (s *Session) autosave(periodSec int) {
	s.log.Info().Msgf("Autosave every %vs", periodSec)
	ticker := time.NewTicker(time.Duration(periodSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SaveGameState(); err != nil {
				s.log.Error().Msgf("Autosave failed: %v", err)
			} else {
				s.log.Debug().Msg("Autosave done")
			}
		case <-s.done:
			return
		}
	}
}
