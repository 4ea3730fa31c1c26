package session

import (
	"errors"
	stdimage "image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudretro/retrohost/pkg/config"
	"github.com/cloudretro/retrohost/pkg/device"
	"github.com/cloudretro/retrohost/pkg/emulator"
	"github.com/cloudretro/retrohost/pkg/logger"
	"github.com/cloudretro/retrohost/pkg/media"
)

// fakeCore is a minimal stepped core: a static 2x2 RGB565 image and a
// constant chunk of audio per step, with injectable failures.
type fakeCore struct {
	steps   atomic.Int32
	stepErr error
	fbErr   error
	state   []byte
}

func (c *fakeCore) Step(_ *emulator.InputState) error {
	c.steps.Add(1)
	return c.stepErr
}

func (c *fakeCore) Framebuffer() (emulator.RawFrame, error) {
	if c.fbErr != nil {
		return emulator.RawFrame{}, c.fbErr
	}
	return emulator.RawFrame{
		Data:   []byte{0x00, 0xf8, 0x00, 0xf8, 0x00, 0xf8, 0x00, 0xf8},
		Stride: 4,
		W:      2,
		H:      2,
		Fmt:    emulator.Fmt565,
	}, nil
}

func (c *fakeCore) ReadAudio() []int16          { return []int16{1, 2, 3, 4} }
func (c *fakeCore) SampleRate() float64         { return 32000 }
func (c *fakeCore) FPS() int                    { return 1000 }
func (c *fakeCore) SaveState() ([]byte, error)  { return []byte("state"), nil }
func (c *fakeCore) LoadState(data []byte) error { c.state = data; return nil }
func (c *fakeCore) Close()                      {}

// fakeOutput stands in for the device bridge.
type fakeOutput struct {
	conf    device.StreamConfig
	started atomic.Int32
	closed  atomic.Int32
	src     atomic.Value // device.Source
}

func (o *fakeOutput) StreamConfig() device.StreamConfig { return o.conf }

func (o *fakeOutput) Start(src device.Source) (*device.Stream, error) {
	o.src.Store(src)
	o.started.Add(1)
	return &device.Stream{}, nil
}

func (o *fakeOutput) Close() error {
	o.closed.Add(1)
	return nil
}

func stereoOutput() *fakeOutput {
	return &fakeOutput{conf: device.StreamConfig{
		SampleRate: 48000,
		Channels:   2,
		Format:     media.FormatS16,
	}}
}

func testConf(t *testing.T) config.Config {
	t.Helper()
	conf := config.Config{}
	conf.Audio.DelayTrigger = 1.6
	conf.Audio.DelayTarget = 1.5
	conf.Storage.SavesPath = t.TempDir()
	return conf
}

func newTestSession(t *testing.T, core emulator.Core, out Output) *Session {
	t.Helper()
	s, err := New(core, out, testConf(t), logger.Default())
	if err != nil {
		t.Fatalf("session init failed: %v", err)
	}
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v", what)
}

func TestRunStopTransitions(t *testing.T) {
	core := &fakeCore{}
	out := stereoOutput()
	s := newTestSession(t, core, out)

	if s.State() != Idle {
		t.Fatal("new session is not idle")
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()

	waitFor(t, "running state", func() bool { return s.State() == Running })
	waitFor(t, "core steps", func() bool { return core.steps.Load() > 2 })

	s.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("run returned %v", err)
	}
	if s.State() != Idle {
		t.Error("session is not idle after stop")
	}
	// the session owns the stream only, never the device
	if out.started.Load() != 1 || out.closed.Load() != 0 {
		t.Errorf("device start/close = %v/%v, want 1/0",
			out.started.Load(), out.closed.Load())
	}

	// a second stop is a no-op
	s.Stop()
}

func TestRunRestartsAfterStop(t *testing.T) {
	core := &fakeCore{}
	out := stereoOutput()
	s := newTestSession(t, core, out)

	for i := 0; i < 2; i++ {
		errc := make(chan error, 1)
		go func() { errc <- s.Run() }()
		waitFor(t, "running state", func() bool { return s.State() == Running })
		s.Stop()
		if err := <-errc; err != nil {
			t.Fatalf("run %v returned %v", i, err)
		}
	}
	if out.started.Load() != 2 {
		t.Errorf("started %v streams, want 2", out.started.Load())
	}
}

func TestRunWhileRunning(t *testing.T) {
	s := newTestSession(t, &fakeCore{}, stereoOutput())

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()
	waitFor(t, "running state", func() bool { return s.State() == Running })

	if err := s.Run(); !errors.Is(err, ErrBusy) {
		t.Errorf("second run returned %v, want %v", err, ErrBusy)
	}

	s.Stop()
	<-errc
}

func TestRunRejectsMonoOutput(t *testing.T) {
	out := &fakeOutput{conf: device.StreamConfig{SampleRate: 48000, Channels: 1}}
	s := newTestSession(t, &fakeCore{}, out)

	if err := s.Run(); !errors.Is(err, device.ErrChannelCount) {
		t.Fatalf("run returned %v, want %v", err, device.ErrChannelCount)
	}
	if s.State() != Idle {
		t.Error("session left running after a failed start")
	}
}

func TestFatalStepError(t *testing.T) {
	boom := errors.New("core crashed")
	s := newTestSession(t, &fakeCore{stepErr: boom}, stereoOutput())

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()

	if err := <-errc; !errors.Is(err, boom) {
		t.Fatalf("run returned %v, want %v", err, boom)
	}
	if s.State() != Idle {
		t.Error("session is not idle after a fatal error")
	}
}

func TestFatalErrorCancelsAutosave(t *testing.T) {
	boom := errors.New("core crashed")
	core := &fakeCore{stepErr: boom}
	s, err := New(core, stereoOutput(), testConf(t), logger.Default())
	if err != nil {
		t.Fatalf("session init failed: %v", err)
	}
	s.conf.Storage.AutosaveSec = 1

	if err := s.Run(); !errors.Is(err, boom) {
		t.Fatalf("run returned %v, want %v", err, boom)
	}
	// the done channel cancels autosave; it must be closed on the
	// error path too, or the goroutine keeps snapshotting a dead core
	select {
	case <-s.done:
	default:
		t.Fatal("cancellation channel still open after the session ended")
	}
}

func TestMissingFramebufferIsRecoverable(t *testing.T) {
	core := &fakeCore{fbErr: emulator.ErrNoFramebuffer}
	s := newTestSession(t, core, stereoOutput())

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()

	waitFor(t, "core steps", func() bool { return core.steps.Load() > 3 })
	if s.State() != Running {
		t.Error("session stopped on a recoverable frame error")
	}

	s.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestVideoCallbackGetsFrames(t *testing.T) {
	core := &fakeCore{}
	s := newTestSession(t, core, stereoOutput())

	var frames atomic.Int32
	var wrong atomic.Int32
	s.SetVideoCb(func(img *stdimage.RGBA) {
		frames.Add(1)
		if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
			wrong.Add(1)
		}
	})

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()

	waitFor(t, "video frames", func() bool { return frames.Load() > 2 })
	s.Stop()
	<-errc

	if wrong.Load() != 0 {
		t.Error("frames with unexpected dimensions")
	}
}

func TestAudioReachesTheBuffer(t *testing.T) {
	core := &fakeCore{}
	out := stereoOutput()
	s := newTestSession(t, core, out)

	errc := make(chan error, 1)
	go func() { errc <- s.Run() }()
	waitFor(t, "buffered audio", func() bool {
		src := out.src.Load()
		if src == nil {
			return false
		}
		return src.(*media.Buffer).Len() > 0
	})

	s.Stop()
	<-errc
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	core := &fakeCore{}
	s := newTestSession(t, core, stereoOutput())
	s.SetGameName("roundtrip")

	if s.HasSave() {
		t.Fatal("fresh session has a save")
	}
	if err := s.SaveGameState(); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !s.HasSave() {
		t.Fatal("save file is missing")
	}
	if err := s.RestoreGameState(); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if string(core.state) != "state" {
		t.Errorf("core got state %q", core.state)
	}
}

func TestRestoreWithoutSave(t *testing.T) {
	s := newTestSession(t, &fakeCore{}, stereoOutput())
	s.SetGameName("nothing-here")
	if err := s.RestoreGameState(); err != nil {
		t.Errorf("restore of a missing save returned %v, want nil", err)
	}
}
