package config

type (
	Config struct {
		App        App
		Audio      Audio
		Video      Video
		Library    Library
		Storage    Storage
		Monitoring Monitoring
	}
	App struct {
		Debug   bool
		NoColor bool
	}
	// Audio holds the host audio output params.
	// DelayTrigger and DelayTarget control drift compensation:
	// when the sample buffer grows past DelayTrigger (a multiple of one
	// callback worth of data), stale samples are dropped down to
	// DelayTarget. The gap between the two leaves a small tail in the
	// buffer so the next callback won't start empty.
	Audio struct {
		SampleRate   int     `fig:"sampleRate" default:"48000"`
		Channels     int     `fig:"channels" default:"2"`
		Format       string  `fig:"format" default:"s16"`
		BufferMs     int     `fig:"bufferMs" default:"50"`
		DelayTrigger float64 `fig:"delayTrigger" default:"1.6"`
		DelayTarget  float64 `fig:"delayTarget" default:"1.5"`
	}
	Video struct {
		// Viewport rescales decoded frames to a fixed size when set.
		Viewport struct {
			Width  int
			Height int
		}
		Scaler string `fig:"scaler" default:"nearest"`
	}
	Library struct {
		BasePath  string   `fig:"basePath" default:"./roms"`
		Supported []string `fig:"supported"`
		Ignored   []string `fig:"ignored"`
		WatchMode bool     `fig:"watchMode"`
	}
	Storage struct {
		SavesPath   string `fig:"savesPath" default:"./saves"`
		Compression bool   `fig:"compression"`
		SaveOnClose bool   `fig:"saveOnClose" default:"true"`
		AutosaveSec int    `fig:"autosaveSec"`
	}
	Monitoring struct {
		Port             int    `fig:"port" default:"6601"`
		URLPrefix        string `fig:"urlPrefix"`
		MetricEnabled    bool   `fig:"metricEnabled"`
		ProfilingEnabled bool   `fig:"profilingEnabled"`
	}
)
