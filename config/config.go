package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pianoroll/onset"
	"pianoroll/viewport"
)

const EnvConfigPath = "PIANOROLL_CONFIG"

type VideoConfig struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	FPS               int     `json:"fps"`
	Workers           int     `json:"workers"`
	StartDelaySeconds float64 `json:"startDelaySeconds"`
	FramesDir         string  `json:"framesDir"`
	OutputDir         string  `json:"outputDir"`
	FFmpeg            string  `json:"ffmpeg"`
	KeepFrames        bool    `json:"keepFrames,omitempty"`
}

type ServerConfig struct {
	Port           string   `json:"port"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type SynthConfig struct {
	// Target is a render target string, see synth.ParseTarget.
	Target           string `json:"target"`
	RenderServiceURL string `json:"renderServiceUrl,omitempty"`
	Timidity         string `json:"timidity"`
}

// TranscribeConfig points at the audio to MIDI service. An empty ServiceURL
// falls back to the render service, which hosts both jobs.
type TranscribeConfig struct {
	ServiceURL string `json:"serviceUrl,omitempty"`
	UseDemucs  bool   `json:"useDemucs,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

type ViewerConfig struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Title  string `json:"title"`
}

type Config struct {
	LogLevel         string           `json:"logLevel"`
	Development      bool             `json:"development,omitempty"`
	ReloadDebounceMs int              `json:"reloadDebounceMs"`
	Viewport         viewport.Config  `json:"viewport"`
	Onset            onset.Config     `json:"onset"`
	Video            VideoConfig      `json:"video"`
	Server           ServerConfig     `json:"server"`
	Synth            SynthConfig      `json:"synth"`
	Transcribe       TranscribeConfig `json:"transcribe"`
	Viewer           ViewerConfig     `json:"viewer"`
}

func Default() *Config {
	return &Config{
		LogLevel:         "info",
		ReloadDebounceMs: 300,
		Viewport:         viewport.DefaultConfig(),
		Onset:            onset.DefaultConfig(),
		Video: VideoConfig{
			Width:             1280,
			Height:            720,
			FPS:               60,
			Workers:           16,
			StartDelaySeconds: 3,
			FramesDir:         "_frames",
			OutputDir:         "output",
			FFmpeg:            "ffmpeg",
		},
		Server: ServerConfig{
			Port:           "8888",
			AllowedOrigins: []string{"*"},
		},
		Synth: SynthConfig{
			Target:   "system",
			Timidity: "timidity",
		},
		Viewer: ViewerConfig{
			Width:  1280,
			Height: 720,
			Title:  "pianoroll",
		},
	}
}

// TranscribeServiceURL is where transcription jobs go, "" when none is set.
func (c *Config) TranscribeServiceURL() string {
	if c.Transcribe.ServiceURL != "" {
		return c.Transcribe.ServiceURL
	}
	return c.Synth.RenderServiceURL
}

func (c *Config) ReloadDebounce() time.Duration {
	return time.Duration(c.ReloadDebounceMs) * time.Millisecond
}

// Load reads a JSON file over the defaults. Fields missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads path when set, else the file named by PIANOROLL_CONFIG, else
// the defaults.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	switch {
	case c.Video.FPS <= 0:
		return fmt.Errorf("video fps must be positive, got %d", c.Video.FPS)
	case c.Video.Width <= 0 || c.Video.Height <= 0:
		return fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	case c.Viewport.KeyHeightPixels <= 0:
		return fmt.Errorf("key height must be positive")
	case c.Viewport.PixelsPerSecondBase <= 0:
		return fmt.Errorf("pixels per second must be positive")
	case c.Viewport.PianoRangeEnd < c.Viewport.PianoRangeStart:
		return fmt.Errorf("piano range %d..%d is empty", c.Viewport.PianoRangeStart, c.Viewport.PianoRangeEnd)
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
