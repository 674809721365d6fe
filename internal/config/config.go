// ABOUTME: Application configuration
// ABOUTME: YAML file loading, defaults, validation and command-line flag overrides
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/driver"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the passthrough
type Config struct {
	Driver       string `yaml:"driver"`
	InputDevice  int    `yaml:"input_device"`
	OutputDevice int    `yaml:"output_device"`

	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	Engine          string  `yaml:"engine"`
	Semitones       float64 `yaml:"semitones"`
	BlockFrames     int     `yaml:"block_frames"`

	LogFile string `yaml:"log_file"`
	NoTUI   bool   `yaml:"no_tui"`

	// ListenAddr enables the /metrics and /status server when set
	ListenAddr string `yaml:"listen_addr"`
	MDNS       bool   `yaml:"mdns"`
	Name       string `yaml:"name"`
}

// Default returns the configuration used when nothing is specified
func Default() *Config {
	return &Config{
		Driver:          "malgo",
		InputDevice:     -1,
		OutputDevice:    -1,
		FramesPerBuffer: 512,
		Engine:          string(engine.KindWSOLA),
		Semitones:       -4,
		BlockFrames:     engine.DefaultBlockFrames,
		LogFile:         "resonate-pitch.log",
		Name:            "resonate-pitch",
	}
}

// Load reads the YAML file at path on top of the defaults and validates it
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of the defaults and validates it.
// Unknown keys are errors.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !slices.Contains(driver.Names(), cfg.Driver) {
		errs = append(errs, fmt.Errorf("driver %q is invalid; valid values: %v", cfg.Driver, driver.Names()))
	}
	if cfg.InputDevice < -1 {
		errs = append(errs, fmt.Errorf("input_device %d is invalid; use -1 for the default device", cfg.InputDevice))
	}
	if cfg.OutputDevice < -1 {
		errs = append(errs, fmt.Errorf("output_device %d is invalid; use -1 for the default device", cfg.OutputDevice))
	}
	if cfg.FramesPerBuffer < 16 || cfg.FramesPerBuffer > 8192 {
		errs = append(errs, fmt.Errorf("frames_per_buffer %d is out of range [16, 8192]", cfg.FramesPerBuffer))
	}

	switch engine.Kind(cfg.Engine) {
	case engine.KindWSOLA, engine.KindSpectral, engine.KindPassthrough:
	default:
		errs = append(errs, fmt.Errorf("engine %q is invalid; valid values: wsola, spectral, passthrough", cfg.Engine))
	}
	if cfg.Semitones < -24 || cfg.Semitones > 24 {
		errs = append(errs, fmt.Errorf("semitones %.2f is out of range [-24, 24]", cfg.Semitones))
	}
	if cfg.BlockFrames < 256 || cfg.BlockFrames > 65536 {
		errs = append(errs, fmt.Errorf("block_frames %d is out of range [256, 65536]", cfg.BlockFrames))
	}

	if cfg.MDNS && cfg.ListenAddr == "" {
		errs = append(errs, errors.New("mdns requires listen_addr"))
	}
	if cfg.MDNS && cfg.Name == "" {
		errs = append(errs, errors.New("mdns requires name"))
	}

	return errors.Join(errs...)
}

// EngineOptions returns the engine selection sized for the buffer period
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{Kind: engine.Kind(c.Engine), BlockFrames: c.BlockFrames, BufferFrames: c.FramesPerBuffer}
}

// Bind registers one flag per setting on fs, writing into cfg, plus -config.
// It returns the config file path flag.
func Bind(fs *flag.FlagSet, cfg *Config) *string {
	path := fs.String("config", "", "YAML config file (flags given explicitly override it)")

	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Audio driver: malgo, portaudio, oto")
	fs.IntVar(&cfg.InputDevice, "input", cfg.InputDevice, "Input device ID (-1 for default)")
	fs.IntVar(&cfg.OutputDevice, "output", cfg.OutputDevice, "Output device ID (-1 for default)")
	fs.IntVar(&cfg.FramesPerBuffer, "frames", cfg.FramesPerBuffer, "Frames per buffer")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "Pitch engine: wsola, spectral, passthrough")
	fs.Float64Var(&cfg.Semitones, "semitones", cfg.Semitones, "Pitch shift in semitones")
	fs.IntVar(&cfg.BlockFrames, "block", cfg.BlockFrames, "Engine processing block in frames")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	fs.BoolVar(&cfg.NoTUI, "no-tui", cfg.NoTUI, "Disable TUI, use streaming logs instead")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address for /metrics and /status (empty disables)")
	fs.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "Advertise the status server via mDNS")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Instance name for mDNS and the status feed")

	return path
}

// Parse binds the settings to fs, parses args and, when -config is given,
// loads the file and applies the explicitly set flags on top of it
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	path := Bind(fs, cfg)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path == "" {
		return cfg, Validate(cfg)
	}

	fileCfg, err := Load(*path)
	if err != nil {
		return nil, err
	}

	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	Bind(overrides, fileCfg)

	var errs []error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || overrides.Lookup(f.Name) == nil {
			return
		}
		if err := overrides.Set(f.Name, f.Value.String()); err != nil {
			errs = append(errs, fmt.Errorf("flag -%s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return fileCfg, Validate(fileCfg)
}
