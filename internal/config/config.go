// Package config loads kalmap.toml, applies environment overrides and
// validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is looked up from the working directory upward.
const FileName = "kalmap.toml"

type DeviceConfig struct {
	Driver      string `toml:"driver"`      // sim, cuda, auto
	Library     string `toml:"library"`     // libcuda path
	MinCompute  string `toml:"min_compute"` // "major.minor"
	MaxBlock    int    `toml:"max_block"`
	ABI         string `toml:"abi"` // grid, legacy
	FatalErrors bool   `toml:"fatal_errors"`
}

type ToolchainConfig struct {
	Compiler  string `toml:"compiler"` // auto, sim, nvvm
	NVVMCC    string `toml:"nvvmcc"`
	WorkDir   string `toml:"work_dir"`
	KeepTemps bool   `toml:"keep_temps"`
}

type SimDevice struct {
	Name               string `toml:"name"`
	Major              int    `toml:"major"`
	Minor              int    `toml:"minor"`
	TotalMem           uint64 `toml:"total_mem"`
	MaxThreadsPerBlock int    `toml:"max_threads_per_block"`
}

type SimConfig struct {
	Workers int         `toml:"workers"`
	Devices []SimDevice `toml:"devices"`
}

type RuntimeConfig struct {
	MaxDepth       int    `toml:"max_depth"`
	MaxVectorLen   int    `toml:"max_vector_len"`
	Seed           uint64 `toml:"seed"`
	MaxDiagnostics int    `toml:"max_diagnostics"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"` // stream, ring, both
	Format string `toml:"format"`
	Output string `toml:"output"`
}

type Config struct {
	Device    DeviceConfig    `toml:"device"`
	Toolchain ToolchainConfig `toml:"toolchain"`
	Sim       SimConfig       `toml:"sim"`
	Runtime   RuntimeConfig   `toml:"runtime"`
	Trace     TraceConfig     `toml:"trace"`

	// Path is the file the values came from, "" for built-in defaults.
	Path string `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Driver:      "sim",
			MinCompute:  "2.0",
			MaxBlock:    128,
			ABI:         "grid",
			FatalErrors: true,
		},
		Toolchain: ToolchainConfig{Compiler: "auto"},
		Runtime: RuntimeConfig{
			MaxDepth:       10000,
			MaxVectorLen:   1 << 26,
			MaxDiagnostics: 100,
		},
		Trace: TraceConfig{Level: "off", Mode: "stream", Format: "auto", Output: "stderr"},
	}
}

// Find walks up from startDir to locate kalmap.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFile decodes path over the defaults. Unknown keys are errors.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	return cfg, nil
}

// Load reads explicit when given, otherwise the nearest kalmap.toml above
// startDir, otherwise the defaults; then applies the environment and
// validates.
func Load(explicit, startDir string) (Config, error) {
	cfg := Default()
	path := explicit
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return Config{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseCompute parses a "major.minor" capability.
func ParseCompute(s string) (major, minor int, err error) {
	ma, mi, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		mi = "0"
	}
	if major, err = strconv.Atoi(ma); err != nil || major < 0 {
		return 0, 0, fmt.Errorf("invalid compute capability %q", s)
	}
	if minor, err = strconv.Atoi(mi); err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("invalid compute capability %q", s)
	}
	return major, minor, nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", "))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	add(oneOf("device.driver", c.Device.Driver, "sim", "cuda", "auto"))
	add(oneOf("device.abi", c.Device.ABI, "grid", "legacy"))
	add(oneOf("toolchain.compiler", c.Toolchain.Compiler, "auto", "sim", "nvvm"))
	add(oneOf("trace.mode", c.Trace.Mode, "stream", "ring", "both"))
	add(oneOf("trace.format", c.Trace.Format, "auto", "text", "ndjson"))
	add(oneOf("trace.level", c.Trace.Level, "off", "error", "phase", "detail", "debug"))
	if _, _, err := ParseCompute(c.Device.MinCompute); err != nil {
		add(fmt.Errorf("device.min_compute: %w", err))
	}
	if c.Device.MaxBlock <= 0 || c.Device.MaxBlock > 1024 {
		add(fmt.Errorf("device.max_block: %d outside 1..1024", c.Device.MaxBlock))
	}
	if c.Toolchain.Compiler == "nvvm" && c.Toolchain.NVVMCC == "" {
		add(errors.New("toolchain.compiler is nvvm but no nvvmcc path is set (toolchain.nvvmcc or NVVMCC)"))
	}
	if c.Sim.Workers < 0 {
		add(fmt.Errorf("sim.workers: %d is negative", c.Sim.Workers))
	}
	for i, d := range c.Sim.Devices {
		if d.MaxThreadsPerBlock <= 0 || d.TotalMem == 0 {
			add(fmt.Errorf("sim.devices[%d]: max_threads_per_block and total_mem must be positive", i))
		}
	}
	if c.Runtime.MaxDepth <= 0 {
		add(fmt.Errorf("runtime.max_depth: %d must be positive", c.Runtime.MaxDepth))
	}
	if c.Runtime.MaxVectorLen <= 0 {
		add(fmt.Errorf("runtime.max_vector_len: %d must be positive", c.Runtime.MaxVectorLen))
	}
	if len(errs) == 0 {
		return nil
	}
	if c.Path != "" {
		return fmt.Errorf("%s: %w", c.Path, errors.Join(errs...))
	}
	return errors.Join(errs...)
}
