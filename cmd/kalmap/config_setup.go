package main

import (
	"github.com/spf13/cobra"

	"kalmap/internal/config"
)

// loadConfig resolves kalmap.toml, the environment and the command-line
// overrides, in that order of increasing priority.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	pf := cmd.Root().PersistentFlags()
	explicit, _ := pf.GetString("config")
	cfg, err := config.Load(explicit, ".")
	if err != nil {
		return config.Config{}, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"driver", &cfg.Device.Driver},
		{"compiler", &cfg.Toolchain.Compiler},
		{"trace-level", &cfg.Trace.Level},
		{"trace-mode", &cfg.Trace.Mode},
		{"trace", &cfg.Trace.Output},
	}
	for _, o := range overrides {
		if v, _ := pf.GetString(o.flag); v != "" {
			*o.dst = v
		}
	}
	// --trace alone asks for phase events.
	if pf.Changed("trace") && !pf.Changed("trace-level") && cfg.Trace.Level == "off" {
		cfg.Trace.Level = "phase"
	}
	if n, _ := pf.GetInt("max-diagnostics"); n > 0 {
		cfg.Runtime.MaxDiagnostics = n
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
