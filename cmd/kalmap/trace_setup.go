package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kalmap/internal/config"
	"kalmap/internal/trace"
)

// tracerConfig maps the [trace] section onto trace.Config. An empty
// output or "stderr" both mean the standard error stream.
func tracerConfig(tc config.TraceConfig, ringSize int, heartbeat time.Duration) (trace.Config, error) {
	cfg := trace.Config{OutputPath: tc.Output, RingSize: ringSize, Heartbeat: heartbeat}
	var errLevel, errMode, errFormat error
	cfg.Level, errLevel = trace.ParseLevel(tc.Level)
	cfg.Mode, errMode = trace.ParseMode(tc.Mode)
	cfg.Format, errFormat = trace.ParseFormat(tc.Format)
	if err := errors.Join(errLevel, errMode, errFormat); err != nil {
		return trace.Config{}, fmt.Errorf("trace: %w", err)
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "stderr" {
		cfg.OutputPath = "-"
	}
	return cfg, nil
}

// setupTracing attaches a tracer to the command context. The cleanup
// stops the heartbeat, then flushes and closes the tracer.
func setupTracing(cmd *cobra.Command, tc config.TraceConfig) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, err
	}
	every, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, err
	}
	cfg, err := tracerConfig(tc, ringSize, every)
	if err != nil {
		return nil, err
	}
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))
	hb := trace.StartHeartbeat(tracer, every)

	return func() {
		hb.Stop()
		if err := errors.Join(tracer.Flush(), tracer.Close()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		}
	}, nil
}
