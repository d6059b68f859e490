package config

import (
	"github.com/xyproto/env/v2"
)

// Environment variables read by ApplyEnv.
const (
	EnvNVVMCC      = "NVVMCC"
	EnvDriver      = "KALMAP_DRIVER"
	EnvCompiler    = "KALMAP_COMPILER"
	EnvTraceLevel  = "KALMAP_TRACE_LEVEL"
	EnvCUDALibrary = "KALMAP_CUDA_LIBRARY"
	EnvSimWorkers  = "KALMAP_SIM_WORKERS"
	EnvFatalErrors = "KALMAP_FATAL_ERRORS"
)

// ApplyEnv overrides c with the environment variables that are set.
// The env cache is reloaded first so changes since the last call count.
func (c *Config) ApplyEnv() {
	env.Load()
	c.Toolchain.NVVMCC = env.Str(EnvNVVMCC, c.Toolchain.NVVMCC)
	c.Device.Driver = env.Str(EnvDriver, c.Device.Driver)
	c.Device.Library = env.Str(EnvCUDALibrary, c.Device.Library)
	c.Toolchain.Compiler = env.Str(EnvCompiler, c.Toolchain.Compiler)
	c.Trace.Level = env.Str(EnvTraceLevel, c.Trace.Level)
	c.Sim.Workers = env.Int(EnvSimWorkers, c.Sim.Workers)
	if env.Has(EnvFatalErrors) {
		c.Device.FatalErrors = env.Bool(EnvFatalErrors)
	}
}
