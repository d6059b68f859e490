// Package offload turns map(f, v...) into a device kernel launch.
//
// A map call walks five steps: the callee's call-graph closure is copied
// out of the live module (Prune), a grid kernel is wrapped around the
// callee (SynthesizeKernel), the result is verified, compiled by a
// devcc.Compiler and launched by the engine. The Dispatcher drives the
// steps and sorts failures into recoverable diagnostics and fatal device
// errors.
package offload
