// Package trace records what a kalmap session is doing: which top-level
// unit is compiling, which map phase is running, which state the device
// session has reached.
//
// # Usage
//
//	kalmap run --trace=- --trace-level=detail prog.k
//
// # Sinks
//
//   - Nop: the disabled tracer
//   - StreamTracer: writes every event to a file or stderr
//   - RingTracer: keeps the last N events, dumped after a fatal device error
//   - MultiTracer: fans out to several sinks
//
// # Levels and scopes
//
// LevelPhase emits ScopeSession and ScopeUnit events; LevelDetail adds
// ScopeDevice; LevelDebug adds ScopeKernel. LevelError streams nothing
// and only feeds the ring.
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.StartSpan(ctx, trace.ScopeUnit, "map:square")
//	defer span.End("")
package trace
