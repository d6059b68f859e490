// Package diag defines the diagnostic model shared by the lexer, parser,
// code generator and map dispatcher.
//
// A Diagnostic carries a Severity, a compact numeric Code with a stable
// string form (LEX1004, SYN2001, SEM3003, OFF4006, RUN5001), a short message,
// the primary span and optional notes. Producers emit through a Reporter so
// that storage (Bag) and rendering (internal/diagfmt) stay decoupled.
//
// The top-level loop reports diagnostics as soon as a unit fails, so the
// driver uses StreamReporter to forward each one to the renderer while still
// counting errors.
package diag
