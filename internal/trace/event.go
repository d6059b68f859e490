package trace

import "time"

// Kind is the event type.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	// ScopeSession covers a whole run.
	ScopeSession Scope = iota + 1
	// ScopeUnit covers one top-level unit or one phase of a map call.
	ScopeUnit
	// ScopeDevice covers device session states and driver calls.
	ScopeDevice
	// ScopeKernel covers simulated thread blocks.
	ScopeKernel
)

var scopeNames = [...]string{
	ScopeSession: "session",
	ScopeUnit:    "unit",
	ScopeDevice:  "device",
	ScopeKernel:  "kernel",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the sink, monotonic per process
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	GID      uint64 // goroutine that emitted the event
	Name     string // "unit:def", "map:square", "engine:launched"
	Detail   string
	Extra    map[string]string
}
