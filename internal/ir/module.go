package ir

import "fmt"

// DataLayout is the layout string attached to every module.
const DataLayout = "e-p:64:64:64-i1:8:8-i8:8:8-i16:16:16-i32:32:32-i64:64:64-f32:32:32-f64:64:64-v16:16:16-v32:32:32-v64:64:64-v128:128:128-n16:32:64"

// TripleNVPTX64 is the target triple of device modules.
const TripleNVPTX64 = "nvptx64-nvidia-cuda"

// Global is a private constant byte string. Data includes the trailing NUL.
type Global struct {
	Name string
	Data []byte
}

// Annotation tags a function with a named integer property, e.g. kernel=1.
type Annotation struct {
	Func  string
	Kind  string
	Value int
}

// AnnotationKernel marks a device entry point.
const AnnotationKernel = "kernel"

type Module struct {
	Name        string
	DataLayout  string
	Triple      string
	Funcs       []*Func
	Globals     []Global
	Annotations []Annotation

	index map[string]int
}

func NewModule(name string) *Module {
	return &Module{Name: name, DataLayout: DataLayout, index: make(map[string]int)}
}

// Reindex rebuilds the name index; call it after decoding a module.
func (m *Module) Reindex() {
	m.index = make(map[string]int, len(m.Funcs))
	for i, f := range m.Funcs {
		m.index[f.Name] = i
	}
}

// Func returns the function named name or nil.
func (m *Module) Func(name string) *Func {
	if m.index == nil {
		m.Reindex()
	}
	if i, ok := m.index[name]; ok {
		return m.Funcs[i]
	}
	return nil
}

// DeclareFunc returns the existing function named name or adds a
// declaration with the given signature.
func (m *Module) DeclareFunc(name string, params []Param, result Type) *Func {
	if f := m.Func(name); f != nil {
		return f
	}
	f := &Func{Name: name, Params: params, Result: result, Extern: true}
	m.AddFunc(f)
	return f
}

// AddFunc appends f. It panics if the name is taken.
func (m *Module) AddFunc(f *Func) {
	if m.Func(f.Name) != nil {
		panic(fmt.Sprintf("ir: duplicate function %q", f.Name))
	}
	m.index[f.Name] = len(m.Funcs)
	m.Funcs = append(m.Funcs, f)
}

// RemoveFunc deletes the function named name together with its annotations.
func (m *Module) RemoveFunc(name string) bool {
	if m.index == nil {
		m.Reindex()
	}
	i, ok := m.index[name]
	if !ok {
		return false
	}
	m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
	kept := m.Annotations[:0]
	for _, a := range m.Annotations {
		if a.Func != name {
			kept = append(kept, a)
		}
	}
	m.Annotations = kept
	m.Reindex()
	return true
}

// AddGlobalString adds a NUL-terminated constant and returns its unique name.
func (m *Module) AddGlobalString(s string) string {
	name := ".str"
	for n := 1; m.Global(name) != nil; n++ {
		name = fmt.Sprintf(".str.%d", n)
	}
	data := make([]byte, len(s)+1)
	copy(data, s)
	m.Globals = append(m.Globals, Global{Name: name, Data: data})
	return name
}

// InternString returns the name of an existing global holding s, adding
// one when there is none.
func (m *Module) InternString(s string) string {
	for _, g := range m.Globals {
		if len(g.Data) == len(s)+1 && string(g.Data[:len(s)]) == s {
			return g.Name
		}
	}
	return m.AddGlobalString(s)
}

// TruncateGlobals drops every global added after the first n.
func (m *Module) TruncateGlobals(n int) {
	if n < 0 || n >= len(m.Globals) {
		return
	}
	clear(m.Globals[n:])
	m.Globals = m.Globals[:n]
}

// Global returns the global named name or nil.
func (m *Module) Global(name string) *Global {
	for i := range m.Globals {
		if m.Globals[i].Name == name {
			return &m.Globals[i]
		}
	}
	return nil
}

// GlobalString returns the contents of a string global without the NUL.
func (m *Module) GlobalString(name string) (string, bool) {
	g := m.Global(name)
	if g == nil {
		return "", false
	}
	data := g.Data
	if n := len(data); n > 0 && data[n-1] == 0 {
		data = data[:n-1]
	}
	return string(data), true
}

// Annotate attaches an annotation to an existing function.
func (m *Module) Annotate(fn, kind string, value int) {
	m.Annotations = append(m.Annotations, Annotation{Func: fn, Kind: kind, Value: value})
}

// Kernels returns the names of functions annotated as kernels.
func (m *Module) Kernels() []string {
	var out []string
	for _, a := range m.Annotations {
		if a.Kind == AnnotationKernel && a.Value == 1 {
			out = append(out, a.Func)
		}
	}
	return out
}
