// Package profile is the Profile Sink of spec §4.7: a thin, content-
// addressed adapter over a Firefox-Profiler-shaped processed profile, where
// strings, frames, stacks and samples are all interned by value so that
// equal construction sequences always return the same handle (spec §3's
// "Stack identity" invariant).
//
// The interning scheme (parallel slice + map[key]handle, handle = index)
// is the same content-addressing pattern a pprof producer's buildProfile
// uses for its Location/Function caches when building a
// github.com/google/pprof/profile.Profile (see internal/profile/pprof.go and
// DESIGN.md); this package targets a JSON
// wire format rather than pprof's gzipped protobuf, because the spec
// requires a byte-timeline JSON document a flamegraph viewer can load
// directly.
package profile

import (
	"encoding/json"
	"io"
)

// StringHandle, FrameHandle and StackHandle are indices into a Profile's
// interning tables. NoStack is the sentinel "no parent" stack handle — the
// root of the stack tree.
type (
	StringHandle int32
	FrameHandle  int32
	StackHandle  int32
)

const NoStack StackHandle = -1

// LabelFrame describes a structural frame carrying only an interned label
// (root, member, section, section-kind, path prefix, "<unknown bytes>",
// "<unknown path>").
type LabelFrame struct {
	Name string
}

// SymbolicFrame describes a frame for a resolved code address: the owning
// binary (member), the symbol's relative address, its name, its source
// location, and its inline depth (0 at the outer on-disk function, per spec
// §4.4/§9). Identity is by the symbol's address, not the querying byte's
// address, so that every byte inside one function shares one frame.
type SymbolicFrame struct {
	Binary        string
	SymbolAddress uint64
	SymbolName    string
	FilePath      string
	Line          uint32
	InlineDepth   int
}

type frameKind byte

const (
	frameKindLabel frameKind = iota
	frameKindSymbolic
)

type frameKey struct {
	kind          frameKind
	name          string
	binary        string
	symbolAddress uint64
	filePath      string
	line          uint32
	inlineDepth   int
}

type frameRow struct {
	kind frameKey
	name StringHandle
	file StringHandle
}

type stackKey struct {
	parent StackHandle
	frame  FrameHandle
}

type stackRow struct {
	parent StackHandle
	frame  FrameHandle
}

type sampleRow struct {
	timestamp uint64
	stack     StackHandle
	weight    uint64
}

// Profile is the append-only, single-thread Profile Sink. It is owned
// exclusively by one control-flow thread (spec §5) until WriteJSON is
// called.
type Profile struct {
	threadName string

	strings    []string
	stringByID map[string]StringHandle

	frames    []frameRow
	frameByID map[frameKey]FrameHandle

	stacks    []stackRow
	stackByID map[stackKey]StackHandle

	samples []sampleRow
}

// New creates an empty Profile Sink for one thread (this engine only ever
// models a single "thread": the binary being profiled).
func New(threadName string) *Profile {
	return &Profile{
		threadName: threadName,
		stringByID: make(map[string]StringHandle),
		frameByID:  make(map[frameKey]FrameHandle),
		stackByID:  make(map[stackKey]StackHandle),
	}
}

// InternString interns a string, returning the same handle for equal
// strings.
func (p *Profile) InternString(s string) StringHandle {
	if h, ok := p.stringByID[s]; ok {
		return h
	}
	h := StringHandle(len(p.strings))
	p.strings = append(p.strings, s)
	p.stringByID[s] = h
	return h
}

// InternLabelFrame interns a label frame, returning the same handle for an
// equal label.
func (p *Profile) InternLabelFrame(name string) FrameHandle {
	key := frameKey{kind: frameKindLabel, name: name}
	if h, ok := p.frameByID[key]; ok {
		return h
	}
	nameH := p.InternString(name)
	h := FrameHandle(len(p.frames))
	p.frames = append(p.frames, frameRow{kind: key, name: nameH})
	p.frameByID[key] = h
	return h
}

// InternSymbolicFrame interns a symbolic frame, returning the same handle
// for two frame descriptors equal by (address, symbol, location,
// inline_depth) — per spec §4.4's tie-break rule, siblings that share a
// function name but differ in source location remain distinct.
func (p *Profile) InternSymbolicFrame(f SymbolicFrame) FrameHandle {
	key := frameKey{
		kind:          frameKindSymbolic,
		name:          f.SymbolName,
		binary:        f.Binary,
		symbolAddress: f.SymbolAddress,
		filePath:      f.FilePath,
		line:          f.Line,
		inlineDepth:   f.InlineDepth,
	}
	if h, ok := p.frameByID[key]; ok {
		return h
	}
	nameH := p.InternString(f.SymbolName)
	fileH := p.InternString(f.FilePath)
	h := FrameHandle(len(p.frames))
	p.frames = append(p.frames, frameRow{kind: key, name: nameH, file: fileH})
	p.frameByID[key] = h
	return h
}

// InternStack interns a (parent, frame) pair, returning the same handle for
// equal construction sequences (spec §3 invariant iv: "stacks with
// identical frame sequences are reference-equal").
func (p *Profile) InternStack(parent StackHandle, frame FrameHandle) StackHandle {
	key := stackKey{parent: parent, frame: frame}
	if h, ok := p.stackByID[key]; ok {
		return h
	}
	h := StackHandle(len(p.stacks))
	p.stacks = append(p.stacks, stackRow{parent: parent, frame: frame})
	p.stackByID[key] = h
	return h
}

// AddSample appends a sample. Samples must be appended in ascending
// timestamp order (spec §5's ordering guarantee); this is the caller's
// (internal/driver's) responsibility, not enforced here, since enforcing it
// here would require buffering the whole profile instead of streaming it.
func (p *Profile) AddSample(timestamp uint64, stack StackHandle, weight uint64) {
	p.samples = append(p.samples, sampleRow{timestamp: timestamp, stack: stack, weight: weight})
}

// TotalWeight returns the sum of all sample weights, for verifying the byte-
// conservation property of spec §8.
func (p *Profile) TotalWeight() uint64 {
	var total uint64
	for _, s := range p.samples {
		total += s.weight
	}
	return total
}

// SampleCount returns the number of samples recorded so far.
func (p *Profile) SampleCount() int { return len(p.samples) }

// wireProfile is the Firefox-Profiler-shaped processed profile document.
// Field names follow the processed-profile format's thread table naming;
// bit-exact compatibility with any one viewer version is not claimed (spec
// §6).
type wireProfile struct {
	Meta    wireMeta     `json:"meta"`
	Threads []wireThread `json:"threads"`
}

type wireMeta struct {
	Product        string `json:"product"`
	Version        int    `json:"version"`
	WeightType     string `json:"weightType"`
	IntervalUnit   string `json:"intervalUnit"`
	PreprocessedBy string `json:"preprocessedBy,omitempty"`
}

type wireThread struct {
	Name        string          `json:"name"`
	StringTable []string        `json:"stringTable"`
	FrameTable  wireFrameTable  `json:"frameTable"`
	StackTable  wireStackTable  `json:"stackTable"`
	Samples     wireSampleTable `json:"samples"`
}

// wireFrameTable is a struct-of-arrays table, one column per field, indexed
// by FrameHandle — the processed-profile format's table convention.
type wireFrameTable struct {
	Name          []StringHandle `json:"name"`
	SymbolAddress []uint64       `json:"symbolAddress"`
	Line          []uint32       `json:"line"`
	File          []StringHandle `json:"file"`
	InlineDepth   []int          `json:"inlineDepth"`
	IsLabel       []bool         `json:"isLabel"`
}

type wireStackTable struct {
	Frame  []FrameHandle `json:"frame"`
	Prefix []StackHandle `json:"prefix"` // -1 (NoStack) for a root entry
}

type wireSampleTable struct {
	Stack  []StackHandle `json:"stack"`
	Time   []uint64      `json:"time"`
	Weight []uint64      `json:"weight"`
}

// WriteJSON serializes the profile to w in the processed-profile JSON shape.
func (p *Profile) WriteJSON(w io.Writer) error {
	wp := wireProfile{
		Meta: wireMeta{
			Product:      "binsizeprof",
			Version:      1,
			WeightType:   "bytes",
			IntervalUnit: "bytes",
		},
		Threads: []wireThread{p.wireThread()},
	}
	enc := json.NewEncoder(w)
	return enc.Encode(wp)
}

func (p *Profile) wireThread() wireThread {
	ft := wireFrameTable{
		Name:          make([]StringHandle, len(p.frames)),
		SymbolAddress: make([]uint64, len(p.frames)),
		Line:          make([]uint32, len(p.frames)),
		File:          make([]StringHandle, len(p.frames)),
		InlineDepth:   make([]int, len(p.frames)),
		IsLabel:       make([]bool, len(p.frames)),
	}
	for i, f := range p.frames {
		ft.Name[i] = f.name
		ft.File[i] = f.file
		ft.IsLabel[i] = f.kind.kind == frameKindLabel
		if f.kind.kind == frameKindSymbolic {
			ft.SymbolAddress[i] = f.kind.symbolAddress
			ft.Line[i] = f.kind.line
			ft.InlineDepth[i] = f.kind.inlineDepth
		}
	}

	st := wireStackTable{
		Frame:  make([]FrameHandle, len(p.stacks)),
		Prefix: make([]StackHandle, len(p.stacks)),
	}
	for i, s := range p.stacks {
		st.Frame[i] = s.frame
		st.Prefix[i] = s.parent
	}

	samples := wireSampleTable{
		Stack:  make([]StackHandle, len(p.samples)),
		Time:   make([]uint64, len(p.samples)),
		Weight: make([]uint64, len(p.samples)),
	}
	for i, s := range p.samples {
		samples.Stack[i] = s.stack
		samples.Time[i] = s.timestamp
		samples.Weight[i] = s.weight
	}

	return wireThread{
		Name:        p.threadName,
		StringTable: p.strings,
		FrameTable:  ft,
		StackTable:  st,
		Samples:     samples,
	}
}
