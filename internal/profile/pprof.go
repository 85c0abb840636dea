package profile

import (
	"io"

	"github.com/google/pprof/profile"
)

// WritePprof serializes the same data WriteJSON does into a
// github.com/google/pprof/profile.Profile and writes it gzip-encoded to w via
// profile.Write. This is the optional secondary "-pprof" export: most
// viewers want the processed-profile JSON, but pprof's own tooling (top,
// list, web) is also a legitimate way to explore a byte-attribution
// profile, and building one costs little once the frame/stack tables exist.
//
// pprof has no first-class notion of a label frame, an inline-frame chain,
// or a byte-offset "timeline" sample axis, so the mapping is lossy in one
// direction: every profile.Function carries a single best-effort name
// (SymbolicFrame.SymbolName, or the label frame's Name), every frame,
// inline frames included, becomes its own single-Line profile.Location
// (pprof's multi-Line-per-Location inlining form is not used), and the
// sample "time" axis has no pprof equivalent and is
// dropped; only the weight (bytes) value type is preserved.
func (p *Profile) WritePprof(w io.Writer) error {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "bytes", Unit: "bytes"}},
		PeriodType: &profile.ValueType{Type: "bytes", Unit: "bytes"},
	}

	funcByFrame := make(map[FrameHandle]*profile.Function)
	locByFrame := make(map[FrameHandle]*profile.Location)
	nextID := uint64(1)

	locationFor := func(fh FrameHandle) *profile.Location {
		if loc, ok := locByFrame[fh]; ok {
			return loc
		}
		row := p.frames[fh]

		fn, ok := funcByFrame[fh]
		if !ok {
			name := p.strings[row.name]
			filename := ""
			if row.kind.kind == frameKindSymbolic {
				filename = p.strings[row.file]
			}
			fn = &profile.Function{ID: nextID, Name: name, Filename: filename}
			nextID++
			funcByFrame[fh] = fn
			prof.Function = append(prof.Function, fn)
		}

		line := profile.Line{Function: fn}
		if row.kind.kind == frameKindSymbolic {
			line.Line = int64(row.kind.line)
		}
		loc := &profile.Location{ID: nextID, Line: []profile.Line{line}}
		nextID++
		locByFrame[fh] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	locsForStack := func(sh StackHandle) []*profile.Location {
		var locs []*profile.Location
		for sh != NoStack {
			row := p.stacks[sh]
			locs = append(locs, locationFor(row.frame))
			sh = row.parent
		}
		return locs
	}

	stackLocs := make(map[StackHandle][]*profile.Location, len(p.stacks))
	for _, s := range p.samples {
		locs, ok := stackLocs[s.stack]
		if !ok {
			locs = locsForStack(s.stack)
			stackLocs[s.stack] = locs
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{int64(s.weight)},
		})
	}

	return prof.Write(w)
}
