// Package sampler implements the Run-Length Sample Emitter of spec §4.5 —
// the core of the core: it walks one section's relative-address range byte
// by byte, coalesces consecutive bytes whose symbolication result is equal
// by value into a single weighted sample, and resolves the coalesced run to
// a stack only once, at emission time.
package sampler

import (
	"github.com/pkg/errors"

	"j5.nz/binsizeprof/internal/binsizeerr"
	"j5.nz/binsizeprof/internal/objfile"
	"j5.nz/binsizeprof/internal/profile"
	"j5.nz/binsizeprof/internal/resolve"
	"j5.nz/binsizeprof/internal/stackcache"
	"j5.nz/binsizeprof/internal/symbolicate"
)

// unknownPathLabel and unknownBytesLabel are the two fallback label frames
// of spec §7: a byte with no AddressInfo falls under "<unknown bytes>"
// nested under "<unknown path>".
const (
	unknownPathLabel  = "<unknown path>"
	unknownBytesLabel = "<unknown bytes>"
)

// Context bundles everything a section needs beyond its own Section record
// to emit samples: the profile sink, the symbol map, the member's stack
// (root, or root→member_label for a fat archive slice), the member's
// identity for symbolic frame disambiguation, and the file-offset-to-
// timestamp bias for this member.
type Context struct {
	Prof            *profile.Profile
	SymbolMap       symbolicate.SymbolMap
	MemberStack     profile.StackHandle
	Binary          string
	BaseAddr        uint64
	TimestampOffset uint64
}

// EmitSection emits the sample(s) for one section, per spec §4.5.
func EmitSection(ctx Context, sect objfile.Section) error {
	sectionStack := ctx.Prof.InternStack(ctx.MemberStack, ctx.Prof.InternLabelFrame(sect.Name))

	if sect.Kind != objfile.KindText {
		stack := ctx.Prof.InternStack(sectionStack, ctx.Prof.InternLabelFrame(sect.Kind.String()))
		ctx.Prof.AddSample(ctx.TimestampOffset+sect.FileOffset, stack, sect.Size)
		return nil
	}

	relStart, relEnd := sect.RelativeRange(ctx.BaseAddr)
	pathCache := stackcache.New(ctx.Prof, sectionStack)
	unknownPathStack := ctx.Prof.InternStack(sectionStack, ctx.Prof.InternLabelFrame(unknownPathLabel))
	in := resolve.Inputs{
		Binary:           ctx.Binary,
		PathCache:        pathCache,
		SectionStack:     sectionStack,
		UnknownPathStack: unknownPathStack,
		UnknownBytes:     ctx.Prof.InternLabelFrame(unknownBytesLabel),
	}

	var (
		have          bool
		pendingInfo   symbolicate.AddressInfo
		pendingFound  bool
		pendingBytes  uint64
		pendingOffset uint64
		fileOffset    = sect.FileOffset
	)

	emit := func() {
		stack := resolve.Resolve(ctx.Prof, in, pendingInfo, pendingFound)
		ctx.Prof.AddSample(ctx.TimestampOffset+pendingOffset, stack, pendingBytes)
	}

	for addr := relStart; addr < relEnd; addr++ {
		info, found := ctx.SymbolMap.Lookup(uint32(addr))
		switch {
		case !have:
			pendingInfo, pendingFound = info, found
			pendingBytes = 1
			pendingOffset = fileOffset
			have = true
		case found == pendingFound && info.Equal(pendingInfo):
			pendingBytes++
		default:
			emit()
			pendingOffset = fileOffset
			pendingInfo, pendingFound = info, found
			pendingBytes = 1
		}
		fileOffset++
	}
	if have {
		emit()
	}

	if fileOffset != sect.FileOffset+sect.Size {
		return errors.Wrapf(binsizeerr.ErrOffsetInvariant,
			"section %q: scanned to offset %d, expected %d",
			sect.Name, fileOffset, sect.FileOffset+sect.Size)
	}
	return nil
}
