// Package resolve implements the Address-to-Stack Resolver of spec §4.4: it
// turns one relative address's (optional) symbolication result into a fully
// built Stack, growing outermost-to-innermost from a caller-supplied parent.
package resolve

import (
	"fmt"

	"j5.nz/binsizeprof/internal/profile"
	"j5.nz/binsizeprof/internal/stackcache"
	"j5.nz/binsizeprof/internal/symbolicate"
)

// Inputs bundles the parent stacks and frames a Resolver needs beyond the
// per-address AddressInfo itself: the per-section path-prefix cache and
// section stack, the shared unknown-path stack, and the shared
// "<unknown bytes>" label frame.
type Inputs struct {
	Binary           string // member identity, disambiguates same-address symbols across fat members
	PathCache        *stackcache.Cache
	SectionStack     profile.StackHandle
	UnknownPathStack profile.StackHandle
	UnknownBytes     profile.FrameHandle
}

// Resolve builds the stack for one relative address given its (possibly
// absent) AddressInfo, per spec §4.4's four-step algorithm.
func Resolve(prof *profile.Profile, in Inputs, info symbolicate.AddressInfo, found bool) profile.StackHandle {
	var outerPath string
	if found && len(info.Frames) > 0 {
		outerPath = info.Frames[len(info.Frames)-1].FilePath
	}

	pathStack := in.UnknownPathStack
	if outerPath != "" {
		pathStack = in.PathCache.StackFor(outerPath)
	}

	if !found {
		return prof.InternStack(pathStack, in.UnknownBytes)
	}

	if len(info.Frames) == 0 {
		name := info.Symbol.Name
		if name == "" {
			name = fmt.Sprintf("unnamed_%x", info.Symbol.Address)
		}
		frame := prof.InternSymbolicFrame(profile.SymbolicFrame{
			Binary:        in.Binary,
			SymbolAddress: info.Symbol.Address,
			SymbolName:    name,
			InlineDepth:   0,
		})
		return prof.InternStack(pathStack, frame)
	}

	n := len(info.Frames)
	stack := pathStack
	for i := n - 1; i >= 0; i-- {
		f := info.Frames[i]
		name := f.Function
		if name == "" {
			name = fmt.Sprintf("unnamed_%x", info.Symbol.Address)
		}
		depth := n - 1 - i
		frame := prof.InternSymbolicFrame(profile.SymbolicFrame{
			Binary:        in.Binary,
			SymbolAddress: info.Symbol.Address,
			SymbolName:    name,
			FilePath:      f.FilePath,
			Line:          f.LineNumber,
			InlineDepth:   depth,
		})
		stack = prof.InternStack(stack, frame)
	}
	return stack
}
