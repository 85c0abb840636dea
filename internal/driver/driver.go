// Package driver implements the Container Driver of spec §4.6, the
// top-level orchestration: single binary vs. fat archive, per-member and
// inter-section padding, and the final zero-weight boundary sample. It owns
// the overall file-offset-to-timestamp mapping: a member's file-local
// offsets become container-absolute timestamps via its
// member_start_file_offset bias.
package driver

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"j5.nz/binsizeprof/internal/binsizeerr"
	"j5.nz/binsizeprof/internal/objfile"
	"j5.nz/binsizeprof/internal/profile"
	"j5.nz/binsizeprof/internal/sampler"
	"j5.nz/binsizeprof/internal/symbolicate"
)

const rootLabel = "root"

// Run profiles the binary at path, consulting svc for identity and
// symbolication, and returns the finished Profile Sink plus the resolved
// LibraryInfo. The returned profile is never partial: on any error the
// caller must discard it, per the "no output on cancellation" rule.
func Run(log zerolog.Logger, path, disambiguator string, svc symbolicate.Service) (*profile.Profile, symbolicate.LibraryInfo, error) {
	libInfo, err := svc.LibraryInfoForBinaryAtPath(path, disambiguator)
	if err != nil {
		return nil, symbolicate.LibraryInfo{}, errors.Wrap(err, "driver: library info")
	}
	if missing := libInfo.Missing(); len(missing) > 0 {
		return nil, symbolicate.LibraryInfo{}, errors.Wrapf(binsizeerr.ErrMissingLibraryInfo,
			"%s: missing fields %v", path, missing)
	}
	log.Debug().Str("path", path).Str("debug_id", libInfo.DebugID).Msg("resolved library info")

	file, err := objfile.Open(path)
	if err != nil {
		return nil, symbolicate.LibraryInfo{}, errors.Wrap(err, "driver: open container")
	}

	symMap, err := svc.LoadSymbolMapForBinaryAtPath(path, disambiguator)
	if err != nil {
		return nil, symbolicate.LibraryInfo{}, errors.Wrap(err, "driver: load symbol map")
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, symbolicate.LibraryInfo{}, errors.Wrap(err, "driver: stat")
	}
	fileLength := uint64(stat.Size())

	prof := profile.New(libInfo.Name)
	root := prof.InternStack(profile.NoStack, prof.InternLabelFrame(rootLabel))

	if len(file.Members) == 1 && !file.Fat {
		// Single-binary flow: the one member spans the whole file, so no
		// member-label frame or inter-member padding applies. A fat
		// Mach-O archive takes the runFatContainer path below even with a
		// single architecture slice, since that slice's own FileOffset is
		// past the fat header and fat_arch table rather than 0.
		if err := runMember(log, prof, root, file.Members[0], symMap, 0); err != nil {
			return nil, symbolicate.LibraryInfo{}, err
		}
		prof.AddSample(fileLength, root, 0)
		return prof, libInfo, nil
	}

	if err := runFatContainer(log, prof, root, file.Members, symMap, fileLength); err != nil {
		return nil, symbolicate.LibraryInfo{}, err
	}
	prof.AddSample(fileLength, root, 0)
	return prof, libInfo, nil
}

// runFatContainer enforces member ordering/non-overlap, emits inter-member
// padding at the root stack, and invokes the single-binary flow for each
// member under a root→member_label stack.
func runFatContainer(log zerolog.Logger, prof *profile.Profile, root profile.StackHandle, members []objfile.Member, symMap symbolicate.SymbolMap, fileLength uint64) error {
	var prevEnd uint64
	for i, m := range members {
		if i > 0 && m.FileOffset < prevEnd {
			return errors.Wrapf(binsizeerr.ErrOverlappingSections,
				"member %d (%s) starts at %d, before previous member ends at %d",
				i, m.ArchName, m.FileOffset, prevEnd)
		}
		if m.FileOffset > prevEnd {
			prof.AddSample(prevEnd, root, m.FileOffset-prevEnd)
		}

		memberLabel := m.ArchName
		if m.Disambiguator != "" {
			memberLabel = memberLabel + "/" + m.Disambiguator
		}
		memberStack := prof.InternStack(root, prof.InternLabelFrame(memberLabel))

		if err := runMember(log, prof, memberStack, m, symMap, m.FileOffset); err != nil {
			return err
		}
		if i == len(members)-1 && m.FileOffset+m.Size > fileLength {
			return errors.Wrapf(binsizeerr.ErrTruncatedMember,
				"member %d (%s) claims to end at %d, file is only %d bytes",
				i, m.ArchName, m.FileOffset+m.Size, fileLength)
		}
		prevEnd = m.FileOffset + m.Size
	}

	if fileLength > prevEnd {
		prof.AddSample(prevEnd, root, fileLength-prevEnd)
	}
	return nil
}

// runMember runs the single-binary flow for one member: emits each
// section's sample(s) via the Run-Length Sample Emitter, with inter-section
// and trailing padding attributed to the member's own stack (memberStack is
// root itself for a plain, non-fat binary).
func runMember(log zerolog.Logger, prof *profile.Profile, memberStack profile.StackHandle, m objfile.Member, symMap symbolicate.SymbolMap, timestampOffset uint64) error {
	ctx := sampler.Context{
		Prof:            prof,
		SymbolMap:       symMap,
		MemberStack:     memberStack,
		Binary:          m.ArchName + "/" + m.Disambiguator,
		BaseAddr:        m.BaseAddr,
		TimestampOffset: timestampOffset,
	}

	if len(m.Sections) == 0 {
		prof.AddSample(timestampOffset, memberStack, m.Size)
		return nil
	}

	var prevEnd uint64
	for _, sect := range m.Sections {
		if sect.FileOffset > prevEnd {
			prof.AddSample(timestampOffset+prevEnd, memberStack, sect.FileOffset-prevEnd)
		}
		if err := sampler.EmitSection(ctx, sect); err != nil {
			return errors.Wrapf(err, "member %s", m.ArchName)
		}
		prevEnd = sect.FileOffset + sect.Size
	}

	if m.Size > prevEnd {
		prof.AddSample(timestampOffset+prevEnd, memberStack, m.Size-prevEnd)
	}

	log.Debug().Str("arch", m.ArchName).Int("sections", len(m.Sections)).Msg("member profiled")
	return nil
}
