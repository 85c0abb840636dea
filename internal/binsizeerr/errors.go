// Package binsizeerr defines the sentinel error values for the fatal
// conditions enumerated in the byte-attribution engine's error handling
// design. Callers check these with errors.Is rather than matching message
// text.
package binsizeerr

import "errors"

var (
	// ErrMalformedContainer means the input file could not be recognized or
	// was truncated before a structurally valid header could be read.
	ErrMalformedContainer = errors.New("binsizeprof: malformed container")

	// ErrOverlappingSections means two sections (or two fat-archive members)
	// overlap on disk, indicating a corrupt or unexpected container.
	ErrOverlappingSections = errors.New("binsizeprof: overlapping sections")

	// ErrTruncatedMember means a fat-archive member's declared extent runs
	// past the end of the container file.
	ErrTruncatedMember = errors.New("binsizeprof: truncated trailing member")

	// ErrMissingLibraryInfo means the symbolication service returned a
	// LibraryInfo with one or more required identity fields empty.
	ErrMissingLibraryInfo = errors.New("binsizeprof: missing required library info field")

	// ErrOffsetInvariant means the run-length emitter's post-section file
	// offset did not land on section.FileOffset+section.Size, indicating a
	// logic bug in the coalescing loop.
	ErrOffsetInvariant = errors.New("binsizeprof: section offset invariant violated")
)
