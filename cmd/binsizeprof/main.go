// Command binsizeprof profiles a binary's on-disk byte usage, attributing
// every file offset to the source path and function (including inlining)
// responsible for it, and writes a processed-profile JSON document a
// flamegraph viewer can load.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"j5.nz/binsizeprof/internal/binsizeerr"
	"j5.nz/binsizeprof/internal/driver"
	"j5.nz/binsizeprof/internal/symbolicate"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("binsizeprof", flag.ContinueOnError)
	output := fs.String("o", "output.json", "path to write the processed profile JSON to")
	pprofPath := fs.String("pprof", "", "also write a github.com/google/pprof/profile.Profile to this path")
	disambiguator := fs.String("disambiguator", "", "disambiguator passed to the symbolication service for multi-arch containers sharing one on-disk path")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-o output.json] [-pprof path] [-disambiguator id] [-v] <binary>\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	binaryPath := fs.Arg(0)

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	svc := symbolicate.NewDWARFService()

	prof, libInfo, err := driver.Run(log, binaryPath, *disambiguator, svc)
	if err != nil {
		log.Error().Err(err).Str("path", binaryPath).Msg("profiling failed")
		fmt.Fprintf(os.Stderr, "binsizeprof: %s\n", describeErr(err))
		return 1
	}
	log.Info().
		Str("binary", libInfo.Name).
		Str("debug_id", libInfo.DebugID).
		Int("samples", prof.SampleCount()).
		Uint64("total_bytes", prof.TotalWeight()).
		Msg("profile built")

	out, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "binsizeprof: creating %s: %v\n", *output, err)
		return 1
	}
	defer out.Close()
	if err := prof.WriteJSON(out); err != nil {
		fmt.Fprintf(os.Stderr, "binsizeprof: writing %s: %v\n", *output, err)
		return 1
	}

	if *pprofPath != "" {
		pprofOut, err := os.Create(*pprofPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "binsizeprof: creating %s: %v\n", *pprofPath, err)
			return 1
		}
		defer pprofOut.Close()
		if err := prof.WritePprof(pprofOut); err != nil {
			fmt.Fprintf(os.Stderr, "binsizeprof: writing %s: %v\n", *pprofPath, err)
			return 1
		}
	}

	return 0
}

// describeErr maps the sentinel errors of §7 to a short, user-facing
// message, falling back to the wrapped error's own text.
func describeErr(err error) string {
	switch {
	case errors.Is(err, binsizeerr.ErrMalformedContainer):
		return "malformed or unrecognised container: " + err.Error()
	case errors.Is(err, binsizeerr.ErrOverlappingSections):
		return "corrupt container (overlapping sections or members): " + err.Error()
	case errors.Is(err, binsizeerr.ErrTruncatedMember):
		return "truncated trailing member: " + err.Error()
	case errors.Is(err, binsizeerr.ErrMissingLibraryInfo):
		return "symbolication service returned incomplete library info: " + err.Error()
	case errors.Is(err, binsizeerr.ErrOffsetInvariant):
		return "internal invariant violation: " + err.Error()
	default:
		return err.Error()
	}
}
