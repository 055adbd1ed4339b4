package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/elfconv/pkg/evtlog"
	"github.com/ssargent/elfconv/pkg/ioabs"
)

// inspectCmd represents the inspect command, a read-only diagnostic
// over an ELF file's header (SPEC_FULL.md Supplemented Features).
// Grounded on the teacher's "freyja stat"-style read-only subcommands
// that print store metadata without mutating it.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print an ELF event log's header without modifying it",
	Long: `Print an ELF event log's header fields, flags, and free
space without modifying it. Unlike evt2csv/csv2evt, inspect
still reports on a file whose header fails validation.

Example:
  elfconv inspect app.evt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		medium, err := ioabs.OpenFile(args[0])
		if err != nil {
			return fmt.Errorf("elfconv: open %q: %w", args[0], err)
		}
		defer medium.Close()

		h, headerErrs, err := evtlog.ProbeHeader(medium)
		if err != nil {
			return fmt.Errorf("elfconv: inspect: %w", err)
		}
		sentinel, err := evtlog.ProbeSentinel(medium, h.EndOffset)
		if err != nil {
			return fmt.Errorf("elfconv: inspect: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "file:                  %s\n", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "header validation:     %s\n", headerErrs)
		fmt.Fprintf(cmd.OutOrStdout(), "signature:             %#x\n", h.Signature)
		fmt.Fprintf(cmd.OutOrStdout(), "version:               %d.%d\n", h.MajorVersion, h.MinorVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "max size:              %d bytes\n", h.MaxSize)
		fmt.Fprintf(cmd.OutOrStdout(), "start offset:          %d\n", h.StartOffset)
		fmt.Fprintf(cmd.OutOrStdout(), "end offset:            %d\n", h.EndOffset)
		fmt.Fprintf(cmd.OutOrStdout(), "current record number: %d\n", h.CurrentRecordNumber)
		fmt.Fprintf(cmd.OutOrStdout(), "oldest record number:  %d\n", h.OldestRecordNumber)
		fmt.Fprintf(cmd.OutOrStdout(), "retention:             %d\n", h.Retention)
		fmt.Fprintf(cmd.OutOrStdout(), "free space:            %d bytes\n", freeSpace(h))
		fmt.Fprintf(cmd.OutOrStdout(), "flags:                 %s\n", flagNames(h.Flags))
		fmt.Fprintf(cmd.OutOrStdout(), "sentinel valid:        %t\n", sentinel.Valid)
		fmt.Fprintf(cmd.OutOrStdout(), "sentinel magic:        %#x %#x %#x %#x\n",
			sentinel.Magic1, sentinel.Magic2, sentinel.Magic3, sentinel.Magic4)
		return nil
	},
}

// freeSpace estimates the contiguous room left before the ring must
// evict to accept another record, mirroring the wrap/no-wrap
// arithmetic evtlog.AppendRecord uses internally.
func freeSpace(h evtlog.LogHeader) uint32 {
	if h.StartOffset <= h.EndOffset {
		return h.MaxSize - h.EndOffset
	}
	return h.StartOffset - h.EndOffset
}

func flagNames(flags uint32) string {
	if flags == 0 {
		return "none"
	}
	out := ""
	add := func(name string) {
		if out != "" {
			out += ","
		}
		out += name
	}
	if flags&evtlog.FlagDirty != 0 {
		add("DIRTY")
	}
	if flags&evtlog.FlagWrap != 0 {
		add("WRAP")
	}
	if flags&evtlog.FlagLogFullWritten != 0 {
		add("LOGFULL_WRITTEN")
	}
	if flags&evtlog.FlagArchiveSet != 0 {
		add("ARCHIVE_SET")
	}
	return out
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
