package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/elfconv/pkg/convert"
	"github.com/ssargent/elfconv/pkg/ioabs"
)

var (
	evt2csvAppend     bool
	evt2csvFromRecord uint32
)

// evt2csvCmd represents the evt2csv command (spec §4.I, §6).
var evt2csvCmd = &cobra.Command{
	Use:   "evt2csv <input-file> [output-file]",
	Short: "Decode an ELF event log to CSV",
	Long: `Decode an ELF event log to CSV.

Example:
  elfconv evt2csv app.evt app.csv`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath := "-"
		if len(args) == 2 {
			outputPath = args[1]
		}

		medium, err := ioabs.OpenFile(args[0])
		if err != nil {
			return fmt.Errorf("elfconv: open input: %w", err)
		}
		defer medium.Close()

		out, closeOut, err := openOutput(outputPath, evt2csvAppend)
		if err != nil {
			return err
		}
		defer closeOut()

		stats, err := convert.EvtToCSV(medium, out, evt2csvFromRecord)
		if err != nil {
			return fmt.Errorf("elfconv: evt2csv: %w", err)
		}

		logger := loggerFrom(cmd)
		m := metricsFrom(cmd)
		for _, w := range stats.Warnings {
			m.RecordWarned("evt2csv")
			logger.Warn("evt2csv row warning", "line", w.Line, "message", w.Message)
		}
		for i := 0; i < stats.RecordsWritten; i++ {
			m.RecordConverted("evt2csv")
		}
		logger.Info("evt2csv complete", "records_written", stats.RecordsWritten)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evt2csvCmd)
	evt2csvCmd.Flags().BoolVarP(&evt2csvAppend, "append", "a", false, "append to output-file instead of overwriting it")
	evt2csvCmd.Flags().Uint32Var(&evt2csvFromRecord, "from-record", 0, "skip directly to record number N using the in-memory record index")
}
