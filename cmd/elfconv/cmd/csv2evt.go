package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/elfconv/pkg/convert"
	"github.com/ssargent/elfconv/pkg/ioabs"
)

var (
	csv2evtRenumber bool
	csv2evtAppend   bool
	csv2evtNoEvict  bool
)

// csv2evtCmd represents the csv2evt command (spec §4.I, §6).
var csv2evtCmd = &cobra.Command{
	Use:   "csv2evt [input-file] <output-file>",
	Short: "Encode CSV into an ELF event log",
	Long: `Encode CSV into an ELF event log.

Without -r, a row whose recordNumber does not exceed the previous
row's is warned and skipped. With -r (or -a, which implies -r), the
row is kept and the regression is only warned, since the log engine
always assigns the next sequential record number itself. With -a,
output-file must already exist; the CSV's metadata row is read and
discarded rather than applied to it.

Example:
  elfconv csv2evt app.csv app.evt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := "-"
		outputPath := args[0]
		if len(args) == 2 {
			inputPath = args[0]
			outputPath = args[1]
		}

		in, closeIn, err := openInput(inputPath)
		if err != nil {
			return err
		}
		defer closeIn()

		noEvict := csv2evtNoEvict
		if !cmd.Flags().Changed("no-evict") {
			noEvict = !configFrom(cmd).DefaultOverwrite
		}

		var medium *ioabs.FileMedium
		if csv2evtAppend {
			medium, err = ioabs.OpenFile(outputPath)
		} else {
			medium, err = ioabs.CreateFile(outputPath)
		}
		if err != nil {
			return fmt.Errorf("elfconv: open output: %w", err)
		}
		defer medium.Close()

		logger := loggerFrom(cmd)
		m := metricsFrom(cmd)

		opts := convert.CSVOptions{
			Renumber: csv2evtRenumber,
			Append:   csv2evtAppend,
			NoEvict:  noEvict,
			Logger:   logger,
		}

		stats, err := convert.CSVToEvt(in, medium, opts)
		if err != nil {
			return fmt.Errorf("elfconv: csv2evt: %w", err)
		}

		for _, w := range stats.Warnings {
			m.RecordWarned("csv2evt")
			logger.Warn("csv2evt row warning", "line", w.Line, "message", w.Message)
		}
		for i := 0; i < stats.RecordsWritten; i++ {
			m.RecordConverted("csv2evt")
		}
		for i := 0; i < stats.RecordsSkipped; i++ {
			m.RecordSkipped("csv2evt")
		}
		for i := 0; i < stats.Evictions; i++ {
			m.RecordEviction()
		}
		logger.Info("csv2evt complete",
			"records_written", stats.RecordsWritten,
			"records_skipped", stats.RecordsSkipped,
			"evictions", stats.Evictions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(csv2evtCmd)
	csv2evtCmd.Flags().BoolVarP(&csv2evtRenumber, "renumber", "r", false, "warn instead of skipping rows whose recordNumber regresses")
	csv2evtCmd.Flags().BoolVarP(&csv2evtAppend, "append", "a", false, "append to an existing output-file instead of creating a new one; implies -r")
	csv2evtCmd.Flags().BoolVarP(&csv2evtNoEvict, "no-evict", "w", false, "fail rows rather than evicting the oldest record to make room (default: on unless config default_overwrite is true)")
}
