package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imishinist/markercheck/internal/check"
	"github.com/imishinist/markercheck/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse <log-file>...",
	Short: "Print the marker observations found in log files",
	Long: `Parse log files without a registry and print every observation as
"<file>:<line>  <microseconds>  <marker>". Useful for checking that a log is in
the "<digits>[us]: <marker>" format before running a check.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("show-skipped", false, "Also print lines that are not marker lines")
}

func runParse(cmd *cobra.Command, args []string) error {
	showSkipped, _ := cmd.Flags().GetBool("show-skipped")
	out := cmd.OutOrStdout()

	var observations, unmatched, malformed int
	for _, path := range args {
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.ErrOrStderr(), "File not found: %s\n", path)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Cannot open %s: %v\n", path, err)
			}
			continue
		}

		err = check.ReadLines(cmd.Context(), file, func(num int, line string) {
			obs, err := parser.ParseLine(line)
			switch {
			case err == nil:
				observations++
				fmt.Fprintf(out, "%s:%d\t%d\t%s\n", path, num, obs.Micros, obs.Marker)
			case errors.Is(err, parser.ErrMalformedTimestamp):
				malformed++
				fmt.Fprintf(out, "%s:%d\tmalformed timestamp\t%q\n", path, num, line)
			default:
				unmatched++
				if showSkipped {
					fmt.Fprintf(out, "%s:%d\tskipped\t%q\n", path, num, line)
				}
			}
		})
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	fmt.Fprintf(out, "%d observations, %d malformed timestamps, %d other lines\n", observations, malformed, unmatched)
	return nil
}
