package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"logcatd/internal/capture"
	"logcatd/pkg/logcat"

	"github.com/spf13/cobra"
)

var (
	decodeOutput  outputFlags
	decodeHeaders bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a saved binary logcat dump",
	Long: `Decode a file written by "adb logcat -B". Reads stdin when no file
or "-" is given.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open dump: %w", err)
			}
			defer func() { _ = f.Close() }()
			in = f
		}

		if decodeHeaders {
			return printHeaders(cmd.OutOrStdout(), in)
		}

		opts, err := decodeOutput.options(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		stats, err := capture.Replay(cmd.Context(), in, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d records, %d printed\n", stats.Decoded, stats.Written)
		return nil
	},
}

// printHeaders prints the raw header fields of every entry.
func printHeaders(out io.Writer, in io.Reader) error {
	w := bufio.NewWriter(out)
	defer func() { _ = w.Flush() }()

	fmt.Fprintln(w, "rev\thdr\tlen\tpid\ttid\tsec\tnsec\tuid\tlid\ttag")
	dec := logcat.NewDecoder(bufio.NewReader(in))
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		h := dec.Header()
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			h.Revision(), h.HeaderSize, h.PayloadLen, h.PID, h.TID, h.Sec, h.Nsec, h.UID, h.LogID, rec.Tag)
	}
}

func init() {
	decodeOutput.register(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeHeaders, "headers", false, "Print raw header fields instead of records")

	rootCmd.AddCommand(decodeCmd)
}
