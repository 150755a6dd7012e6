package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"logcatd/internal/capture"
	"logcatd/internal/format"
	"logcatd/pkg/logcat"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// outputFlags are shared by the commands that print records.
type outputFlags struct {
	format string
	color  string
	level  string
	tags   []string
	pid    int32
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "threadtime", fmt.Sprintf("Output format (%s)", strings.Join(format.Names(), ", ")))
	cmd.Flags().StringVar(&o.color, "color", "auto", "Colorize output: auto, always or never")
	cmd.Flags().StringVarP(&o.level, "level", "l", "", "Minimum level to print (V, D, I, W, E, F)")
	cmd.Flags().StringSliceVarP(&o.tags, "tag", "t", nil, "Only print records with this tag (repeatable)")
	cmd.Flags().Int32Var(&o.pid, "pid", 0, "Only print records of this process id")
}

func (o *outputFlags) useColor(out io.Writer) (bool, error) {
	switch o.color {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		f, ok := out.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	}
	return false, fmt.Errorf("invalid --color value %q", o.color)
}

func (o *outputFlags) filter() (capture.Filter, error) {
	f := capture.Filter{Tags: o.tags, PID: o.pid}
	if o.level != "" {
		level, err := logcat.ParseLevel(o.level)
		if err != nil {
			return f, err
		}
		f.MinLevel = level
	}
	return f, nil
}

// options builds the capture options writing to out.
func (o *outputFlags) options(out io.Writer) (capture.Options, error) {
	color, err := o.useColor(out)
	if err != nil {
		return capture.Options{}, err
	}
	formatter, err := format.ByName(o.format, color)
	if err != nil {
		return capture.Options{}, err
	}
	filter, err := o.filter()
	if err != nil {
		return capture.Options{}, err
	}
	return capture.Options{
		Sink:   format.NewWriterSink(out, formatter),
		Filter: filter,
	}, nil
}

var (
	captureOutput outputFlags
	adbPath       string
	serial        string
	rawCommand    string
)

// logcatArgs builds the argument vector for the capture process. A raw
// command replaces adb entirely, e.g. "logcat -B" when running on the
// device itself.
func logcatArgs(extra []string) ([]string, error) {
	if rawCommand != "" {
		args := strings.Fields(rawCommand)
		if len(args) == 0 {
			return nil, errors.New("--command is empty")
		}
		return append(args, extra...), nil
	}

	adb := adbPath
	if adb == "" {
		adb = os.Getenv("LOGCATD_ADB")
	}
	if adb == "" {
		adb = "adb"
	}
	dev := serial
	if dev == "" {
		dev = os.Getenv("ANDROID_SERIAL")
	}

	args := []string{adb}
	if dev != "" {
		args = append(args, "-s", dev)
	}
	args = append(args, "logcat", "-B")
	return append(args, extra...), nil
}

var captureCmd = &cobra.Command{
	Use:   "capture [-- logcat args...]",
	Short: "Capture and decode a live logcat stream",
	Long: `Run "adb logcat -B" and print every decoded record.

Arguments after "--" are passed to logcat, for example:

  logcatd capture -- -b main,crash -d`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := captureOutput.options(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		opts.Args, err = logcatArgs(args)
		if err != nil {
			return err
		}

		stats, err := capture.Run(cmd.Context(), opts)
		if err != nil {
			// Interrupted by the user.
			if ctxErr := cmd.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil
			}
			return fmt.Errorf("capture failed: %w", err)
		}
		if stats.ExitCode != 0 {
			return fmt.Errorf("%s exited with code %d", opts.Args[0], stats.ExitCode)
		}
		return nil
	},
}

func init() {
	captureOutput.register(captureCmd)
	captureCmd.Flags().StringVar(&adbPath, "adb", "", "Path to adb (default: $LOGCATD_ADB or adb)")
	captureCmd.Flags().StringVarP(&serial, "serial", "s", "", "Device serial (default: $ANDROID_SERIAL)")
	captureCmd.Flags().StringVar(&rawCommand, "command", "", "Run this command instead of adb, e.g. \"logcat -B\"")

	rootCmd.AddCommand(captureCmd)
}
