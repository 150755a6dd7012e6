// Package capture wires the process runner to the record decoder: it runs a
// logcat command in binary mode, decodes its stdout and forwards every
// record, in stream order, to a sink.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"logcatd/internal/shellcmd"
	"logcatd/pkg/logcat"
)

// Sink receives decoded records one at a time.
type Sink interface {
	Write(rec logcat.Record) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(rec logcat.Record) error

func (f SinkFunc) Write(rec logcat.Record) error { return f(rec) }

// Filter drops records the caller is not interested in. The zero value
// lets everything through.
type Filter struct {
	MinLevel logcat.Level // records below this level are dropped; unknown levels always pass
	Tags     []string     // if set, only these tags pass
	PID      int32        // if non-zero, only this pid passes
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec logcat.Record) bool {
	if rec.Level != logcat.LevelUnknown && rec.Level < f.MinLevel {
		return false
	}
	if len(f.Tags) > 0 && !slices.Contains(f.Tags, rec.Tag) {
		return false
	}
	if f.PID != 0 && rec.PID != f.PID {
		return false
	}
	return true
}

// Options configures a capture.
type Options struct {
	// Args is the command to run, e.g. adb logcat -B.
	Args   []string
	Sink   Sink
	Filter Filter
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Stats summarizes a capture.
type Stats struct {
	Decoded  int
	Written  int
	Filtered int
	ExitCode int // -1 if no process was run or it was killed
}

// Run executes opts.Args and streams the decoded records into opts.Sink
// until the command exits or ctx is cancelled. Lines the command writes to
// stderr are logged as warnings.
func Run(ctx context.Context, opts Options) (Stats, error) {
	if opts.Sink == nil {
		return Stats{}, errors.New("capture needs a sink")
	}
	log := opts.logger()

	stats := Stats{ExitCode: -1}
	onStdout := func(ctx context.Context, r io.Reader) error {
		return pump(ctx, r, opts, &stats)
	}
	onStderr := func(_ context.Context, r io.Reader) error {
		return logLines(r, log)
	}

	cmd := shellcmd.New(opts.Args...)
	cmd.Logger = log
	log.Info("Starting capture", "args", opts.Args)
	res, err := cmd.Run(ctx, onStdout, onStderr)
	if res.PID != 0 {
		stats.ExitCode = res.ExitCode
	}
	if err != nil {
		return stats, err
	}
	log.Info("Capture finished", "records", stats.Decoded, "written", stats.Written, "exit_code", res.ExitCode)
	return stats, nil
}

// Replay decodes a previously saved binary stream, e.g. the output of
// `adb logcat -B -d > dump.bin`.
func Replay(ctx context.Context, r io.Reader, opts Options) (Stats, error) {
	if opts.Sink == nil {
		return Stats{}, errors.New("replay needs a sink")
	}
	stats := Stats{ExitCode: -1}
	err := pump(ctx, bufio.NewReader(r), opts, &stats)
	return stats, err
}

// pump decodes records from r until the stream ends and hands the ones
// passing the filter to the sink.
func pump(ctx context.Context, r io.Reader, opts Options, stats *Stats) error {
	dec := logcat.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode record %d: %w", stats.Decoded+1, err)
		}
		stats.Decoded++

		if !opts.Filter.Match(rec) {
			stats.Filtered++
			continue
		}
		if err := opts.Sink.Write(rec); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		stats.Written++
	}
}

// logLines logs every line read from r. A last line without a newline is
// logged too.
func logLines(r io.Reader, log *slog.Logger) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			log.Warn("Command stderr", "line", trimNewline(line))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}
