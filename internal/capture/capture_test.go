package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"logcatd/internal/shellcmd"
	"logcatd/pkg/logcat"

	"github.com/stretchr/testify/require"
)

type memorySink struct {
	records []logcat.Record
}

func (s *memorySink) Write(rec logcat.Record) error {
	s.records = append(s.records, rec)
	return nil
}

func encode(t *testing.T, recs ...logcat.Record) []byte {
	t.Helper()
	var out []byte
	for _, rec := range recs {
		h := logcat.Header{
			HeaderSize: 24,
			PID:        rec.PID,
			TID:        rec.TID,
			Sec:        int32(rec.Time.Unix()),
			UID:        rec.UID,
		}
		var err error
		out, err = logcat.AppendRecord(out, h, rec.Level.Priority(), rec.Tag, rec.Message)
		require.NoError(t, err)
	}
	return out
}

func rec(pid int32, level logcat.Level, tag, msg string) logcat.Record {
	return logcat.Record{PID: pid, TID: pid, Level: level, Tag: tag, Message: msg, UID: 1000}
}

func TestFilter_Match(t *testing.T) {
	info := rec(1, logcat.LevelInfo, "App", "x")
	unknown := rec(1, logcat.LevelUnknown, "App", "x")

	require.True(t, Filter{}.Match(info))
	require.True(t, Filter{MinLevel: logcat.LevelInfo}.Match(info))
	require.False(t, Filter{MinLevel: logcat.LevelWarning}.Match(info))
	require.True(t, Filter{MinLevel: logcat.LevelFatal}.Match(unknown))
	require.True(t, Filter{Tags: []string{"Other", "App"}}.Match(info))
	require.False(t, Filter{Tags: []string{"Other"}}.Match(info))
	require.True(t, Filter{PID: 1}.Match(info))
	require.False(t, Filter{PID: 2}.Match(info))
}

func TestReplay(t *testing.T) {
	data := encode(t,
		rec(1, logcat.LevelDebug, "A", "one"),
		rec(2, logcat.LevelWarning, "B", "two"),
		rec(3, logcat.LevelError, "A", "three"),
	)

	sink := &memorySink{}
	stats, err := Replay(context.Background(), bytes.NewReader(data), Options{
		Sink:   sink,
		Filter: Filter{MinLevel: logcat.LevelInfo},
	})
	require.NoError(t, err)
	require.Equal(t, 3, stats.Decoded)
	require.Equal(t, 2, stats.Written)
	require.Equal(t, 1, stats.Filtered)

	require.Len(t, sink.records, 2)
	require.Equal(t, "two", sink.records[0].Message)
	require.Equal(t, "three", sink.records[1].Message)
	require.Equal(t, int32(1000), sink.records[0].UID)
}

func TestReplay_Truncated(t *testing.T) {
	data := encode(t, rec(1, logcat.LevelInfo, "A", "one"), rec(2, logcat.LevelInfo, "A", "two"))

	sink := &memorySink{}
	stats, err := Replay(context.Background(), bytes.NewReader(data[:len(data)-2]), Options{Sink: sink})
	require.ErrorIs(t, err, logcat.ErrTruncatedRecord)
	require.Equal(t, 1, stats.Decoded)
	require.Len(t, sink.records, 1)
}

func TestReplay_SinkError(t *testing.T) {
	data := encode(t, rec(1, logcat.LevelInfo, "A", "one"), rec(2, logcat.LevelInfo, "A", "two"))

	full := errors.New("disk full")
	sink := SinkFunc(func(logcat.Record) error { return full })
	stats, err := Replay(context.Background(), bytes.NewReader(data), Options{Sink: sink})
	require.ErrorIs(t, err, full)
	require.Equal(t, 1, stats.Decoded)
	require.Equal(t, 0, stats.Written)
}

func TestReplay_NoSink(t *testing.T) {
	_, err := Replay(context.Background(), bytes.NewReader(nil), Options{})
	require.Error(t, err)
}

func TestRun_FromProcess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	dump := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, os.WriteFile(dump, encode(t,
		rec(10, logcat.LevelInfo, "ActivityManager", "Start proc"),
		rec(11, logcat.LevelError, "AndroidRuntime", "FATAL EXCEPTION"),
	), 0600))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	sink := &memorySink{}
	stats, err := Run(context.Background(), Options{
		Args:   []string{"sh", "-c", "cat \"$0\"; echo 'waiting for device' >&2", dump},
		Sink:   sink,
		Logger: logger,
	})
	require.NoError(t, err)
	require.Equal(t, 0, stats.ExitCode)
	require.Equal(t, 2, stats.Written)
	require.Equal(t, "ActivityManager", sink.records[0].Tag)
	require.Equal(t, "FATAL EXCEPTION", sink.records[1].Message)
	require.True(t, strings.Contains(logs.String(), "waiting for device"), logs.String())
}

func TestRun_LaunchFailure(t *testing.T) {
	stats, err := Run(context.Background(), Options{
		Args: []string{"/nonexistent/adb", "logcat", "-B"},
		Sink: &memorySink{},
	})
	var launchErr *shellcmd.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, -1, stats.ExitCode)
	require.Zero(t, stats.Decoded)
}

func TestRun_TruncatedStreamIsDrainError(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}

	dump := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, os.WriteFile(dump, encode(t, rec(10, logcat.LevelInfo, "A", "complete")), 0600))

	sink := &memorySink{}
	_, err := Run(context.Background(), Options{
		Args: []string{"head", "-c", "30", dump},
		Sink: sink,
	})
	require.ErrorIs(t, err, logcat.ErrTruncatedRecord)
	require.Empty(t, sink.records)
}

func TestLogLines(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, logLines(strings.NewReader("first\r\nsecond"), logger))
	require.Contains(t, logs.String(), "line=first")
	require.Contains(t, logs.String(), "line=second")
}
