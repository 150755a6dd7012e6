package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"logcatd/pkg/logcat"

	"github.com/stretchr/testify/require"
)

func testRecord() logcat.Record {
	return logcat.Record{
		Time:    time.Date(2025, 1, 7, 12, 34, 56, 789000000, time.UTC),
		PID:     1234,
		TID:     1240,
		Level:   logcat.LevelInfo,
		Tag:     "App",
		Message: "started",
		UID:     -1,
		Buffer:  logcat.BufferUnknown,
	}
}

func TestThreadTime_Format(t *testing.T) {
	var buf bytes.Buffer
	err := ThreadTime{Location: time.UTC}.Format(&buf, testRecord())
	require.NoError(t, err)
	require.Equal(t, "01-07 12:34:56.789  1234  1240 I App: started\n", buf.String())
}

func TestThreadTime_MultiLine(t *testing.T) {
	rec := testRecord()
	rec.Message = "line1\nline2"

	var buf bytes.Buffer
	require.NoError(t, ThreadTime{Location: time.UTC}.Format(&buf, rec))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "01-07 12:34:56.789  1234  1240 I App: line1", lines[0])
	require.Equal(t, "01-07 12:34:56.789  1234  1240 I App: line2", lines[1])
}

func TestThreadTime_Color(t *testing.T) {
	rec := testRecord()
	rec.Level = logcat.LevelError

	var buf bytes.Buffer
	require.NoError(t, ThreadTime{Location: time.UTC, Color: true}.Format(&buf, rec))
	require.True(t, strings.HasPrefix(buf.String(), "\x1b[31m"))
	require.True(t, strings.HasSuffix(buf.String(), colorReset+"\n"))
}

func TestBrief_Format(t *testing.T) {
	rec := testRecord()
	rec.Level = logcat.LevelUnknown

	var buf bytes.Buffer
	require.NoError(t, Brief{}.Format(&buf, rec))
	require.Equal(t, "?/App( 1234): started\n", buf.String())
}

func TestJSON_Format(t *testing.T) {
	rec := testRecord()
	rec.UID = 10042
	rec.Buffer = logcat.BufferMain

	var buf bytes.Buffer
	require.NoError(t, JSON{}.Format(&buf, rec))
	require.True(t, strings.HasSuffix(buf.String(), "\n"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, rec.ID().String(), got["id"])
	require.Equal(t, "2025-01-07T12:34:56.789Z", got["time"])
	require.Equal(t, float64(1234), got["pid"])
	require.Equal(t, float64(10042), got["uid"])
	require.Equal(t, "main", got["buffer"])
	require.Equal(t, "I", got["level"])
	require.Equal(t, "App", got["tag"])
	require.Equal(t, "started", got["message"])
}

func TestJSON_OmitsUnknownMetadata(t *testing.T) {
	rec := testRecord()
	rec.Level = logcat.LevelUnknown

	var buf bytes.Buffer
	require.NoError(t, JSON{}.Format(&buf, rec))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.NotContains(t, got, "uid")
	require.NotContains(t, got, "buffer")
	require.NotContains(t, got, "level")
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		f, err := ByName(name, false)
		require.NoError(t, err)
		require.NotNil(t, f)
	}

	f, err := ByName("JSON", true)
	require.NoError(t, err)
	require.IsType(t, JSON{}, f)

	_, err = ByName("xml", false)
	require.ErrorContains(t, err, "threadtime")
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf, Brief{})
	require.NoError(t, sink.Write(testRecord()))
	require.NoError(t, sink.Write(testRecord()))
	require.Equal(t, 2, strings.Count(buf.String(), "I/App( 1234): started\n"))
}
