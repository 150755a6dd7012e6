// Package format renders decoded records for humans and machines.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"logcatd/pkg/logcat"
)

// Formatter writes one record to w.
type Formatter interface {
	Format(w io.Writer, rec logcat.Record) error
}

// ThreadTime renders records like `logcat -v threadtime`:
//
//	01-07 12:34:56.789  1234  1240 I Tag: message
//
// Multi-line messages repeat the prefix on every line.
type ThreadTime struct {
	Location *time.Location // nil means local time
	Color    bool
}

func (f ThreadTime) Format(w io.Writer, rec logcat.Record) error {
	t := rec.Time
	if f.Location != nil {
		t = t.In(f.Location)
	} else {
		t = t.Local()
	}
	prefix := fmt.Sprintf("%s %5d %5d %c %s: ", t.Format("01-02 15:04:05.000"), rec.PID, rec.TID, rec.Level.Letter(), rec.Tag)
	return writeLines(w, prefix, rec, f.Color)
}

// Brief renders records like `logcat -v brief`: `I/Tag( 1234): message`.
type Brief struct {
	Color bool
}

func (f Brief) Format(w io.Writer, rec logcat.Record) error {
	prefix := fmt.Sprintf("%c/%s(%5d): ", rec.Level.Letter(), rec.Tag, rec.PID)
	return writeLines(w, prefix, rec, f.Color)
}

func writeLines(w io.Writer, prefix string, rec logcat.Record, color bool) error {
	var b strings.Builder
	start, end := "", ""
	if color {
		start, end = levelColor(rec.Level), colorReset
	}
	for _, line := range strings.Split(rec.Message, "\n") {
		b.WriteString(start)
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString(end)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

const colorReset = "\x1b[0m"

func levelColor(l logcat.Level) string {
	switch l {
	case logcat.LevelVerbose:
		return "\x1b[90m"
	case logcat.LevelDebug:
		return "\x1b[36m"
	case logcat.LevelInfo:
		return "\x1b[32m"
	case logcat.LevelWarning:
		return "\x1b[33m"
	case logcat.LevelError:
		return "\x1b[31m"
	case logcat.LevelFatal:
		return "\x1b[1;31m"
	default:
		return ""
	}
}

// JSON writes one object per line.
type JSON struct{}

type jsonRecord struct {
	ID      string `json:"id"`
	Time    string `json:"time"`
	PID     int32  `json:"pid"`
	TID     int32  `json:"tid"`
	UID     *int32 `json:"uid,omitempty"`
	Buffer  string `json:"buffer,omitempty"`
	Level   string `json:"level,omitempty"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (JSON) Format(w io.Writer, rec logcat.Record) error {
	out := jsonRecord{
		ID:      rec.ID().String(),
		Time:    rec.Time.UTC().Format(time.RFC3339Nano),
		PID:     rec.PID,
		TID:     rec.TID,
		Buffer:  rec.Buffer.String(),
		Level:   rec.Level.Identifier(),
		Tag:     rec.Tag,
		Message: rec.Message,
	}
	if rec.UID >= 0 {
		uid := rec.UID
		out.UID = &uid
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

var formatters = map[string]func(color bool) Formatter{
	"threadtime": func(color bool) Formatter { return ThreadTime{Color: color} },
	"brief":      func(color bool) Formatter { return Brief{Color: color} },
	"json":       func(bool) Formatter { return JSON{} },
}

// Names lists the formats ByName accepts.
func Names() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName returns the formatter registered under name. Color is ignored by
// formats that have no notion of it.
func ByName(name string, color bool) (Formatter, error) {
	newFormatter, ok := formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return newFormatter(color), nil
}

// WriterSink writes records to an io.Writer through a Formatter. It is safe
// for concurrent use.
type WriterSink struct {
	mu        sync.Mutex
	w         io.Writer
	formatter Formatter
}

func NewWriterSink(w io.Writer, formatter Formatter) *WriterSink {
	return &WriterSink{w: w, formatter: formatter}
}

func (s *WriterSink) Write(rec logcat.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formatter.Format(s.w, rec)
}
