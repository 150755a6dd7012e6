package logcat

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// recordNamespace is the UUID namespace for record IDs. Changing it changes
// every ID ever handed out, so it is fixed.
var recordNamespace = uuid.MustParse("1a8aec4b-880b-4d8a-be1b-4fae5a869f5a")

// Record is one decoded log line.
type Record struct {
	Time    time.Time
	PID     int32
	TID     int32
	Level   Level // LevelUnknown if the priority byte was not recognized
	Tag     string
	Message string

	// UID is the effective user id of the writer, or -1 for streams whose
	// header does not carry it.
	UID int32
	// Buffer is BufferUnknown for streams whose header does not carry it.
	Buffer Buffer
}

// ID returns a name-based (version 5) UUID over the record's time, pid,
// tid, level, tag and message. Records with equal fields share an ID. UID
// and Buffer do not take part.
func (r Record) ID() uuid.UUID {
	var b strings.Builder
	// RFC3339Nano drops trailing zeros of the fraction. IDs are stable
	// within this module but need not match other producers.
	b.WriteString(r.Time.UTC().Format(time.RFC3339Nano))
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(int64(r.PID), 10))
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(int64(r.TID), 10))
	b.WriteByte('\n')
	b.WriteString(r.Level.Identifier())
	b.WriteByte('\n')
	b.WriteString(r.Tag)
	b.WriteByte('\n')
	b.WriteString(r.Message)
	return uuid.NewSHA1(recordNamespace, []byte(b.String()))
}
