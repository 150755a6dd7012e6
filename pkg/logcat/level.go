package logcat

import (
	"fmt"
	"strings"
)

// Level is the severity of a record. Levels are ordered, so filters can
// compare them directly. The zero value means the priority byte was not
// recognized.
type Level uint8

const (
	LevelUnknown Level = iota
	LevelVerbose
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

// LevelFromPriority maps the priority byte of a payload to a Level.
func LevelFromPriority(priority byte) Level {
	switch priority {
	case 2:
		return LevelVerbose
	case 3:
		return LevelDebug
	case 4:
		return LevelInfo
	case 5:
		return LevelWarning
	case 6:
		return LevelError
	case 7:
		return LevelFatal
	default:
		return LevelUnknown
	}
}

// Priority is the inverse of LevelFromPriority. LevelUnknown returns 0.
func (l Level) Priority() byte {
	if l == LevelUnknown || l > LevelFatal {
		return 0
	}
	return byte(l) + 1
}

// Identifier returns the code used when computing a record ID.
func (l Level) Identifier() string {
	switch l {
	case LevelVerbose:
		return "V"
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarning:
		return "W"
	case LevelError:
		return "E"
	case LevelFatal:
		return "WTF"
	default:
		return ""
	}
}

// Letter returns the single character logcat prints for the level.
func (l Level) Letter() byte {
	switch l {
	case LevelVerbose:
		return 'V'
	case LevelDebug:
		return 'D'
	case LevelInfo:
		return 'I'
	case LevelWarning:
		return 'W'
	case LevelError:
		return 'E'
	case LevelFatal:
		return 'F'
	default:
		return '?'
	}
}

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel accepts a level name ("warning", "warn") or its letter ("W").
// Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v", "verbose":
		return LevelVerbose, nil
	case "d", "debug":
		return LevelDebug, nil
	case "i", "info":
		return LevelInfo, nil
	case "w", "warn", "warning":
		return LevelWarning, nil
	case "e", "error":
		return LevelError, nil
	case "f", "wtf", "fatal", "assert":
		return LevelFatal, nil
	}
	return LevelUnknown, fmt.Errorf("unknown log level %q", s)
}

// Buffer identifies the log buffer a record was written to. Only the newest
// header revision carries it; older streams decode to BufferUnknown.
type Buffer int32

const (
	BufferUnknown  Buffer = -1
	BufferMain     Buffer = 0
	BufferRadio    Buffer = 1
	BufferEvents   Buffer = 2
	BufferSystem   Buffer = 3
	BufferCrash    Buffer = 4
	BufferStats    Buffer = 5
	BufferSecurity Buffer = 6
	BufferKernel   Buffer = 7
)

var bufferNames = map[Buffer]string{
	BufferMain:     "main",
	BufferRadio:    "radio",
	BufferEvents:   "events",
	BufferSystem:   "system",
	BufferCrash:    "crash",
	BufferStats:    "stats",
	BufferSecurity: "security",
	BufferKernel:   "kernel",
}

func (b Buffer) String() string {
	if name, ok := bufferNames[b]; ok {
		return name
	}
	if b == BufferUnknown {
		return ""
	}
	return fmt.Sprintf("buffer-%d", int32(b))
}
