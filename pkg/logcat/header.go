package logcat

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// BaseHeaderSize is the size of the header shared by all revisions.
	BaseHeaderSize = 20

	uidFieldEnd   = 4
	logIDFieldEnd = 8
)

// Header is the preamble of one entry as it appears on the wire.
type Header struct {
	PayloadLen uint16
	// HeaderSize is the raw on-wire value. Use Size for the number of
	// header bytes actually present.
	HeaderSize uint16
	PID        int32
	TID        int32
	Sec        int32
	Nsec       int32
	UID        int32 // -1 when the header has no uid field
	LogID      int32 // -1 when the header has no log id field
}

// Size returns the number of header bytes, including the base header.
// Values below BaseHeaderSize come from the oldest revision where the field
// is padding.
func (h Header) Size() int {
	if int(h.HeaderSize) < BaseHeaderSize {
		return BaseHeaderSize
	}
	return int(h.HeaderSize)
}

// Revision derives the format revision from the header size.
func (h Header) Revision() int {
	extra := h.Size() - BaseHeaderSize
	switch {
	case extra >= logIDFieldEnd:
		return 3
	case extra >= uidFieldEnd:
		return 2
	default:
		return 1
	}
}

// decodeBase fills the base fields from a 20 byte slice and resets the
// extension fields.
func (h *Header) decodeBase(b []byte) {
	h.PayloadLen = binary.LittleEndian.Uint16(b[0:2])
	h.HeaderSize = binary.LittleEndian.Uint16(b[2:4])
	h.PID = int32(binary.LittleEndian.Uint32(b[4:8]))
	h.TID = int32(binary.LittleEndian.Uint32(b[8:12]))
	h.Sec = int32(binary.LittleEndian.Uint32(b[12:16]))
	h.Nsec = int32(binary.LittleEndian.Uint32(b[16:20]))
	h.UID = -1
	h.LogID = -1
}

// decodeExtension reads the optional fields following the base header.
// Bytes past the known fields are ignored.
func (h *Header) decodeExtension(ext []byte) {
	if len(ext) >= uidFieldEnd {
		h.UID = int32(binary.LittleEndian.Uint32(ext[0:uidFieldEnd]))
	}
	if len(ext) >= logIDFieldEnd {
		h.LogID = int32(binary.LittleEndian.Uint32(ext[uidFieldEnd:logIDFieldEnd]))
	}
}

// appendTo appends the header, extension included, to dst.
func (h Header) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, h.PayloadLen)
	dst = binary.LittleEndian.AppendUint16(dst, h.HeaderSize)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.PID))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.TID))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Sec))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.Nsec))

	extra := h.Size() - BaseHeaderSize
	ext := make([]byte, extra)
	if extra >= uidFieldEnd {
		binary.LittleEndian.PutUint32(ext[0:uidFieldEnd], uint32(h.UID))
	}
	if extra >= logIDFieldEnd {
		binary.LittleEndian.PutUint32(ext[uidFieldEnd:logIDFieldEnd], uint32(h.LogID))
	}
	return append(dst, ext...)
}

// MarshalBinary implements encoding.BinaryMarshaler. The payload is not
// included.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.appendTo(make([]byte, 0, h.Size())), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. data must hold at
// least Size() bytes; anything after the header is ignored.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < BaseHeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedRecord, BaseHeaderSize, len(data))
	}
	var parsed Header
	parsed.decodeBase(data[:BaseHeaderSize])
	size := parsed.Size()
	if len(data) < size {
		return fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedRecord, size, len(data))
	}
	parsed.decodeExtension(data[BaseHeaderSize:size])
	*h = parsed
	return nil
}

// AppendRecord encodes one entry with the given header and payload and
// appends it to dst. PayloadLen is computed from the payload; the other
// header fields are written as given.
func AppendRecord(dst []byte, h Header, priority byte, tag, message string) ([]byte, error) {
	payloadLen := 1 + len(tag) + 1 + len(message) + 1
	if payloadLen > math.MaxUint16 {
		return dst, fmt.Errorf("payload of %d bytes exceeds %d", payloadLen, math.MaxUint16)
	}
	h.PayloadLen = uint16(payloadLen)
	dst = h.appendTo(dst)
	dst = append(dst, priority)
	dst = append(dst, tag...)
	dst = append(dst, 0)
	dst = append(dst, message...)
	dst = append(dst, 0)
	return dst, nil
}

// decodePayload splits a payload into level, tag and message.
func decodePayload(p []byte) (Level, string, string) {
	if len(p) == 0 {
		return LevelUnknown, "", ""
	}
	level := LevelFromPriority(p[0])

	text := string(p[1:])
	if !utf8.ValidString(text) {
		// One U+FFFD per invalid byte, as Java's decoder does.
		text = string([]rune(text))
	}
	tag, message, _ := strings.Cut(text, "\x00")
	message = strings.TrimSpace(strings.TrimSuffix(message, "\x00"))
	return level, tag, message
}
