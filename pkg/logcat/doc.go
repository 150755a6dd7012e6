// Package logcat decodes the binary output of `adb logcat -B` (also spelled
// `--binary`) into structured records.
//
// # Wire Format
//
// The stream is a plain concatenation of entries. Each entry is a header
// followed by a payload. All integers are little endian.
//
//	payload_len  u16
//	header_size  u16   (padding in the oldest revision, see below)
//	pid          i32
//	tid          i32
//	sec          i32
//	nsec         i32
//	[uid         i32]  present when header_size >= 24
//	[lid         i32]  present when header_size >= 28
//	[...]              anything beyond 28 bytes is skipped
//	payload      payload_len bytes
//
// There is no version field. The header size is the only discriminator:
//
//   - Revision 1: header_size is below 20 (the field is padding). The
//     header is exactly 20 bytes.
//   - Revision 2: header_size is 24. The extension carries the effective
//     user id of the writer.
//   - Revision 3: header_size is 28 or more. The extension carries the
//     effective user id and the log buffer id. Unknown trailing fields are
//     consumed so framing stays intact.
//
// # Payload
//
//	priority  u8
//	tag       UTF-8, terminated by NUL
//	message   UTF-8, usually terminated by NUL
//
// The priority maps to a [Level]: 2 verbose, 3 debug, 4 info, 5 warning,
// 6 error, 7 fatal. Any other value yields [LevelUnknown].
//
// # Example
//
//	dec := logcat.NewDecoder(stdout)
//	for {
//		rec, err := dec.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		fmt.Println(rec.Tag, rec.Message)
//	}
package logcat
