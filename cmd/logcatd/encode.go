package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"logcatd/pkg/logcat"

	"github.com/spf13/cobra"
)

var encodeHeaderSize uint16

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Write a binary logcat stream from text lines",
	Long: `Read lines of the form

  PID TID LEVEL TAG MESSAGE...

from stdin and write them to stdout as a binary logcat stream. LEVEL is a
letter or name accepted by --level, or "-" for an unknown priority. Useful
to generate test input for "decode".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return encodeLines(cmd.OutOrStdout(), cmd.InOrStdin(), encodeHeaderSize, time.Now)
	},
}

func encodeLines(out io.Writer, in io.Reader, headerSize uint16, now func() time.Time) error {
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	var buf []byte
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		h, priority, tag, msg, err := parseEncodeLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		t := now()
		h.HeaderSize = headerSize
		h.Sec = int32(t.Unix())
		h.Nsec = int32(t.Nanosecond())
		h.LogID = int32(logcat.BufferMain)

		buf, err = logcat.AppendRecord(buf[:0], h, priority, tag, msg)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return w.Flush()
}

func parseEncodeLine(line string) (logcat.Header, byte, string, string, error) {
	fields := strings.SplitN(line, " ", 5)
	if len(fields) < 4 {
		return logcat.Header{}, 0, "", "", fmt.Errorf("expected PID TID LEVEL TAG [MESSAGE], got %q", line)
	}
	pid, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return logcat.Header{}, 0, "", "", fmt.Errorf("invalid pid: %w", err)
	}
	tid, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return logcat.Header{}, 0, "", "", fmt.Errorf("invalid tid: %w", err)
	}
	var priority byte
	if fields[2] != "-" {
		level, err := logcat.ParseLevel(fields[2])
		if err != nil {
			return logcat.Header{}, 0, "", "", err
		}
		priority = level.Priority()
	}
	msg := ""
	if len(fields) == 5 {
		msg = fields[4]
	}
	h := logcat.Header{PID: int32(pid), TID: int32(tid), UID: -1}
	return h, priority, fields[3], msg, nil
}

func init() {
	encodeCmd.Flags().Uint16Var(&encodeHeaderSize, "header-size", 28, "Header size to write (0 or 20: oldest format, 24: with uid, 28: with uid and buffer)")

	rootCmd.AddCommand(encodeCmd)
}
