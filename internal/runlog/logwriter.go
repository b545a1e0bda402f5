package runlog

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// TimestampedWriter wraps an io.Writer and prefixes each line with a
// timestamp. It is thread-safe and handles partial line writes correctly;
// per-job stdout/stderr capture files are wrapped in one of these so a
// long-running test script's output can be correlated against the
// queries log.
type TimestampedWriter struct {
	w          io.Writer
	mu         sync.Mutex
	lineBuffer bytes.Buffer
	timeFunc   func() time.Time
}

// NewTimestampedWriter creates a new TimestampedWriter wrapping the given writer.
func NewTimestampedWriter(w io.Writer) *TimestampedWriter {
	return &TimestampedWriter{
		w:        w,
		timeFunc: time.Now,
	}
}

// Write writes data to the underlying writer, prefixing each complete line
// with a timestamp in [HH:MM:SS] format. Partial lines are buffered until
// a newline is received.
func (tw *TimestampedWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	totalWritten := 0
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			tw.lineBuffer.Write(p)
			totalWritten += len(p)
			break
		}

		n, err := tw.writeCompleteLine(p[:idx])
		if err != nil {
			return totalWritten + n, err
		}
		totalWritten += idx + 1
		p = p[idx+1:]
	}

	return totalWritten, nil
}

// writeCompleteLine writes a complete line with timestamp prefix.
func (tw *TimestampedWriter) writeCompleteLine(lineData []byte) (int, error) {
	timestamp := tw.timeFunc().Format("[15:04:05] ")

	var fullLine []byte
	if tw.lineBuffer.Len() > 0 {
		fullLine = append(tw.lineBuffer.Bytes(), lineData...)
		tw.lineBuffer.Reset()
	} else {
		fullLine = lineData
	}

	_, err := fmt.Fprintf(tw.w, "%s%s\n", timestamp, fullLine)
	if err != nil {
		return 0, fmt.Errorf("writing timestamped line: %w", err)
	}

	return len(lineData), nil
}

// Flush writes any buffered partial line with a timestamp. Call this when
// you're done writing to ensure all content is flushed.
func (tw *TimestampedWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.lineBuffer.Len() == 0 {
		return nil
	}

	timestamp := tw.timeFunc().Format("[15:04:05] ")
	_, err := fmt.Fprintf(tw.w, "%s%s\n", timestamp, tw.lineBuffer.Bytes())
	if err != nil {
		return fmt.Errorf("flushing partial line: %w", err)
	}
	tw.lineBuffer.Reset()

	return nil
}
