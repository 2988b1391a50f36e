package logging

import (
	"io"
	"sync"
)

// DiagWriter writes one path per line to the diagnostic stream. Each line is
// written with a single Write under a lock, so lines from concurrent workers
// never interleave. A nil *DiagWriter is valid and writes nothing.
type DiagWriter struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewDiagWriter returns a DiagWriter over w
func NewDiagWriter(w io.Writer) *DiagWriter {
	return &DiagWriter{w: w}
}

// Line writes s followed by a newline. Write errors are dropped: losing a
// diagnostic line must not fail a deletion.
func (d *DiagWriter) Line(s string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = append(d.buf[:0], s...)
	d.buf = append(d.buf, '\n')
	_, _ = d.w.Write(d.buf)
}
