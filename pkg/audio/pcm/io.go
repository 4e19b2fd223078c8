package pcm

import (
	"errors"
	"io"
	"time"
)

// Writer receives audio in chunks.
type Writer interface {
	Write([]byte) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc is a function that implements the Writer interface.
type WriteFunc func([]byte) error

// Write implements the Writer interface.
func (f WriteFunc) Write(b []byte) error {
	return f(b)
}

// Discard is a Writer that discards all written chunks.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write([]byte) error {
	return nil
}

// IOWriter wraps a Writer to provide an io.Writer interface.
func IOWriter(w Writer) io.Writer {
	return &ioWriter{w: w}
}

type ioWriter struct {
	w Writer
}

func (w *ioWriter) Write(b []byte) (int, error) {
	if err := w.w.Write(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Copy copies audio from r to w in chunks of at least chunk duration of
// the given format. Every chunk holds whole samples; a partial sample left
// at EOF is written last. The buffer handed to w is reused between calls.
// Returns nil on EOF, or any other error encountered during reading or writing.
func Copy(w Writer, r io.Reader, format Format, chunk time.Duration) error {
	frame := format.Channels() * format.Depth() / 8
	minChunk := max(int(format.BytesInDuration(chunk)), frame)
	buf := make([]byte, 2*minChunk)
	held := 0
	for {
		n, err := io.ReadAtLeast(r, buf[held:], minChunk-held)
		n += held
		whole := n - n%frame
		if whole > 0 {
			if err := w.Write(buf[:whole]); err != nil {
				return err
			}
		}
		held = copy(buf, buf[whole:n])
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if held > 0 {
					return w.Write(buf[:held])
				}
				return nil
			}
			return err
		}
	}
}
