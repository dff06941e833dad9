package core

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// WriteBuffer - consumer output. Data is buffered until WriteTo attaches
// the real writer. WriteTo blocks until the first write error or Close.
type WriteBuffer struct {
	io.Writer

	err   error
	mu    sync.Mutex
	wg    sync.WaitGroup
	state byte
	n     int64
}

func NewWriteBuffer(wr io.Writer) *WriteBuffer {
	if wr == nil {
		wr = bytes.NewBuffer(nil)
	}
	w := &WriteBuffer{Writer: wr}
	w.add()
	return w
}

func (w *WriteBuffer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	if w.err != nil {
		err = w.err
	} else if n, err = w.Writer.Write(p); err != nil {
		w.err = err
		w.done()
	} else if f, ok := w.Writer.(http.Flusher); ok {
		f.Flush()
	}
	w.n += int64(n)
	w.mu.Unlock()
	return
}

func (w *WriteBuffer) WriteTo(wr io.Writer) (int64, error) {
	w.Reset(wr)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == io.EOF {
		return w.n, nil
	}
	return w.n, w.err
}

func (w *WriteBuffer) Close() error {
	w.mu.Lock()
	if w.err == nil {
		w.err = io.EOF
	}
	w.done()
	w.mu.Unlock()
	return nil
}

// Reset - move buffered data to the new writer and continue with it
func (w *WriteBuffer) Reset(wr io.Writer) {
	w.mu.Lock()
	if buf, ok := w.Writer.(*bytes.Buffer); ok && buf.Len() > 0 {
		if _, err := buf.WriteTo(wr); err != nil {
			w.err = err
			w.done()
		}
	}
	w.Writer = wr
	w.mu.Unlock()
}

const (
	none = iota
	start
	end
)

func (w *WriteBuffer) add() {
	if w.state == none {
		w.state = start
		w.wg.Add(1)
	}
}

func (w *WriteBuffer) done() {
	if w.state == start {
		w.state = end
		w.wg.Done()
	}
}
