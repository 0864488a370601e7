package testutil

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrSimulated is returned by mocks configured to fail.
var ErrSimulated = errors.New("simulated error")

// MockWriter is a test writer that can simulate various write conditions
// including delays, errors, short writes and write counting.
type MockWriter struct {
	buf        *bytes.Buffer
	mu         sync.Mutex
	writeDelay time.Duration
	failNext   int
	writeCount int
	shortWrite bool
	err        error
	closed     bool
	closeErr   error
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer interface with configurable behavior.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.err != nil {
		return 0, mw.err
	}

	if mw.failNext > 0 {
		mw.failNext--
		return 0, ErrSimulated
	}

	if mw.shortWrite && len(p) > 1 {
		mw.shortWrite = false
		return mw.buf.Write(p[:len(p)/2])
	}

	return mw.buf.Write(p)
}

// Close implements io.Closer.
func (mw *MockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closed = true
	return mw.closeErr
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// Closed reports whether Close was called.
func (mw *MockWriter) Closed() bool {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.closed
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// FailNext makes the next n writes return ErrSimulated.
func (mw *MockWriter) FailNext(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failNext = n
}

// SetShortWrite makes the next write accept only half of its input.
func (mw *MockWriter) SetShortWrite() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shortWrite = true
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.err = err
}

// SetCloseError configures the error returned by Close.
func (mw *MockWriter) SetCloseError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closeErr = err
}

// MockReader yields fixed pieces one Read call at a time, then io.EOF or Err.
type MockReader struct {
	mu     sync.Mutex
	pieces [][]byte
	Err    error
	reads  int
}

// NewMockReader creates a reader returning each piece from a separate Read.
func NewMockReader(pieces ...string) *MockReader {
	r := &MockReader{}
	for _, p := range pieces {
		r.pieces = append(r.pieces, []byte(p))
	}
	return r
}

// Read implements io.Reader.
func (mr *MockReader) Read(p []byte) (int, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.reads++
	if len(mr.pieces) == 0 {
		if mr.Err != nil {
			return 0, mr.Err
		}
		return 0, io.EOF
	}
	n := copy(p, mr.pieces[0])
	mr.pieces[0] = mr.pieces[0][n:]
	if len(mr.pieces[0]) == 0 {
		mr.pieces = mr.pieces[1:]
	}
	return n, nil
}

// Reads returns the number of Read calls.
func (mr *MockReader) Reads() int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.reads
}
