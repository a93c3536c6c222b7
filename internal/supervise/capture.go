package supervise

import (
	"bytes"
	"sync"
)

// captureWriter buffers the transcript in memory so classification and
// failure learning can read it after the attempt. The worker goroutine
// writes while the supervisor reads, hence the lock.
type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *captureWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
