package terminal

import "bytes"

// captureWriter keeps at most max bytes and silently discards the rest so a
// chatty process never blocks on a full pipe. onLimit runs once, on the first
// write past max.
type captureWriter struct {
	max     int64
	onLimit func()

	buf       bytes.Buffer
	total     int64
	truncated bool
}

func newCaptureWriter(max int64, onLimit func()) *captureWriter {
	return &captureWriter{max: max, onLimit: onLimit}
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.total += int64(len(p))

	if int64(w.buf.Len()) >= w.max {
		w.truncate()
		return len(p), nil
	}
	remain := w.max - int64(w.buf.Len())
	if int64(len(p)) <= remain {
		_, _ = w.buf.Write(p)
		return len(p), nil
	}
	_, _ = w.buf.Write(p[:remain])
	w.truncate()
	return len(p), nil
}

func (w *captureWriter) truncate() {
	if w.truncated {
		return
	}
	w.truncated = true
	if w.onLimit != nil {
		w.onLimit()
	}
}

func (w *captureWriter) String() string { return w.buf.String() }
