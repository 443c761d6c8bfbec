package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/hunt/session"
)

// ErrWriterClosed is returned by writes that arrive after Close.
var ErrWriterClosed = errors.New("jsonl writer closed")

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	now func() time.Time
	// onClose receives each finished file, after rotation or Close.
	onClose func(path string)

	mu      sync.Mutex
	closed  bool
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		name := w.f.Name()
		_ = w.f.Close()
		w.f = nil
		if w.onClose != nil && err1 == nil {
			w.onClose(name)
		}
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// QueryLogger writes one JSONL entry per answered query (compressed), rotated hourly.
type QueryLogger struct{ w *JSONLZstdWriter }

func NewQueryLogger(runtimeDir string) *QueryLogger {
	return &QueryLogger{w: NewJSONLZstdWriter(filepath.Join(runtimeDir, "queries"), "queries")}
}

// OnClose registers fn to be called with the path of every finished hourly
// file. Must be set before the first write.
func (l *QueryLogger) OnClose(fn func(path string)) { l.w.onClose = fn }

func (l *QueryLogger) WriteQuery(v service.QueryLogEntry) error { return l.w.Write(v) }
func (l *QueryLogger) Close() error                             { return l.w.Close() }

// Pattern returns the glob matching every file written by the logger.
func (l *QueryLogger) Pattern() string {
	return filepath.Join(l.w.baseDir, l.w.prefix+"-*.jsonl.zst")
}

// SessionLogger writes websocket session open/close events (compressed), rotated hourly.
type SessionLogger struct{ w *JSONLZstdWriter }

func NewSessionLogger(runtimeDir string) *SessionLogger {
	return &SessionLogger{w: NewJSONLZstdWriter(filepath.Join(runtimeDir, "sessions"), "sessions")}
}

func (l *SessionLogger) OnClose(fn func(path string))          { l.w.onClose = fn }
func (l *SessionLogger) WriteAudit(e session.AuditEntry) error { return l.w.Write(e) }
func (l *SessionLogger) Close() error                          { return l.w.Close() }
