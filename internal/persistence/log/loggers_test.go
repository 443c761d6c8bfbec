package log

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/hunt/session"
)

func TestQueryLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewQueryLogger(dir)

	ts := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return ts }
	if err := l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints, Source: "http", X: 2, Y: 3, Results: 2}); err != nil {
		t.Fatalf("WriteQuery: %v", err)
	}
	ts = ts.Add(2 * time.Minute)
	if err := l.WriteQuery(service.QueryLogEntry{Kind: service.KindNames, Source: "ws", IDs: []uint32{10, 11}, Lang: "fr"}); err != nil {
		t.Fatalf("WriteQuery: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(l.Pattern())
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}
	if filepath.Base(files[0]) != "queries-2024-03-01-10.jsonl.zst" {
		t.Fatalf("unexpected file name %s", files[0])
	}

	got, err := ReadQueries(l.Pattern())
	if err != nil {
		t.Fatalf("ReadQueries: %v", err)
	}
	if len(got) != 2 || got[0].X != 2 || got[1].Lang != "fr" || len(got[1].IDs) != 2 {
		t.Fatalf("read back mismatch: %+v", got)
	}
}

func TestQueryLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewQueryLogger(dir)
		l.w.now = func() time.Time { return ts }
		if err := l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints, Results: i}); err != nil {
			t.Fatalf("WriteQuery: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	got, err := ReadQueries(filepath.Join(dir, "queries", "queries-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadQueries: %v", err)
	}
	if len(got) != 2 || got[1].Results != 1 {
		t.Fatalf("expected both sessions' entries: %+v", got)
	}
}

func TestQueryLogger_OnCloseReportsFinishedFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewQueryLogger(dir)
	var closed []string
	l.OnClose(func(path string) { closed = append(closed, filepath.Base(path)) })

	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	l.w.now = func() time.Time { return ts }
	_ = l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints})
	ts = ts.Add(time.Hour)
	_ = l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints})
	if len(closed) != 1 || closed[0] != "queries-2024-03-01-10.jsonl.zst" {
		t.Fatalf("after rotate closed=%v", closed)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(closed) != 2 || closed[1] != "queries-2024-03-01-11.jsonl.zst" {
		t.Fatalf("after close closed=%v", closed)
	}
}

func TestQueryLogger_WriteAfterCloseIsRejected(t *testing.T) {
	dir := t.TempDir()
	l := NewQueryLogger(dir)
	l.w.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	if err := l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints, Results: 1}); err != nil {
		t.Fatalf("WriteQuery: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := l.WriteQuery(service.QueryLogEntry{Kind: service.KindHints}); !errors.Is(err, ErrWriterClosed) {
			t.Fatalf("write %d after close: err=%v want ErrWriterClosed", i, err)
		}
	}

	got, err := ReadQueries(l.Pattern())
	if err != nil {
		t.Fatalf("ReadQueries: %v", err)
	}
	if len(got) != 1 || got[0].Results != 1 {
		t.Fatalf("entries after close: %+v", got)
	}
}

func TestSessionLogger_WritesAuditEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewSessionLogger(dir)
	l.w.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	if err := l.WriteAudit(session.AuditEntry{Session: "s1", Event: session.EventOpen, Client: "bot"}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := l.WriteAudit(session.AuditEntry{Session: "s1", Event: session.EventClose, Messages: 3}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "sessions", "sessions-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	var events []session.AuditEntry
	err := ReadJSONL(files[0], func(line []byte) error {
		var e session.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		events = append(events, e)
		return nil
	})
	if err != nil || len(events) != 2 || events[1].Messages != 3 || events[0].Client != "bot" {
		t.Fatalf("events=%+v err=%v", events, err)
	}
}
