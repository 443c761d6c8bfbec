package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	persistlog "huntforge.ai/internal/persistence/log"
)

func buildIndex(t *testing.T, hints string) *index.Index {
	t.Helper()
	var h, n map[string]json.RawMessage
	if err := json.Unmarshal([]byte(hints), &h); err != nil {
		t.Fatalf("hints: %v", err)
	}
	_ = json.Unmarshal([]byte(`{"10":{"en":"Fountain"},"11":{"en":"Statue"}}`), &n)
	ix, err := index.Build(h, n, index.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestReplay_ReportsDrift(t *testing.T) {
	old := buildIndex(t, `{"2,3": [[{"d":1,"x":2,"y":2,"ids":[10,11]}], null, null, null]}`)
	dir := t.TempDir()
	ql := persistlog.NewQueryLogger(dir)
	svc := service.New(old, service.Options{Loggers: []service.QueryLogger{ql}})
	svc.Hints("http", 2, 3, index.North)
	svc.Hints("http", 2, 3, index.East)
	svc.Names("ws", []index.HintID{10, 11, 12}, "en")
	if err := ql.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := persistlog.ReadQueries(filepath.Join(dir, "queries", "queries-*.jsonl.zst"))
	if err != nil || len(entries) != 3 {
		t.Fatalf("entries=%d err=%v", len(entries), err)
	}

	if rep := replay(old, entries); rep.checked != 3 || rep.hints != 2 || rep.names != 1 || len(rep.diffs) != 0 {
		t.Fatalf("same index report=%+v", rep)
	}

	updated := buildIndex(t, `{"2,3": [[{"d":1,"x":2,"y":2,"ids":[10]}], null, null, null]}`)
	rep := replay(updated, entries)
	if len(rep.diffs) != 1 || !strings.Contains(rep.diffs[0], "2,3 NORTH: logged=2 now=1") {
		t.Fatalf("diffs=%v", rep.diffs)
	}
}
