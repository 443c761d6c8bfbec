package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"huntforge.ai/internal/hunt/service"
)

func TestSummarize(t *testing.T) {
	entries := []service.QueryLogEntry{
		{At: "2026-01-01T00:00:02Z", Kind: service.KindHints, Source: "ws", X: 1, Y: 2, Direction: 0, Results: 0},
		{At: "2026-01-01T00:00:01Z", Kind: service.KindHints, Source: "http", X: 1, Y: 2, Direction: 0, Results: 3},
		{At: "2026-01-01T00:00:03Z", Kind: service.KindHints, Source: "http", X: 5, Y: 5, Direction: 2, Results: 1},
		{At: "2026-01-01T00:00:04Z", Kind: service.KindNames, Source: "http", Direction: -1, Results: 2},
	}
	s := summarize(entries, 1)
	if s.Total != 4 || s.ByKind[service.KindHints] != 3 || s.BySource["http"] != 3 || s.Empty != 1 {
		t.Fatalf("summary=%+v", s)
	}
	if s.First != "2026-01-01T00:00:01Z" || s.Last != "2026-01-01T00:00:04Z" {
		t.Fatalf("range=%s..%s", s.First, s.Last)
	}
	if len(s.Hot) != 1 || s.Hot[0].Pos != "1,2/0" || s.Hot[0].Count != 2 || s.Hot[0].Empty != 1 {
		t.Fatalf("hot=%+v", s.Hot)
	}

	if s := summarize(nil, 10); s.Total != 0 || s.Hot == nil {
		t.Fatalf("empty summary=%+v", s)
	}
}

func TestFetch_IndentsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			_, _ = w.Write([]byte("ok\n"))
			return
		}
		_, _ = w.Write([]byte(`{"a":1}`))
	}))
	defer srv.Close()

	status, body, err := fetch(srv.URL+"/", "/v1/catalogs")
	if err != nil || status != http.StatusOK || string(body) != "{\n  \"a\": 1\n}" {
		t.Fatalf("status=%d body=%q err=%v", status, body, err)
	}
	if _, body, _ := fetch(srv.URL, "/healthz"); string(body) != "ok" {
		t.Fatalf("body=%q", body)
	}
}
