package indexdb

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/persistence/snapshot"
)

func waitDrained(t *testing.T, s *SQLiteIndex) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(s.ch) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("writer did not drain queue")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqQuery}

	_ = s.WriteQuery(service.QueryLogEntry{Kind: service.KindHints})
	s.RecordSnapshot("/tmp/index.snap.zst", snapshot.Header{Version: 1})

	st := s.Stats()
	if st.DropQueryTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drop stats mismatch: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRacingCloseDoNotPanic(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				if err := idx.WriteQuery(service.QueryLogEntry{Kind: service.KindHints, X: int32(i), Y: int32(j)}); err != nil {
					t.Errorf("WriteQuery: %v", err)
					return
				}
				idx.RecordSnapshot("/data/index.snap.zst", snapshot.Header{Version: 1})
			}
		}(i)
	}
	close(start)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	if err := idx.WriteQuery(service.QueryLogEntry{Kind: service.KindHints}); err != nil {
		t.Fatalf("WriteQuery after close: %v", err)
	}
	idx.RecordSnapshot("/data/index.snap.zst", snapshot.Header{Version: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSQLiteIndex_WritesQueriesAndHotSpots(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entries := []service.QueryLogEntry{
		{At: "2024-01-01T00:00:00Z", Kind: service.KindHints, Source: "http", X: 2, Y: 3, Direction: 0, Results: 2},
		{At: "2024-01-01T00:00:01Z", Kind: service.KindHints, Source: "ws", X: 2, Y: 3, Direction: 0, Results: 0},
		{At: "2024-01-01T00:00:02Z", Kind: service.KindHints, Source: "ws", X: 5, Y: 5, Direction: 1, Results: 1},
		{At: "2024-01-01T00:00:03Z", Kind: service.KindNames, Source: "http", Direction: -1, IDs: []uint32{10}, Lang: "fr", Results: 1},
	}
	for _, e := range entries {
		if err := idx.WriteQuery(e); err != nil {
			t.Fatalf("WriteQuery: %v", err)
		}
	}
	idx.RecordSnapshot("/data/index.snap.zst", snapshot.Header{Version: 1, HintsDigest: "h", NamesDigest: "n"})
	waitDrained(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	recent, err := idx.RecentQueries(10)
	if err != nil {
		t.Fatalf("RecentQueries: %v", err)
	}
	if len(recent) != 4 || recent[0].Kind != service.KindNames || recent[0].IDsJSON != "[10]" {
		t.Fatalf("recent mismatch: %+v", recent)
	}

	spots, err := idx.HotSpots(10)
	if err != nil {
		t.Fatalf("HotSpots: %v", err)
	}
	if len(spots) != 2 || spots[0].X != 2 || spots[0].Count != 2 || spots[0].Empty != 1 {
		t.Fatalf("hot spots mismatch: %+v", spots)
	}

	snaps, err := idx.Snapshots(10)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].HintsDigest != "h" || snaps[0].Path != "/data/index.snap.zst" || snaps[0].LoadedAt == "" {
		t.Fatalf("snapshots mismatch: %+v", snaps)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	cats := &catalogs.Catalogs{HintsDigest: "h", NamesDigest: "n", Excluded: []string{"1,1"}}
	info := service.Info{HintsDigest: "h", NamesDigest: "n", Source: "json"}
	for i := 0; i < 2; i++ {
		if err := idx.UpsertCatalogs(info, cats); err != nil {
			t.Fatalf("UpsertCatalogs: %v", err)
		}
	}
	rows, err := idx.Catalogs()
	if err != nil {
		t.Fatalf("Catalogs: %v", err)
	}
	if len(rows) != 3 || rows[0].Name != "excluded" || rows[1].Name != "info" || rows[1].Digest != "h:n" {
		t.Fatalf("catalog rows: %+v", rows)
	}
	if v, err := idx.Meta("schema_version"); err != nil || v != "1" {
		t.Fatalf("schema_version=%q err=%v", v, err)
	}
	if v, err := idx.Meta("missing"); err != nil || v != "" {
		t.Fatalf("missing meta=%q err=%v", v, err)
	}
}
