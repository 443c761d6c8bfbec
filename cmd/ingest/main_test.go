package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"huntforge.ai/internal/hunt/index"
)

const responses = `{"x":0,"y":0,"direction":6,"status":200,"data":[{"distance":2,"posX":0,"posY":-2,"pois":[{"nameId":7,"name":{"id":7,"en":"Anchor","fr":"Ancre"}}]}]}
{"x":0,"y":0,"direction":0,"status":503}
{"x":0,"y":0,"direction":5,"status":200}
`

func writeZstd(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	if _, err := enc.Write([]byte(content)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestIngestFile_CompressedAndPlain(t *testing.T) {
	in := t.TempDir()
	data := t.TempDir()
	writeZstd(t, filepath.Join(in, "a.jsonl.zst"), responses)
	if err := os.WriteFile(filepath.Join(in, "b.jsonl"), []byte(`{"x":1,"y":0,"direction":4,"status":200}`+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	paths, err := expandInputs([]string{filepath.Join(in, "*.jsonl*"), filepath.Join(in, "a.jsonl.zst")})
	if err != nil || len(paths) != 2 {
		t.Fatalf("expandInputs=%v err=%v", paths, err)
	}
	if _, err := expandInputs([]string{filepath.Join(in, "missing-*.jsonl")}); err == nil {
		t.Fatalf("expected error for unmatched glob")
	}

	d, err := openDataset(data, nil)
	if err != nil {
		t.Fatalf("openDataset: %v", err)
	}
	for _, p := range paths {
		if err := ingestFile(d, p, nil); err != nil {
			t.Fatalf("ingestFile %s: %v", p, err)
		}
	}
	st := d.Stats()
	if st.Responses != 4 || st.Blocked != 1 || st.UnknownDirection != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if len(d.Retries()) != 1 || d.Names[7]["fr"] != "Ancre" {
		t.Fatalf("retries=%v names=%v", d.Retries(), d.Names)
	}

	if err := d.SaveZstd(data); err != nil {
		t.Fatalf("SaveZstd: %v", err)
	}
	back, err := openDataset(data, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s := back.Hints[index.Coord{X: 0, Y: 0}]; s == nil || len(s[index.North]) != 1 {
		t.Fatalf("reloaded hints=%+v", back.Hints)
	}

	if err := back.Save(data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(data, "data.json.zst")); !os.IsNotExist(err) {
		t.Fatalf("stale compressed table should be removed: %v", err)
	}
}
