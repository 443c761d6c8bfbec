package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"huntforge.ai/internal/persistence/snapshot"
)

func TestArchiveSnapshot_CopiesCurrentSnapshot(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "index.snap.zst")
	snap := snapshot.IndexV1{Header: snapshot.Header{
		Version:     snapshot.Version,
		HintsDigest: "0123456789abcdef",
		NamesDigest: "n",
		BuiltAt:     "2026-02-03T04:05:06Z",
	}}
	if err := snapshot.WriteIndex(src, snap); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	root := filepath.Join(dir, "archives")
	archivedPath, ok, err := ArchiveSnapshot(root, src)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok {
		t.Fatalf("expected archived=true")
	}
	if want := filepath.Join(root, "20260203T040506Z_01234567", "index.snap.zst"); archivedPath != want {
		t.Fatalf("archivedPath=%s want %s", archivedPath, want)
	}

	want, _ := os.ReadFile(src)
	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("archived content mismatch")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(archivedPath), "meta.json")); err != nil {
		t.Fatalf("expected meta.json to exist: %v", err)
	}
}

func TestArchiveSnapshot_MissingSnapshot(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ArchiveSnapshot(filepath.Join(dir, "archives"), filepath.Join(dir, "none.snap.zst"))
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v want no-op", ok, err)
	}
}
