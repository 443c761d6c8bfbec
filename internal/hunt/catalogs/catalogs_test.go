package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_PlainFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, HintsFile), `{"2,3":[null,null,null,null]}`)
	writeFile(t, filepath.Join(dir, NamesFile), `{"10":{"en":"Fountain"}}`)
	writeFile(t, filepath.Join(dir, ExcludedFile), `["9,9","1,1"]`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Hints) != 1 || len(c.Names) != 1 {
		t.Fatalf("unexpected tables: hints=%d names=%d", len(c.Hints), len(c.Names))
	}
	if len(c.HintsDigest) != 64 || c.HintsDigest == c.NamesDigest {
		t.Fatalf("bad digests: %q %q", c.HintsDigest, c.NamesDigest)
	}
	if len(c.Excluded) != 2 || c.Excluded[0] != "1,1" {
		t.Fatalf("excluded=%v", c.Excluded)
	}
}

func TestLoad_ZstdFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, NamesFile), `{}`)

	f, err := os.Create(filepath.Join(dir, HintsFile+".zst"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	if _, err := enc.Write([]byte(`{"0,0":[null,null,null,null]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = enc.Close()
	_ = f.Close()

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := c.Hints["0,0"]; !ok {
		t.Fatalf("expected 0,0 from compressed file: %v", c.Hints)
	}
	if filepath.Ext(c.HintsPath) != ".zst" {
		t.Fatalf("HintsPath=%s", c.HintsPath)
	}
	if c.Excluded != nil {
		t.Fatalf("excluded should be empty, got %v", c.Excluded)
	}
}

func TestLoad_MissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want ErrNotExist", err)
	}

	writeFile(t, filepath.Join(dir, HintsFile), `[1,2,3]`)
	writeFile(t, filepath.Join(dir, NamesFile), `{}`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for non-object hints table")
	}

	writeFile(t, filepath.Join(dir, HintsFile), `{"0,0":`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for truncated hints table")
	}
}
