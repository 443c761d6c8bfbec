package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"huntforge.ai/internal/persistence/snapshot"
)

type SnapshotArchiveMeta struct {
	Snapshot    string `json:"snapshot"`
	HintsDigest string `json:"hints_digest"`
	NamesDigest string `json:"names_digest"`
	BuiltAt     string `json:"built_at"`
	ArchivedAt  string `json:"archived_at"`
}

// ArchiveSnapshot copies the snapshot at snapshotPath into
// `archiveRoot/<built_at>_<hints digest prefix>/` before it gets replaced.
// A missing snapshot is not an error; archived reports whether a copy was made.
// Archiving the same build twice reuses the existing directory.
func ArchiveSnapshot(archiveRoot, snapshotPath string) (archivedPath string, archived bool, err error) {
	hdr, err := snapshot.ReadHeader(snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read snapshot header: %w", err)
	}

	archiveDir := filepath.Join(archiveRoot, archiveName(hdr))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := SnapshotArchiveMeta{
		Snapshot:    filepath.Base(dst),
		HintsDigest: hdr.HintsDigest,
		NamesDigest: hdr.NamesDigest,
		BuiltAt:     hdr.BuiltAt,
		ArchivedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func archiveName(hdr snapshot.Header) string {
	built := "unknown"
	if t, err := time.Parse(time.RFC3339, hdr.BuiltAt); err == nil {
		built = t.UTC().Format("20060102T150405Z")
	}
	digest := hdr.HintsDigest
	if len(digest) > 8 {
		digest = digest[:8]
	}
	if digest == "" {
		digest = "nodigest"
	}
	return strings.Join([]string{built, digest}, "_")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
