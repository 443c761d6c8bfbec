package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"huntforge.ai/internal/config"
	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	persistarchive "huntforge.ai/internal/persistence/archive"
	"huntforge.ai/internal/persistence/r2s3"
	"huntforge.ai/internal/persistence/snapshot"
)

func main() {
	var (
		cfgPath = flag.String("config", "./configs/huntforge.yaml", "config file (empty for defaults)")
		dataDir = flag.String("data", "", "directory holding data.json and nameIdData.json (overrides config)")
		outPath = flag.String("out", "", "snapshot output path (overrides config snapshot_path)")
		verify  = flag.Bool("verify", true, "read the snapshot back and compare it with the built index")
		archive = flag.Bool("archive", true, "copy the previous snapshot into <snapshot dir>/archives before replacing it")
		publish = flag.Bool("publish", false, "upload the snapshot to object storage (HF_R2_* env)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[compile] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(*outPath); v != "" {
		cfg.SnapshotPath = v
	}
	if cfg.SnapshotPath == "" {
		logger.Fatalf("missing -out (or snapshot_path in config)")
	}

	if *archive {
		root := filepath.Join(filepath.Dir(cfg.SnapshotPath), "archives")
		if p, ok, err := persistarchive.ArchiveSnapshot(root, cfg.SnapshotPath); err != nil {
			logger.Fatalf("archive previous snapshot: %v", err)
		} else if ok {
			logger.Printf("archived previous snapshot to %s", p)
		}
	}

	res, err := compile(cfg, logger, time.Now())
	if err != nil {
		logger.Fatalf("compile: %v", err)
	}
	st := res.stats
	logger.Printf("built %s coordinates, %s steps, %s ids, %s names",
		humanize.Comma(int64(st.Coords)), humanize.Comma(int64(st.Steps)), humanize.Comma(int64(st.IDs)), humanize.Comma(int64(st.Names)))
	if st.DroppedSteps+st.DroppedIDs+st.DroppedNames > 0 {
		logger.Printf("dropped %d steps, %d ids, %d names", st.DroppedSteps, st.DroppedIDs, st.DroppedNames)
	}
	logger.Printf("wrote %s (%s, sources %s)", cfg.SnapshotPath, humanize.Bytes(uint64(res.size)), humanize.Bytes(uint64(res.sourceSize)))

	if *verify {
		if err := verifySnapshot(cfg.SnapshotPath, res.header); err != nil {
			logger.Fatalf("verify: %v", err)
		}
		logger.Printf("verify ok")
	}

	if *publish {
		key, err := publishSnapshot(cfg.SnapshotPath)
		if err != nil {
			logger.Fatalf("publish: %v", err)
		}
		logger.Printf("published %s", key)
	}
}

// publishSnapshot uploads the snapshot as snapshots/<file name>.
func publishSnapshot(path string) (string, error) {
	client, err := r2s3.NewFromEnv()
	if err != nil {
		return "", err
	}
	if client == nil {
		return "", fmt.Errorf("HF_R2_ENDPOINT is not set")
	}
	key := "snapshots/" + filepath.Base(path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return key, client.PutFile(ctx, key, path)
}

type result struct {
	header     snapshot.Header
	stats      index.BuildStats
	size       int64
	sourceSize int64
}

// compile builds the index from cfg.DataDir and writes it to cfg.SnapshotPath.
func compile(cfg config.Config, logger *log.Logger, now time.Time) (result, error) {
	var res result
	lang, ok := index.ParseLanguage(cfg.DefaultLanguage)
	if !ok {
		lang = index.DefaultLanguage
	}

	cats, err := catalogs.Load(cfg.DataDir)
	if err != nil {
		return res, err
	}
	ix, err := index.Build(cats.Hints, cats.Names, service.IndexOptions(lang, logger))
	if err != nil {
		return res, err
	}

	snap := ix.Export()
	snap.Header.HintsDigest = cats.HintsDigest
	snap.Header.NamesDigest = cats.NamesDigest
	snap.Header.BuiltAt = now.UTC().Format(time.RFC3339)
	if err := snapshot.WriteIndex(cfg.SnapshotPath, snap); err != nil {
		return res, fmt.Errorf("write snapshot: %w", err)
	}

	res.header = snap.Header
	res.stats = ix.Stats()
	if fi, err := os.Stat(cfg.SnapshotPath); err == nil {
		res.size = fi.Size()
	}
	for _, p := range []string{cats.HintsPath, cats.NamesPath} {
		if fi, err := os.Stat(p); err == nil {
			res.sourceSize += fi.Size()
		}
	}
	return res, nil
}

func verifySnapshot(path string, want snapshot.Header) error {
	snap, err := snapshot.ReadIndex(path)
	if err != nil {
		return err
	}
	if snap.Header.HintsDigest != want.HintsDigest || snap.Header.NamesDigest != want.NamesDigest {
		return fmt.Errorf("digest mismatch: got %s/%s want %s/%s",
			snap.Header.HintsDigest, snap.Header.NamesDigest, want.HintsDigest, want.NamesDigest)
	}
	if _, err := index.FromSnapshot(snap, index.Options{}); err != nil {
		return err
	}
	return nil
}
