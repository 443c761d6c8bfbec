package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"huntforge.ai/internal/config"
	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/persistence/snapshot"
)

const (
	sourceSnapshot = "snapshot"
	sourceCatalogs = "catalogs"
)

// loadedIndex is the index to serve and where it came from. Exactly one of
// cats and snapPath is set.
type loadedIndex struct {
	ix   *index.Index
	info service.Info

	cats *catalogs.Catalogs

	snapPath string
	header   snapshot.Header
}

// loadIndex prefers the compiled snapshot and falls back to building from the
// data directory when no snapshot exists.
func loadIndex(cfg config.Config, logger *log.Logger) (*loadedIndex, error) {
	lang, ok := index.ParseLanguage(cfg.DefaultLanguage)
	if !ok {
		lang = index.DefaultLanguage
	}
	opts := service.IndexOptions(lang, logger)

	if p := cfg.SnapshotPath; p != "" {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			snap, err := snapshot.ReadIndex(p)
			if err != nil {
				return nil, fmt.Errorf("read snapshot: %w", err)
			}
			ix, err := index.FromSnapshot(snap, opts)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", p, err)
			}
			return &loadedIndex{
				ix: ix,
				info: service.Info{
					HintsDigest: snap.Header.HintsDigest,
					NamesDigest: snap.Header.NamesDigest,
					BuiltAt:     snap.Header.BuiltAt,
					Source:      sourceSnapshot,
				},
				snapPath: p,
				header:   snap.Header,
			}, nil
		case errors.Is(err, os.ErrNotExist):
			if logger != nil {
				logger.Printf("snapshot %s not found; building from %s", p, cfg.DataDir)
			}
		default:
			return nil, err
		}
	}

	cats, err := catalogs.Load(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	ix, err := index.Build(cats.Hints, cats.Names, opts)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return &loadedIndex{
		ix: ix,
		info: service.Info{
			HintsDigest: cats.HintsDigest,
			NamesDigest: cats.NamesDigest,
			Source:      sourceCatalogs,
		},
		cats: cats,
	}, nil
}
