package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/persistence/indexdb"
	"huntforge.ai/internal/persistence/snapshot"
)

type runtimeIndex interface {
	service.QueryLogger
	Close() error
	UpsertCatalogs(info service.Info, cats *catalogs.Catalogs) error
	RecordSnapshot(path string, hdr snapshot.Header)
}

// openRuntimeIndex opens the read-model index. HF_INDEX_BACKEND overrides the
// configured backend.
func openRuntimeIndex(runtimeDir, backend string) (runtimeIndex, error) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("HF_INDEX_BACKEND"))); v != "" {
		backend = v
	}
	if backend == "" {
		backend = "none"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(runtimeDir, "index", "queries.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported HF_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
