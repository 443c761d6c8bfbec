package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"huntforge.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	runtimeDir := fs.String("runtime", "./runtime", "runtime directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <runtime>/index/queries.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	key := fs.String("key", "schema_version", "meta key")
	_ = fs.Parse(args)

	q := "queries"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*runtimeDir, "index", "queries.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	if *limit <= 0 {
		*limit = 20
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	var rows any
	switch q {
	case "queries":
		rows, err = idx.RecentQueries(*limit)
	case "hotspots":
		rows, err = idx.HotSpots(*limit)
	case "catalogs":
		rows, err = idx.Catalogs()
	case "snapshots":
		rows, err = idx.Snapshots(*limit)
	case "meta":
		var v string
		v, err = idx.Meta(*key)
		rows = map[string]string{"key": *key, "value": v}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-runtime ./runtime|-db PATH] [-limit N] queries|hotspots|catalogs|snapshots|meta")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printRows(rows)
}

// printRows prints slices one JSON object per line.
func printRows(v any) {
	switch rs := v.(type) {
	case []indexdb.QueryRow:
		for _, r := range rs {
			printJSON(r)
		}
	case []indexdb.HotSpot:
		for _, r := range rs {
			printJSON(r)
		}
	case []indexdb.CatalogRow:
		for _, r := range rs {
			printJSON(r)
		}
	case []indexdb.SnapshotRow:
		for _, r := range rs {
			printJSON(r)
		}
	default:
		printJSON(v)
	}
}
