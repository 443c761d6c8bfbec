package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"huntforge.ai/internal/hunt/service"
	persistlog "huntforge.ai/internal/persistence/log"
	"huntforge.ai/internal/persistence/snapshot"
)

const usage = `usage: admin <command> [flags]

commands:
  db        query the read-model index (queries|hotspots|catalogs|snapshots|meta)
  querylog  summarize the compressed query log
  snapshot  print a compiled index snapshot header
  catalogs  fetch /v1/catalogs from a running server
  health    fetch /healthz from a running server
  hints     query /v1/hints on a running server`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "db":
		dbCmd(os.Args[2:])
	case "querylog":
		queryLogCmd(os.Args[2:])
	case "snapshot":
		snapshotCmd(os.Args[2:])
	case "catalogs":
		getCmd("catalogs", "/v1/catalogs", os.Args[2:])
	case "health":
		getCmd("health", "/healthz", os.Args[2:])
	case "hints":
		hintsCmd(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	path := fs.String("snapshot", "./data/index.snap.zst", "snapshot path")
	_ = fs.Parse(args)

	hdr, err := snapshot.ReadHeader(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read header:", err)
		os.Exit(1)
	}
	var size uint64
	if fi, err := os.Stat(*path); err == nil {
		size = uint64(fi.Size())
	}
	printJSON(struct {
		snapshot.Header
		Size string `json:"size"`
	}{hdr, humanize.Bytes(size)})
}

func queryLogCmd(args []string) {
	fs := flag.NewFlagSet("querylog", flag.ExitOnError)
	runtimeDir := fs.String("runtime", "./runtime", "runtime directory")
	top := fs.Int("top", 10, "number of hot positions to print")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadQueries(filepath.Join(*runtimeDir, "queries", "queries-*.jsonl.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read query log:", err)
		os.Exit(1)
	}
	printJSON(summarize(entries, *top))
}

type posCount struct {
	Pos   string `json:"pos"`
	Count int    `json:"count"`
	Empty int    `json:"empty"`
}

type logSummary struct {
	Total    int            `json:"total"`
	ByKind   map[string]int `json:"by_kind"`
	BySource map[string]int `json:"by_source"`
	Empty    int            `json:"empty"`
	First    string         `json:"first,omitempty"`
	Last     string         `json:"last,omitempty"`
	Hot      []posCount     `json:"hot"`
}

// summarize aggregates query log entries. Hot positions are "x,y/direction"
// hint queries ordered by count.
func summarize(entries []service.QueryLogEntry, top int) logSummary {
	s := logSummary{ByKind: map[string]int{}, BySource: map[string]int{}, Hot: []posCount{}}
	hot := map[string]*posCount{}
	for _, e := range entries {
		s.Total++
		s.ByKind[e.Kind]++
		s.BySource[e.Source]++
		if e.Results == 0 {
			s.Empty++
		}
		if s.First == "" || e.At < s.First {
			s.First = e.At
		}
		if e.At > s.Last {
			s.Last = e.At
		}
		if e.Kind != service.KindHints {
			continue
		}
		key := fmt.Sprintf("%d,%d/%d", e.X, e.Y, e.Direction)
		p := hot[key]
		if p == nil {
			p = &posCount{Pos: key}
			hot[key] = p
		}
		p.Count++
		if e.Results == 0 {
			p.Empty++
		}
	}
	for _, p := range hot {
		s.Hot = append(s.Hot, *p)
	}
	sort.Slice(s.Hot, func(i, j int) bool {
		if s.Hot[i].Count != s.Hot[j].Count {
			return s.Hot[i].Count > s.Hot[j].Count
		}
		return strings.Compare(s.Hot[i].Pos, s.Hot[j].Pos) < 0
	})
	if top >= 0 && len(s.Hot) > top {
		s.Hot = s.Hot[:top]
	}
	return s
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
