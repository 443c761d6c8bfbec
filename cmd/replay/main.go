package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	persistlog "huntforge.ai/internal/persistence/log"
	"huntforge.ai/internal/persistence/snapshot"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "compiled index to replay against")
		dataDir    = flag.String("data", "", "data directory to build the index from (when -snapshot is empty)")
		runtimeDir = flag.String("runtime", "./runtime", "runtime directory holding queries/queries-*.jsonl.zst")
		maxDiffs   = flag.Int("max_diffs", 20, "stop printing after this many differences")
		strict     = flag.Bool("strict", false, "exit non-zero when any result count differs")
	)
	flag.Parse()

	ix, err := openIndex(strings.TrimSpace(*snapPath), strings.TrimSpace(*dataDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}

	entries, err := persistlog.ReadQueries(filepath.Join(*runtimeDir, "queries", "queries-*.jsonl.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read query log:", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no query log entries found in", *runtimeDir)
		os.Exit(1)
	}

	rep := replay(ix, entries)
	for i, d := range rep.diffs {
		if i >= *maxDiffs {
			fmt.Printf("... %d more\n", len(rep.diffs)-i)
			break
		}
		fmt.Println(d)
	}
	fmt.Printf("replay: checked=%d hints=%d names=%d differing=%d\n", rep.checked, rep.hints, rep.names, len(rep.diffs))
	if *strict && len(rep.diffs) > 0 {
		os.Exit(1)
	}
}

func openIndex(snapPath, dataDir string) (*index.Index, error) {
	switch {
	case snapPath != "":
		snap, err := snapshot.ReadIndex(snapPath)
		if err != nil {
			return nil, err
		}
		return index.FromSnapshot(snap, index.Options{})
	case dataDir != "":
		cats, err := catalogs.Load(dataDir)
		if err != nil {
			return nil, err
		}
		return index.Build(cats.Hints, cats.Names, index.Options{})
	default:
		return nil, fmt.Errorf("missing -snapshot or -data")
	}
}

type report struct {
	checked int
	hints   int
	names   int
	diffs   []string
}

// replay re-answers every logged query and compares result counts with the
// logged ones.
func replay(ix *index.Index, entries []service.QueryLogEntry) report {
	var rep report
	for _, e := range entries {
		var got int
		switch e.Kind {
		case service.KindHints:
			rep.hints++
			got = len(ix.Resolve(index.Coord{X: e.X, Y: e.Y}, index.Direction(e.Direction)))
		case service.KindNames:
			rep.names++
			ids := make([]index.HintID, 0, len(e.IDs))
			for _, id := range e.IDs {
				ids = append(ids, index.HintID(id))
			}
			got = len(ix.Names(ids, e.Lang))
		default:
			continue
		}
		rep.checked++
		if got != e.Results {
			rep.diffs = append(rep.diffs, describe(e, got))
		}
	}
	return rep
}

func describe(e service.QueryLogEntry, got int) string {
	if e.Kind == service.KindNames {
		return fmt.Sprintf("%s names ids=%v lang=%s: logged=%d now=%d", e.At, e.IDs, e.Lang, e.Results, got)
	}
	return fmt.Sprintf("%s hints %d,%d %s: logged=%d now=%d", e.At, e.X, e.Y, index.Direction(e.Direction), e.Results, got)
}
