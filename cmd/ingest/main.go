package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/zstd"

	"huntforge.ai/internal/config"
	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/ingest"
)

func main() {
	var (
		cfgPath     = flag.String("config", "./configs/huntforge.yaml", "config file (empty for defaults)")
		dataDir     = flag.String("data", "", "dataset directory to update (overrides config data_dir)")
		compressed  = flag.Bool("zstd", false, "write the dataset as .zst files")
		pendingPath = flag.String("pending_out", "", "write pending coordinates (x,y per line) to this file")
		retryPath   = flag.String("retry_out", "", "write blocked (x,y,direction) requests to this file")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.DataDir = v
	}
	if cfg.DataDir == "" {
		logger.Fatalf("missing -data (or data_dir in config)")
	}

	inputs, err := expandInputs(flag.Args())
	if err != nil {
		logger.Fatalf("inputs: %v", err)
	}

	d, err := openDataset(cfg.DataDir, logger)
	if err != nil {
		logger.Fatalf("open dataset: %v", err)
	}
	for _, p := range inputs {
		if err := ingestFile(d, p, logger); err != nil {
			logger.Fatalf("%s: %v", p, err)
		}
	}

	save := d.Save
	if *compressed {
		save = d.SaveZstd
	}
	if err := save(cfg.DataDir); err != nil {
		logger.Fatalf("save: %v", err)
	}

	st := d.Stats()
	logger.Printf("applied %s responses from %d files: blocked=%d unknown_direction=%d merged_steps=%d new_names=%d excluded=%d",
		humanize.Comma(int64(st.Responses)), len(inputs), st.Blocked, st.UnknownDirection, st.MergedSteps, st.NewNames, st.Excluded)
	logger.Printf("dataset: %s coordinates, %s names, %s excluded",
		humanize.Comma(int64(len(d.Hints))), humanize.Comma(int64(len(d.Names))), humanize.Comma(int64(len(d.Excluded))))

	b := cfg.Bounds
	pending := d.Pending(ingest.Bounds{MinX: int32(b.MinX), MinY: int32(b.MinY), MaxX: int32(b.MaxX), MaxY: int32(b.MaxY)})
	retries := d.Retries()
	logger.Printf("pending coordinates: %s, blocked requests to retry: %s",
		humanize.Comma(int64(len(pending))), humanize.Comma(int64(len(retries))))

	if *pendingPath != "" {
		lines := make([]string, 0, len(pending))
		for _, c := range pending {
			lines = append(lines, c.Key())
		}
		if err := writeLines(*pendingPath, lines); err != nil {
			logger.Fatalf("pending: %v", err)
		}
	}
	if *retryPath != "" {
		lines := make([]string, 0, len(retries))
		for _, r := range retries {
			lines = append(lines, fmt.Sprintf("%s,%d", r.Coord.Key(), int(r.Direction)))
		}
		if err := writeLines(*retryPath, lines); err != nil {
			logger.Fatalf("retries: %v", err)
		}
	}
}

// openDataset loads the dataset in dir, or starts an empty one when dir holds none.
func openDataset(dir string, logger *log.Logger) (*ingest.Dataset, error) {
	if !tableExists(dir, catalogs.HintsFile) && !tableExists(dir, catalogs.NamesFile) {
		if logger != nil {
			logger.Printf("no dataset in %s; starting empty", dir)
		}
		return ingest.NewDataset(), nil
	}
	return ingest.LoadDataset(dir)
}

func tableExists(dir, name string) bool {
	for _, p := range []string{name, name + ".zst"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err == nil {
			return true
		}
	}
	return false
}

// expandInputs resolves glob arguments into a sorted, de-duplicated file list.
func expandInputs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, a := range args {
		matches, err := filepath.Glob(a)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s", a)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// ingestFile applies every response in a JSONL file (".zst" compressed or plain).
// Blocked and unknown-direction responses are logged and skipped.
func ingestFile(d *ingest.Dataset, path string, logger *log.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer dec.Close()
		r = dec
	}

	return ingest.ReadResponses(r, func(resp ingest.Response) error {
		err := d.Apply(resp)
		switch {
		case err == nil:
		case errors.Is(err, ingest.ErrBlocked), errors.Is(err, ingest.ErrUnknownDirection):
			if logger != nil {
				logger.Printf("skip: %v", err)
			}
		default:
			return err
		}
		return nil
	})
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
