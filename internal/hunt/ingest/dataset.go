package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/index"
)

// Bounds is the inclusive coordinate range to capture.
type Bounds struct {
	MinX, MinY, MaxX, MaxY int32
}

// DefaultBounds covers the whole game map.
var DefaultBounds = Bounds{MinX: -88, MinY: -70, MaxX: 36, MaxY: 48}

// Pending lists the coordinates inside b that are neither excluded nor hold any
// captured direction, in row-major order.
func (d *Dataset) Pending(b Bounds) []index.Coord {
	var out []index.Coord
	for y := b.MinY; y <= b.MaxY; y++ {
		for x := b.MinX; x <= b.MaxX; x++ {
			c := index.Coord{X: x, Y: y}
			if d.Excluded[c] {
				continue
			}
			if s := d.Hints[c]; s != nil && s.captured() {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

func (s *Slots) captured() bool {
	for _, slot := range s {
		if slot != nil {
			return true
		}
	}
	return false
}

// Save writes data.json, nameIdData.json and excludedCoordinates.json to dir.
func (d *Dataset) Save(dir string) error {
	return d.save(dir, "", nil)
}

// SaveZstd writes the same tables as Save, zstd compressed with a ".zst" suffix.
func (d *Dataset) SaveZstd(dir string) error {
	return d.save(dir, ".zst", func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
}

func (d *Dataset) save(dir, suffix string, wrap func(io.Writer) (io.WriteCloser, error)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	hints := make(map[string]*Slots, len(d.Hints))
	for c, s := range d.Hints {
		hints[c.Key()] = s
	}
	names := make(map[string]map[string]string, len(d.Names))
	for id, rec := range d.Names {
		names[strconv.FormatUint(uint64(id), 10)] = rec
	}
	excluded := make([]string, 0, len(d.Excluded))
	for c := range d.Excluded {
		excluded = append(excluded, c.Key())
	}
	sort.Strings(excluded)

	for _, f := range []struct {
		name string
		v    any
	}{
		{catalogs.HintsFile, hints},
		{catalogs.NamesFile, names},
		{catalogs.ExcludedFile, excluded},
	} {
		if err := writeJSON(filepath.Join(dir, f.name+suffix), f.v, wrap); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		// The loader prefers the plain file, so drop the other encoding.
		other := filepath.Join(dir, f.name)
		if suffix == "" {
			other += ".zst"
		}
		if err := os.Remove(other); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any, wrap func(io.Writer) (io.WriteCloser, error)) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	var w io.Writer = f
	var zw io.WriteCloser
	if wrap != nil {
		if zw, err = wrap(f); err != nil {
			return fail(err)
		}
		w = zw
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fail(err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fail(err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadDataset reads a dataset previously written by Save or SaveZstd. Every
// loaded coordinate with a captured direction counts as fully captured.
func LoadDataset(dir string) (*Dataset, error) {
	cats, err := catalogs.Load(dir)
	if err != nil {
		return nil, err
	}
	d := NewDataset()

	for k, raw := range cats.Hints {
		c, err := index.ParseCoord(k)
		if err != nil {
			return nil, err
		}
		if _, dup := d.Hints[c]; dup {
			return nil, fmt.Errorf("%w: %q", index.ErrDupCoord, k)
		}
		var slots []json.RawMessage
		if err := json.Unmarshal(raw, &slots); err != nil || len(slots) != index.NumDirections {
			return nil, fmt.Errorf("coordinate %s: %w", k, index.ErrBadShape)
		}
		s := &Slots{}
		for i, slot := range slots {
			if err := json.Unmarshal(slot, &s[i]); err != nil {
				return nil, fmt.Errorf("coordinate %s slot %d: %w", k, i, err)
			}
		}
		d.Hints[c] = s
		if s.captured() {
			d.captured[c] = 0xF
		}
	}

	for k, raw := range cats.Names {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			continue
		}
		var rec map[string]string
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		d.Names[uint32(id)] = rec
	}

	for _, k := range cats.Excluded {
		c, err := index.ParseCoord(k)
		if err != nil {
			return nil, err
		}
		d.Excluded[c] = true
		d.captured[c] = 0xF
	}
	return d, nil
}
