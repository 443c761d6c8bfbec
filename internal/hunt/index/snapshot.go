package index

import (
	"errors"
	"fmt"
	"sort"

	"huntforge.ai/internal/persistence/snapshot"
)

var ErrLanguageMismatch = errors.New("snapshot language set does not match")

// Export converts the index into its compiled snapshot form. The caller fills in
// the source digests.
func (ix *Index) Export() snapshot.IndexV1 {
	out := snapshot.IndexV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			Languages: LanguageCodes(),
		},
		Stats: snapshot.StatsV1(ix.stats),
	}

	coords := make([]Coord, 0, len(ix.tables))
	for c := range ix.tables {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Y < coords[j].Y
	})
	out.Coords = make([]snapshot.CoordV1, 0, len(coords))
	for _, c := range coords {
		t := ix.tables[c]
		cv := snapshot.CoordV1{X: c.X, Y: c.Y}
		for d := 0; d < NumDirections; d++ {
			if len(t[d]) == 0 {
				continue
			}
			steps := make([]snapshot.StepV1, 0, len(t[d]))
			for _, s := range t[d] {
				ids := make([]uint32, len(s.IDs))
				for i, id := range s.IDs {
					ids[i] = uint32(id)
				}
				steps = append(steps, snapshot.StepV1{D: s.Distance, X: s.X, Y: s.Y, IDs: ids})
			}
			cv.Dirs[d] = steps
		}
		out.Coords = append(out.Coords, cv)
	}

	ids := make([]HintID, 0, len(ix.names))
	for id := range ix.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out.Names = make([]snapshot.NameV1, 0, len(ids))
	for _, id := range ids {
		r := ix.names[id]
		out.Names = append(out.Names, snapshot.NameV1{
			ID:    uint32(id),
			Names: append([]string(nil), r.names...),
		})
	}
	return out
}

// FromSnapshot rebuilds an Index from its compiled form.
func FromSnapshot(snap snapshot.IndexV1, opts Options) (*Index, error) {
	codes := LanguageCodes()
	if len(snap.Header.Languages) != len(codes) {
		return nil, fmt.Errorf("%w: got %v want %v", ErrLanguageMismatch, snap.Header.Languages, codes)
	}
	for i := range codes {
		if snap.Header.Languages[i] != codes[i] {
			return nil, fmt.Errorf("%w: got %v want %v", ErrLanguageMismatch, snap.Header.Languages, codes)
		}
	}

	ix := newIndex(opts)
	ix.stats = BuildStats(snap.Stats)

	ix.tables = make(map[Coord]*DirectionTable, len(snap.Coords))
	for _, cv := range snap.Coords {
		c := Coord{X: cv.X, Y: cv.Y}
		if _, dup := ix.tables[c]; dup {
			return nil, fmt.Errorf("snapshot: duplicate coordinate %s", c.Key())
		}
		var t DirectionTable
		for d := 0; d < NumDirections; d++ {
			if len(cv.Dirs[d]) == 0 {
				continue
			}
			steps := make([]HintStep, 0, len(cv.Dirs[d]))
			for _, s := range cv.Dirs[d] {
				ids := make([]HintID, len(s.IDs))
				for i, id := range s.IDs {
					ids[i] = HintID(id)
				}
				steps = append(steps, HintStep{Distance: s.D, X: s.X, Y: s.Y, IDs: ids})
			}
			t[d] = steps
		}
		ix.tables[c] = &t
	}

	arena := make([]string, len(snap.Names)*len(Languages))
	records := make([]NameRecord, len(snap.Names))
	ix.names = make(map[HintID]*NameRecord, len(snap.Names))
	for i, n := range snap.Names {
		if len(n.Names) != len(Languages) {
			return nil, fmt.Errorf("snapshot: name record %d has %d entries", n.ID, len(n.Names))
		}
		names := arena[i*len(Languages) : (i+1)*len(Languages) : (i+1)*len(Languages)]
		copy(names, n.Names)
		records[i] = NameRecord{names: names}
		ix.names[HintID(n.ID)] = &records[i]
	}
	return ix, nil
}
