package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
)

var (
	ErrBadShape = errors.New("coordinates should have 4 directions")
	ErrBadCoord = errors.New("malformed coordinate key")
	ErrDupCoord = errors.New("duplicate coordinate key")
	ErrBadSlot  = errors.New("malformed direction slot")
)

type Options struct {
	// DefaultLanguage is used by Names when the requested code is not supported.
	DefaultLanguage Language
	Logger          *log.Logger
	// OnMissingName is called for every (step, id) pair skipped for lack of a name record.
	OnMissingName func(id HintID)
}

type BuildStats struct {
	Coords int `json:"coords"`
	Steps  int `json:"steps"`
	IDs    int `json:"ids"`
	Names  int `json:"names"`

	DroppedSteps int `json:"dropped_steps"`
	DroppedIDs   int `json:"dropped_ids"`
	DroppedNames int `json:"dropped_names"`
}

// Index is the immutable directional hint index. It is safe for concurrent use.
type Index struct {
	tables map[Coord]*DirectionTable
	names  map[HintID]*NameRecord

	defaultLang Language
	stats       BuildStats

	log       *log.Logger
	onMissing func(HintID)
}

// Build constructs an Index from the raw hint-step table ("x,y" -> 4 slots) and the
// raw name table (id -> {lang: string}). Shape errors and keys that normalize to the
// same coordinate are fatal; malformed steps, ids and name records are dropped and
// counted in Stats.
func Build(hints, names map[string]json.RawMessage, opts Options) (*Index, error) {
	ix := newIndex(opts)

	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ix.tables = make(map[Coord]*DirectionTable, len(keys))
	for _, k := range keys {
		c, err := ParseCoord(k)
		if err != nil {
			return nil, err
		}
		if _, dup := ix.tables[c]; dup {
			return nil, fmt.Errorf("%w: %q duplicates coordinate %d,%d", ErrDupCoord, k, c.X, c.Y)
		}
		t, err := buildTable(hints[k], &ix.stats)
		if err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", k, err)
		}
		ix.tables[c] = t
	}
	ix.stats.Coords = len(ix.tables)

	ix.names = buildNames(names, &ix.stats)
	ix.stats.Names = len(ix.names)
	return ix, nil
}

func newIndex(opts Options) *Index {
	def := opts.DefaultLanguage
	if _, ok := languageSlot(def); !ok {
		def = DefaultLanguage
	}
	return &Index{
		defaultLang: def,
		log:         opts.Logger,
		onMissing:   opts.OnMissingName,
	}
}

func buildTable(raw json.RawMessage, st *BuildStats) (*DirectionTable, error) {
	var slots []json.RawMessage
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	if len(slots) != NumDirections {
		return nil, fmt.Errorf("%w, found: %d", ErrBadShape, len(slots))
	}

	var t DirectionTable
	for d, slot := range slots {
		steps, err := buildSlot(slot, st)
		if err != nil {
			return nil, fmt.Errorf("direction %d: %w", d, err)
		}
		t[d] = steps
	}
	return &t, nil
}

func buildSlot(raw json.RawMessage, st *BuildStats) ([]HintStep, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSlot, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	steps := make([]HintStep, 0, len(items))
	for _, item := range items {
		step, ok := parseStep(item, st)
		if !ok {
			st.DroppedSteps++
			continue
		}
		steps = append(steps, step)
	}
	st.Steps += len(steps)
	if len(steps) == 0 {
		return nil, nil
	}
	return steps, nil
}

func parseStep(raw json.RawMessage, st *BuildStats) (HintStep, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return HintStep{}, false
	}

	d := intOrZero(fields["d"])
	if d < 0 || d > math.MaxUint32 {
		return HintStep{}, false
	}
	x := intOrZero(fields["x"])
	if x < math.MinInt32 || x > math.MaxInt32 {
		return HintStep{}, false
	}
	y := intOrZero(fields["y"])
	if y < math.MinInt32 || y > math.MaxInt32 {
		return HintStep{}, false
	}

	step := HintStep{Distance: uint32(d), X: int32(x), Y: int32(y)}

	var rawIDs []json.RawMessage
	if v, ok := fields["ids"]; ok {
		if err := json.Unmarshal(v, &rawIDs); err != nil {
			rawIDs = nil
		}
	}
	step.IDs = make([]HintID, 0, len(rawIDs))
	for _, r := range rawIDs {
		id, ok := asInt64(r)
		if !ok || id < 0 || id > math.MaxUint32 {
			st.DroppedIDs++
			continue
		}
		step.IDs = append(step.IDs, HintID(id))
	}
	st.IDs += len(step.IDs)
	return step, true
}

func buildNames(raw map[string]json.RawMessage, st *BuildStats) map[HintID]*NameRecord {
	type entry struct {
		id     HintID
		fields map[string]json.RawMessage
	}
	entries := make([]entry, 0, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			st.DroppedNames++
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(v, &fields); err != nil || fields == nil {
			st.DroppedNames++
			continue
		}
		entries = append(entries, entry{id: HintID(id), fields: fields})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	// All strings live in one backing slice; records slice into it.
	arena := make([]string, len(entries)*len(Languages))
	records := make([]NameRecord, len(entries))
	out := make(map[HintID]*NameRecord, len(entries))
	for i, e := range entries {
		names := arena[i*len(Languages) : (i+1)*len(Languages) : (i+1)*len(Languages)]
		for slot, l := range Languages {
			var s string
			if v, ok := e.fields[string(l)]; ok {
				_ = json.Unmarshal(v, &s)
			}
			names[slot] = s
		}
		records[i] = NameRecord{names: names}
		out[e.id] = &records[i]
	}
	return out
}

// intOrZero reads a JSON integer. Missing, null, fractional and non-numeric
// values read as 0.
func intOrZero(raw json.RawMessage) int64 {
	i, ok := asInt64(raw)
	if !ok {
		return 0
	}
	return i
}

func asInt64(raw json.RawMessage) (int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}
