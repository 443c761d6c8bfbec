package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"huntforge.ai/internal/hunt/index"
)

var (
	ErrUnknownDirection = errors.New("unknown api direction code")
	ErrBlocked          = errors.New("response blocked upstream")
)

// StatusBlocked is returned by the upstream API when a captcha blocks the request.
const StatusBlocked = 503

// apiDirections maps upstream direction codes to index directions.
var apiDirections = map[int]index.Direction{
	6: index.North,
	0: index.East,
	2: index.South,
	4: index.West,
}

// Response is one captured treasure-hunt API answer for a (coordinate, direction).
type Response struct {
	X         int32     `json:"x"`
	Y         int32     `json:"y"`
	Direction int       `json:"direction"`
	Status    int       `json:"status"`
	Data      []APIStep `json:"data"`
}

type APIStep struct {
	Distance uint32 `json:"distance"`
	PosX     int32  `json:"posX"`
	PosY     int32  `json:"posY"`
	Pois     []POI  `json:"pois"`
}

type POI struct {
	NameID uint32         `json:"nameId"`
	Name   map[string]any `json:"name"`
}

// Step is the on-disk form of one hint step in data.json.
type Step struct {
	D   uint32   `json:"d"`
	X   int32    `json:"x"`
	Y   int32    `json:"y"`
	IDs []uint32 `json:"ids"`
}

// Slots holds the four direction slots of one coordinate. A nil slot is written as null.
type Slots [index.NumDirections][]Step

type Retry struct {
	Coord     index.Coord     `json:"coord"`
	Direction index.Direction `json:"direction"`
}

type Stats struct {
	Responses        int `json:"responses"`
	Blocked          int `json:"blocked"`
	UnknownDirection int `json:"unknown_direction"`
	MergedSteps      int `json:"merged_steps"`
	NewNames         int `json:"new_names"`
	Excluded         int `json:"excluded"`
}

// Dataset accumulates captured responses into the hint and name tables.
type Dataset struct {
	Hints    map[index.Coord]*Slots
	Names    map[uint32]map[string]string
	Excluded map[index.Coord]bool

	// captured tracks which directions were seen for a coordinate in this run.
	captured map[index.Coord]uint8
	retry    map[Retry]bool
	stats    Stats
}

func NewDataset() *Dataset {
	return &Dataset{
		Hints:    map[index.Coord]*Slots{},
		Names:    map[uint32]map[string]string{},
		Excluded: map[index.Coord]bool{},
		captured: map[index.Coord]uint8{},
		retry:    map[Retry]bool{},
	}
}

func (d *Dataset) Stats() Stats { return d.stats }

// Retries lists blocked (coordinate, direction) pairs that were never answered.
func (d *Dataset) Retries() []Retry {
	out := make([]Retry, 0, len(d.retry))
	for r := range d.retry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Coord.X != b.Coord.X {
			return a.Coord.X < b.Coord.X
		}
		if a.Coord.Y != b.Coord.Y {
			return a.Coord.Y < b.Coord.Y
		}
		return a.Direction < b.Direction
	})
	return out
}

// Apply merges one response. Blocked responses and unknown direction codes are
// counted and reported with ErrBlocked / ErrUnknownDirection; the dataset is
// unchanged in both cases.
func (d *Dataset) Apply(r Response) error {
	d.stats.Responses++
	c := index.Coord{X: r.X, Y: r.Y}

	dir, ok := apiDirections[r.Direction]
	if !ok {
		d.stats.UnknownDirection++
		return fmt.Errorf("%w: %d at %s", ErrUnknownDirection, r.Direction, c.Key())
	}
	if r.Status == StatusBlocked {
		d.stats.Blocked++
		d.retry[Retry{Coord: c, Direction: dir}] = true
		return fmt.Errorf("%w: %s %s", ErrBlocked, c.Key(), dir)
	}
	delete(d.retry, Retry{Coord: c, Direction: dir})

	data := r.Data
	if r.Status != 0 && (r.Status < 200 || r.Status > 299) {
		data = nil
	}

	slots := d.Hints[c]
	if slots == nil {
		slots = &Slots{}
	}
	if len(data) > 0 {
		delete(d.Excluded, c)
		steps := make([]Step, 0, len(data))
		byDist := map[uint32]int{}
		for _, h := range data {
			ids := make([]uint32, 0, len(h.Pois))
			for _, p := range h.Pois {
				ids = append(ids, p.NameID)
				d.addName(p)
			}
			if i, ok := byDist[h.Distance]; ok {
				steps[i].IDs = append(steps[i].IDs, ids...)
				d.stats.MergedSteps++
				continue
			}
			byDist[h.Distance] = len(steps)
			steps = append(steps, Step{D: h.Distance, X: h.PosX, Y: h.PosY, IDs: ids})
		}
		slots[dir] = steps
	}
	if !d.Excluded[c] {
		d.Hints[c] = slots
	}

	before := d.captured[c]
	d.captured[c] = before | 1<<uint(dir)
	if before != 0xF && d.captured[c] == 0xF && slots.empty() {
		delete(d.Hints, c)
		d.Excluded[c] = true
		d.stats.Excluded++
	}
	return nil
}

// addName records the first name record seen for an id.
func (d *Dataset) addName(p POI) {
	if _, ok := d.Names[p.NameID]; ok {
		return
	}
	rec := make(map[string]string, len(index.Languages))
	for _, l := range index.Languages {
		if s, ok := p.Name[string(l)].(string); ok {
			rec[string(l)] = s
		}
	}
	d.Names[p.NameID] = rec
	d.stats.NewNames++
}

func (s *Slots) empty() bool {
	for _, slot := range s {
		if len(slot) > 0 {
			return false
		}
	}
	return true
}

// ReadResponses decodes one Response per non-empty line of r.
func ReadResponses(r io.Reader, fn func(Response) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var resp Response
		if err := json.Unmarshal(b, &resp); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
	return sc.Err()
}
