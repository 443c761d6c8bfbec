package index

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type HintID uint32

// Coord is the canonical key of a grid cell. Input files use the "x,y" string form.
type Coord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (c Coord) Key() string {
	return strconv.FormatInt(int64(c.X), 10) + "," + strconv.FormatInt(int64(c.Y), 10)
}

func ParseCoord(key string) (Coord, error) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, key)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, key)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(ys), 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCoord, key)
	}
	return Coord{X: int32(x), Y: int32(y)}, nil
}

type Direction int

const (
	North Direction = iota
	East
	South
	West
)

const NumDirections = 4

func (d Direction) Valid() bool { return d >= 0 && d < NumDirections }

func (d Direction) String() string {
	switch d {
	case North:
		return "NORTH"
	case East:
		return "EAST"
	case South:
		return "SOUTH"
	case West:
		return "WEST"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// HintStep is one precomputed waypoint along a direction ray.
type HintStep struct {
	Distance uint32
	X, Y     int32
	IDs      []HintID
}

// DirectionTable holds one step sequence per direction. A nil slot means no hints.
type DirectionTable [NumDirections][]HintStep

// NameRecord holds one display string per entry of Languages.
type NameRecord struct {
	names []string
}

func (r *NameRecord) Get(l Language) string {
	if r == nil {
		return ""
	}
	i, ok := languageSlot(l)
	if !ok || i >= len(r.names) {
		return ""
	}
	return r.names[i]
}

func (r *NameRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(Languages))
	for i, l := range Languages {
		if r != nil && i < len(r.names) {
			m[string(l)] = r.names[i]
		} else {
			m[string(l)] = ""
		}
	}
	return json.Marshal(m)
}

// ResolvedHint is the closest occurrence of one hint along a queried ray.
type ResolvedHint struct {
	Names    *NameRecord `json:"names"`
	Distance uint32      `json:"dist"`
	X        int32       `json:"x"`
	Y        int32       `json:"y"`
}
