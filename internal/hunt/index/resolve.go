package index

// Resolve returns, for every hint visible from c in direction dir, its closest
// occurrence along the ray. Ties keep the first occurrence in step order.
// An invalid direction, unknown coordinate or empty slot yields an empty map.
func (ix *Index) Resolve(c Coord, dir Direction) map[HintID]ResolvedHint {
	out := map[HintID]ResolvedHint{}
	if ix == nil || !dir.Valid() {
		return out
	}
	t, ok := ix.tables[c]
	if !ok {
		return out
	}

	for _, step := range t[dir] {
		for _, id := range step.IDs {
			names, ok := ix.names[id]
			if !ok {
				ix.missingName(id)
				continue
			}
			if cur, seen := out[id]; seen && step.Distance >= cur.Distance {
				continue
			}
			out[id] = ResolvedHint{
				Names:    names,
				Distance: step.Distance,
				X:        step.X,
				Y:        step.Y,
			}
		}
	}
	return out
}

func (ix *Index) missingName(id HintID) {
	if ix.log != nil {
		ix.log.Printf("warn: missing names for hint id %d", id)
	}
	if ix.onMissing != nil {
		ix.onMissing(id)
	}
}

// Names returns the display string of each known id in the requested language,
// falling back to the index default language for unsupported codes.
func (ix *Index) Names(ids []HintID, code string) map[HintID]string {
	out := make(map[HintID]string, len(ids))
	if ix == nil {
		return out
	}
	lang := ix.Language(code)
	for _, id := range ids {
		r, ok := ix.names[id]
		if !ok {
			continue
		}
		out[id] = r.Get(lang)
	}
	return out
}

// Language maps a requested code to the language Names will answer in.
func (ix *Index) Language(code string) Language {
	if l, ok := ParseLanguage(code); ok {
		return l
	}
	return ix.defaultLang
}

func (ix *Index) DefaultLanguage() Language { return ix.defaultLang }

func (ix *Index) Stats() BuildStats { return ix.stats }

func (ix *Index) NameRecord(id HintID) (*NameRecord, bool) {
	r, ok := ix.names[id]
	return r, ok
}

// Has reports whether c has any direction table.
func (ix *Index) Has(c Coord) bool {
	_, ok := ix.tables[c]
	return ok
}
