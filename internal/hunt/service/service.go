package service

import (
	"log"
	"time"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/metrics"
)

const (
	KindHints = "hints"
	KindNames = "names"
)

// QueryLogEntry is one answered query as recorded by query loggers.
type QueryLogEntry struct {
	At         string   `json:"at"`
	Kind       string   `json:"kind"`
	Source     string   `json:"source"`
	X          int32    `json:"x"`
	Y          int32    `json:"y"`
	Direction  int      `json:"direction"`
	IDs        []uint32 `json:"ids,omitempty"`
	Lang       string   `json:"lang,omitempty"`
	Results    int      `json:"results"`
	DurationUs int64    `json:"duration_us"`
}

type QueryLogger interface {
	WriteQuery(QueryLogEntry) error
}

// Info describes the loaded dataset; served by /v1/catalogs and WELCOME.
type Info struct {
	HintsDigest     string           `json:"hints_digest"`
	NamesDigest     string           `json:"names_digest"`
	BuiltAt         string           `json:"built_at,omitempty"`
	Source          string           `json:"source"`
	Languages       []string         `json:"languages"`
	DefaultLanguage string           `json:"default_language"`
	Stats           index.BuildStats `json:"stats"`
}

type Options struct {
	Info    Info
	Loggers []QueryLogger
	Logger  *log.Logger
}

// Service answers hint and name queries against one immutable index.
// It is safe for concurrent use.
type Service struct {
	ix      *index.Index
	info    Info
	loggers []QueryLogger
	log     *log.Logger
	now     func() time.Time
}

func New(ix *index.Index, opts Options) *Service {
	info := opts.Info
	info.Languages = index.LanguageCodes()
	info.DefaultLanguage = string(ix.DefaultLanguage())
	info.Stats = ix.Stats()

	st := info.Stats
	metrics.IndexInfo.WithLabelValues("coords").Set(float64(st.Coords))
	metrics.IndexInfo.WithLabelValues("steps").Set(float64(st.Steps))
	metrics.IndexInfo.WithLabelValues("names").Set(float64(st.Names))

	return &Service{
		ix:      ix,
		info:    info,
		loggers: opts.Loggers,
		log:     opts.Logger,
		now:     time.Now,
	}
}

// IndexOptions returns index build options that report missing names to metrics.
func IndexOptions(lang index.Language, logger *log.Logger) index.Options {
	return index.Options{
		DefaultLanguage: lang,
		Logger:          logger,
		OnMissingName:   func(index.HintID) { metrics.MissingNamesTotal.Inc() },
	}
}

func (s *Service) Index() *index.Index { return s.ix }

func (s *Service) Info() Info { return s.info }

func (s *Service) Hints(source string, x, y int32, dir index.Direction) map[index.HintID]index.ResolvedHint {
	start := s.now()
	out := s.ix.Resolve(index.Coord{X: x, Y: y}, dir)
	dur := s.now().Sub(start)

	s.observe(KindHints, source, len(out), dur)
	metrics.ResultSize.Observe(float64(len(out)))
	s.record(QueryLogEntry{
		At:         start.UTC().Format(time.RFC3339Nano),
		Kind:       KindHints,
		Source:     source,
		X:          x,
		Y:          y,
		Direction:  int(dir),
		Results:    len(out),
		DurationUs: dur.Microseconds(),
	})
	return out
}

func (s *Service) Names(source string, ids []index.HintID, lang string) map[index.HintID]string {
	start := s.now()
	out := s.ix.Names(ids, lang)
	dur := s.now().Sub(start)

	s.observe(KindNames, source, len(out), dur)
	raw := make([]uint32, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, uint32(id))
	}
	s.record(QueryLogEntry{
		At:         start.UTC().Format(time.RFC3339Nano),
		Kind:       KindNames,
		Source:     source,
		Direction:  -1,
		IDs:        raw,
		Lang:       string(s.ix.Language(lang)),
		Results:    len(out),
		DurationUs: dur.Microseconds(),
	})
	return out
}

func (s *Service) observe(kind, source string, n int, dur time.Duration) {
	metrics.QueriesTotal.WithLabelValues(kind, source).Inc()
	metrics.QueryDurationUs.WithLabelValues(kind).Observe(float64(dur.Microseconds()))
	if n == 0 {
		metrics.EmptyResultsTotal.WithLabelValues(kind).Inc()
	}
}

// record forwards e to every query logger. Logger errors never affect results.
func (s *Service) record(e QueryLogEntry) {
	for _, l := range s.loggers {
		if l == nil {
			continue
		}
		if err := l.WriteQuery(e); err != nil {
			metrics.QueryLogDroppedTotal.WithLabelValues("logger").Inc()
			if s.log != nil {
				s.log.Printf("query log: %v", err)
			}
		}
	}
}
