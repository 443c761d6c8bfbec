package indexdb

import (
	"database/sql"
	"errors"
)

type QueryRow struct {
	ID         int64  `db:"id" json:"id"`
	At         string `db:"at" json:"at"`
	Kind       string `db:"kind" json:"kind"`
	Source     string `db:"source" json:"source"`
	X          int32  `db:"x" json:"x"`
	Y          int32  `db:"y" json:"y"`
	Direction  int    `db:"direction" json:"direction"`
	Lang       string `db:"lang" json:"lang"`
	IDsJSON    string `db:"ids_json" json:"ids_json"`
	Results    int    `db:"results" json:"results"`
	DurationUs int64  `db:"duration_us" json:"duration_us"`
}

// HotSpot is a queried (coordinate, direction) pair with its query count.
type HotSpot struct {
	X         int32 `db:"x" json:"x"`
	Y         int32 `db:"y" json:"y"`
	Direction int   `db:"direction" json:"direction"`
	Count     int64 `db:"n" json:"count"`
	Empty     int64 `db:"empty" json:"empty"`
}

type CatalogRow struct {
	Name      string `db:"name" json:"name"`
	Digest    string `db:"digest" json:"digest"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

// RecentQueries returns the most recent limit queries, newest first.
func (s *SQLiteIndex) RecentQueries(limit int) ([]QueryRow, error) {
	var rows []QueryRow
	err := s.db.Select(&rows,
		"SELECT id, at, kind, source, x, y, direction, lang, ids_json, results, duration_us FROM queries ORDER BY id DESC LIMIT ?",
		limit,
	)
	return rows, err
}

// HotSpots returns the most queried hint positions. Empty counts queries that
// resolved to no hints, which usually points at missing data upstream.
func (s *SQLiteIndex) HotSpots(limit int) ([]HotSpot, error) {
	var rows []HotSpot
	err := s.db.Select(&rows, `
		SELECT x, y, direction, COUNT(*) AS n, SUM(CASE WHEN results = 0 THEN 1 ELSE 0 END) AS empty
		FROM queries WHERE kind = 'hints'
		GROUP BY x, y, direction
		ORDER BY n DESC, x, y, direction
		LIMIT ?`,
		limit,
	)
	return rows, err
}

func (s *SQLiteIndex) Catalogs() ([]CatalogRow, error) {
	var rows []CatalogRow
	err := s.db.Select(&rows, "SELECT name, digest, updated_at FROM catalogs ORDER BY name")
	return rows, err
}

// Snapshots returns the most recent snapshot loads, newest first.
func (s *SQLiteIndex) Snapshots(limit int) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	err := s.db.Select(&rows,
		"SELECT path, version, hints_digest, names_digest, built_at, loaded_at FROM snapshots ORDER BY loaded_at DESC LIMIT ?",
		limit,
	)
	return rows, err
}

// Meta returns the value stored under key, or "" when absent.
func (s *SQLiteIndex) Meta(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
