package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"huntforge.ai/internal/hunt/catalogs"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/metrics"
	"huntforge.ai/internal/persistence/snapshot"
)

// SQLiteIndex is a queryable read model of served queries and loaded datasets.
// Writes go through a single goroutine; the compressed JSONL query log stays the
// source of truth when the queue overflows.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders enqueues against close(ch).
	mu     sync.RWMutex
	closed bool

	dropQuery    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqQuery reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	query    service.QueryLogEntry
	snapshot SnapshotRow
}

// SnapshotRow records one snapshot load by the server.
type SnapshotRow struct {
	Path        string `db:"path" json:"path"`
	Version     int    `db:"version" json:"version"`
	HintsDigest string `db:"hints_digest" json:"hints_digest"`
	NamesDigest string `db:"names_digest" json:"names_digest"`
	BuiltAt     string `db:"built_at" json:"built_at"`
	LoadedAt    string `db:"loaded_at" json:"loaded_at"`
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropQueryTotal    uint64 `json:"drop_query_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

const defaultQueueSize = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueueSize)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS catalogs (
		name TEXT PRIMARY KEY,
		digest TEXT NOT NULL,
		json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		direction INTEGER NOT NULL,
		lang TEXT NOT NULL,
		ids_json TEXT NOT NULL,
		results INTEGER NOT NULL,
		duration_us INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_queries_kind_at ON queries(kind, at);
	CREATE INDEX IF NOT EXISTS idx_queries_pos ON queries(x, y, direction);

	CREATE TABLE IF NOT EXISTS snapshots (
		path TEXT NOT NULL,
		loaded_at TEXT NOT NULL,
		version INTEGER NOT NULL,
		hints_digest TEXT NOT NULL,
		names_digest TEXT NOT NULL,
		built_at TEXT NOT NULL,
		PRIMARY KEY (path, loaded_at)
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropQueryTotal:    s.dropQuery.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// WriteQuery enqueues e. It never blocks; entries are dropped when the writer
// falls behind.
func (s *SQLiteIndex) WriteQuery(e service.QueryLogEntry) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- req{kind: reqQuery, query: e}:
	default:
		s.dropQuery.Add(1)
		metrics.QueryLogDroppedTotal.WithLabelValues("sqlite").Inc()
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, hdr snapshot.Header) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	r := SnapshotRow{
		Path:        path,
		Version:     hdr.Version,
		HintsDigest: hdr.HintsDigest,
		NamesDigest: hdr.NamesDigest,
		BuiltAt:     hdr.BuiltAt,
		LoadedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertCatalogs records the dataset being served. cats may be nil when the
// index was loaded from a snapshot.
func (s *SQLiteIndex) UpsertCatalogs(info service.Info, cats *catalogs.Catalogs) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(info); len(b) > 0 {
		rows = append(rows, kv{name: "info", digest: info.HintsDigest + ":" + info.NamesDigest, json: b})
	}
	if cats != nil {
		if b, _ := json.Marshal(cats.Names); len(b) > 0 {
			rows = append(rows, kv{name: "names", digest: cats.NamesDigest, json: b})
		}
		if cats.Excluded != nil {
			b, _ := json.Marshal(cats.Excluded)
			rows = append(rows, kv{name: "excluded", digest: cats.HintsDigest, json: b})
		}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertQuery, _ := s.db.Prepare(`INSERT INTO queries(at,kind,source,x,y,direction,lang,ids_json,results,duration_us) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(path,loaded_at,version,hints_digest,names_digest,built_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertQuery != nil {
			_ = insertQuery.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Commit as soon as the queue drains so readers see recent rows.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqQuery:
			q := r.query
			if insertQuery == nil {
				continue
			}
			ids := q.IDs
			if ids == nil {
				ids = []uint32{}
			}
			idsJSON, _ := json.Marshal(ids)
			if _, err := tx.Stmt(insertQuery).Exec(
				q.At,
				q.Kind,
				q.Source,
				q.X, q.Y,
				q.Direction,
				q.Lang,
				string(idsJSON),
				q.Results,
				q.DurationUs,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				sn.Path,
				sn.LoadedAt,
				sn.Version,
				sn.HintsDigest,
				sn.NamesDigest,
				sn.BuiltAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
