package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"eventengine.ai/internal/catalogs"
	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/driver"
	"eventengine.ai/internal/tuning"
)

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	closed bool

	dropRound atomic.Uint64
	dropFault atomic.Uint64
}

type reqKind int

const (
	reqRound reqKind = iota + 1
	reqFault
	reqSync
)

type req struct {
	kind reqKind

	round driver.RoundRecord
	fault engine.FaultEntry
	done  chan struct{}
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropRoundTotal uint64 `json:"drop_round_total"`
	DropFaultTotal uint64 `json:"drop_fault_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
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
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Faults can arrive in bursts when a handler breaks on every signal.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT,
			registered INTEGER NOT NULL,
			participants INTEGER NOT NULL,
			faults INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_ended_at ON rounds(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_kind ON rounds(kind, ended_at);`,
		`CREATE TABLE IF NOT EXISTS round_votes (
			round_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			votes INTEGER NOT NULL,
			PRIMARY KEY (round_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS faults (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			round_id TEXT,
			kind TEXT,
			call TEXT NOT NULL,
			panicked INTEGER NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_faults_round ON faults(round_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
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
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropRoundTotal: s.dropRound.Load(),
		DropFaultTotal: s.dropFault.Load(),
	}
}

func (s *SQLiteIndex) WriteRound(rec driver.RoundRecord) error {
	if s == nil {
		return nil
	}
	// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	if !s.offer(req{kind: reqRound, round: rec}) {
		s.dropRound.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteFault(entry engine.FaultEntry) error {
	if s == nil {
		return nil
	}
	if !s.offer(req{kind: reqFault, fault: entry}) {
		s.dropFault.Add(1)
	}
	return nil
}

// offer queues r without blocking. It reports false only when the queue is
// full; writes after Close are silently ignored.
func (s *SQLiteIndex) offer(r req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

// Sync blocks until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs stores the event catalog and the applied tuning.
func (s *SQLiteIndex) UpsertCatalogs(cat *catalogs.EventCatalog, tune tuning.Tuning) error {
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
	if cat != nil {
		evs := make([]catalogs.EventDef, 0, len(cat.ByID))
		for _, ev := range cat.ByID {
			evs = append(evs, ev)
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].ID < evs[j].ID })
		if b, _ := json.Marshal(evs); len(b) > 0 {
			rows = append(rows, kv{name: "events", digest: cat.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns up to limit rounds, newest first.
func (s *SQLiteIndex) Recent(ctx context.Context, limit int) ([]driver.RoundRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM rounds ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]driver.RoundRecord, 0, limit)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec driver.RoundRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("round row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FaultCount returns how many faults are indexed for a round.
func (s *SQLiteIndex) FaultCount(ctx context.Context, roundID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults WHERE round_id = ?`, roundID).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(id,kind,outcome,reason,registered,participants,faults,started_at,ended_at,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertVote, _ := s.db.Prepare(`INSERT OR REPLACE INTO round_votes(round_id,kind,votes) VALUES(?,?,?)`)
	insertFault, _ := s.db.Prepare(`INSERT INTO faults(time,round_id,kind,call,panicked,error) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRound, insertVote, insertFault} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRound:
			rec := r.round
			raw, _ := json.Marshal(rec)
			if insertRound != nil {
				if _, err := tx.Stmt(insertRound).Exec(
					rec.ID,
					rec.Kind,
					rec.Outcome,
					rec.Reason,
					rec.Registered,
					rec.Participants,
					rec.Faults,
					rec.StartedAt.UTC().Format(timeLayout),
					rec.EndedAt.UTC().Format(timeLayout),
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			kinds := make([]string, 0, len(rec.Votes))
			for k := range rec.Votes {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				if insertVote == nil {
					break
				}
				if _, err := tx.Stmt(insertVote).Exec(rec.ID, k, rec.Votes[k]); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqFault:
			f := r.fault
			if insertFault != nil {
				if _, err := tx.Stmt(insertFault).Exec(
					f.Time.UTC().Format(timeLayout),
					f.RoundID,
					f.Kind,
					f.Call,
					f.Panicked,
					f.Error,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		// Batch while a backlog exists; commit as soon as the queue drains.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
