package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the round index directly, for when the server is down.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	roundID := fs.String("round", "", "round_id filter (votes, faults)")
	kind := fs.String("kind", "", "event kind filter (rounds)")
	_ = fs.Parse(args)

	q := "rounds"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "rounds.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, *roundID, *kind, printJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, limit int, roundID, kind string, emit func(any)) error {
	switch q {
	case "rounds":
		query := `SELECT id,kind,outcome,COALESCE(reason,''),registered,participants,faults,started_at,ended_at FROM rounds`
		var qargs []any
		if kind != "" {
			query += ` WHERE kind=?`
			qargs = append(qargs, kind)
		}
		query += ` ORDER BY ended_at DESC LIMIT ?`
		qargs = append(qargs, limit)

		rows, err := db.Query(query, qargs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ID           string `json:"id"`
				Kind         string `json:"kind"`
				Outcome      string `json:"outcome"`
				Reason       string `json:"reason,omitempty"`
				Registered   int    `json:"registered"`
				Participants int    `json:"participants"`
				Faults       int    `json:"faults"`
				StartedAt    string `json:"started_at"`
				EndedAt      string `json:"ended_at"`
			}
			if err := rows.Scan(&r.ID, &r.Kind, &r.Outcome, &r.Reason, &r.Registered, &r.Participants, &r.Faults, &r.StartedAt, &r.EndedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "votes":
		if roundID == "" {
			return fmt.Errorf("votes: missing -round")
		}
		rows, err := db.Query(`SELECT kind,votes FROM round_votes WHERE round_id=? ORDER BY votes DESC, kind`, roundID)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				RoundID string `json:"round_id"`
				Kind    string `json:"kind"`
				Votes   int    `json:"votes"`
			}
			if err := rows.Scan(&r.Kind, &r.Votes); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.RoundID = roundID
			emit(r)
		}
		return rows.Err()

	case "faults":
		query := `SELECT time,COALESCE(round_id,''),COALESCE(kind,''),call,panicked,error FROM faults`
		var qargs []any
		if roundID != "" {
			query += ` WHERE round_id=?`
			qargs = append(qargs, roundID)
		}
		query += ` ORDER BY seq DESC LIMIT ?`
		qargs = append(qargs, limit)

		rows, err := db.Query(query, qargs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Time     string `json:"time"`
				RoundID  string `json:"round_id,omitempty"`
				Kind     string `json:"kind,omitempty"`
				Call     string `json:"call"`
				Panicked bool   `json:"panicked"`
				Error    string `json:"error"`
			}
			if err := rows.Scan(&r.Time, &r.RoundID, &r.Kind, &r.Call, &r.Panicked, &r.Error); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			emit(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q (rounds|votes|faults|catalogs)", q)
	}
}
