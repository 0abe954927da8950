package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/consolex/pkg/types"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// The durable layer is an append-only event log. Terminating a version is a
// log event of its own rather than an update of the stored row, so no row is
// ever rewritten. Opening a store replays the log in sequence order to
// rebuild the in-memory chains.

type eventKind int

const (
	eventAppend eventKind = iota
	eventTerminate
)

// logEvent is one durable version-log entry.
type logEvent struct {
	kind    eventKind
	version types.ArticleVersion // append
	article string               // terminate
	until   types.Date           // terminate
}

type db struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS code_meta (
	id      TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS version_log (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	event           TEXT NOT NULL,
	code            TEXT NOT NULL,
	article         TEXT NOT NULL,
	effective_from  TEXT NOT NULL,
	effective_until TEXT,
	text            TEXT,
	act_id          TEXT
);
CREATE TABLE IF NOT EXISTS run_log (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL UNIQUE,
	code      TEXT NOT NULL,
	act_id    TEXT NOT NULL,
	status    TEXT NOT NULL,
	payload   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS review_queue (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL,
	act_id     TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL,
	change     TEXT,
	created_at TEXT NOT NULL,
	resolved   INTEGER NOT NULL DEFAULT 0
);
`

func openDB(path string) (*db, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &db{conn: conn}, nil
}

// Open opens or creates the version store at path and rebuilds the in-memory
// index by replaying the durable logs. A replay inconsistency surfaces as a
// CorruptionError and the store does not open.
func Open(path string) (*Store, error) {
	d, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		chains:    make(map[string][]types.ArticleVersion),
		runsByAct: make(map[string][]int),
		db:        d,
	}

	if err := d.loadCode(s); err != nil {
		_ = d.close()
		return nil, err
	}
	if err := d.replayVersions(s); err != nil {
		_ = d.close()
		return nil, err
	}
	if err := d.loadRuns(s); err != nil {
		_ = d.close()
		return nil, err
	}
	if err := verifyChains(s.codeID(), s.chains); err != nil {
		_ = d.close()
		return nil, err
	}
	return s, nil
}

func (d *db) loadCode(s *Store) error {
	var payload string
	err := d.conn.QueryRow(`SELECT payload FROM code_meta LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load code meta: %w", err)
	}
	var code types.LegalCode
	if err := json.Unmarshal([]byte(payload), &code); err != nil {
		return fmt.Errorf("decode code meta: %w", err)
	}
	s.code = &code
	return nil
}

func (d *db) replayVersions(s *Store) error {
	rows, err := d.conn.Query(`SELECT event, code, article, effective_from, effective_until, text, act_id
		FROM version_log ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("read version log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var event, code, article, from string
		var until, text, actID sql.NullString
		if err := rows.Scan(&event, &code, &article, &from, &until, &text, &actID); err != nil {
			return fmt.Errorf("scan version log: %w", err)
		}

		switch event {
		case "append":
			v := types.ArticleVersion{Code: code, Article: article, Text: text.String, ActID: actID.String}
			if v.EffectiveFrom, err = types.ParseDate(from); err != nil {
				return &types.CorruptionError{Code: code, Article: article, Detail: err.Error()}
			}
			if until.Valid {
				u, err := types.ParseDate(until.String)
				if err != nil {
					return &types.CorruptionError{Code: code, Article: article, Detail: err.Error()}
				}
				v.EffectiveUntil = &u
			}
			s.chains[article] = append(s.chains[article], v)

		case "terminate":
			chain := s.chains[article]
			if len(chain) == 0 || !chain[len(chain)-1].Open() {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: "terminate event without an open version"}
			}
			if !until.Valid {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: "terminate event without a date"}
			}
			u, err := types.ParseDate(until.String)
			if err != nil {
				return &types.CorruptionError{Code: code, Article: article, Detail: err.Error()}
			}
			chain[len(chain)-1].EffectiveUntil = &u

		default:
			return &types.CorruptionError{Code: code, Article: article,
				Detail: fmt.Sprintf("unknown log event %q", event)}
		}
	}
	return rows.Err()
}

func (d *db) loadRuns(s *Store) error {
	rows, err := d.conn.Query(`SELECT payload FROM run_log ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("read run log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan run log: %w", err)
		}
		var run types.ConsolidationRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return fmt.Errorf("decode run record: %w", err)
		}
		s.addRunLocked(run)
	}
	return rows.Err()
}

// commit writes one run's durable footprint in a single SQL transaction:
// optional code metadata, version events, the run record and review items.
// Either all of it lands or none of it does.
func (d *db) commit(code *types.LegalCode, events []logEvent, run *types.ConsolidationRun, review []types.ReviewItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if code != nil {
		payload, err := json.Marshal(code)
		if err != nil {
			return fmt.Errorf("encode code meta: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO code_meta (id, payload) VALUES (?, ?)`, code.ID, string(payload)); err != nil {
			return fmt.Errorf("write code meta: %w", err)
		}
	}

	for _, e := range events {
		switch e.kind {
		case eventAppend:
			v := e.version
			var until any
			if v.EffectiveUntil != nil {
				until = v.EffectiveUntil.String()
			}
			if _, err := tx.Exec(`INSERT INTO version_log (event, code, article, effective_from, effective_until, text, act_id)
				VALUES ('append', ?, ?, ?, ?, ?, ?)`,
				v.Code, v.Article, v.EffectiveFrom.String(), until, v.Text, v.ActID); err != nil {
				return fmt.Errorf("write append event: %w", err)
			}
		case eventTerminate:
			if _, err := tx.Exec(`INSERT INTO version_log (event, code, article, effective_from, effective_until)
				VALUES ('terminate', ?, ?, ?, ?)`,
				codeOf(code, run), e.article, e.until.String(), e.until.String()); err != nil {
				return fmt.Errorf("write terminate event: %w", err)
			}
		}
	}

	if run != nil {
		payload, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("encode run record: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO run_log (run_id, code, act_id, status, payload) VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.Code, run.ActID, string(run.Status), string(payload)); err != nil {
			return fmt.Errorf("write run record: %w", err)
		}
	}

	for _, item := range review {
		var change any
		if item.Change != nil {
			b, err := json.Marshal(item.Change)
			if err != nil {
				return fmt.Errorf("encode review change: %w", err)
			}
			change = string(b)
		}
		if _, err := tx.Exec(`INSERT INTO review_queue (code, act_id, run_id, kind, detail, change, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.Code, item.ActID, item.RunID, string(item.Kind), item.Detail, change,
			item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")); err != nil {
			return fmt.Errorf("write review item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// codeOf picks the code id for a terminate row from whichever record carries
// it in this commit.
func codeOf(code *types.LegalCode, run *types.ConsolidationRun) string {
	if run != nil {
		return run.Code
	}
	if code != nil {
		return code.ID
	}
	return ""
}

func (d *db) listReview(includeResolved bool) ([]types.ReviewItem, error) {
	q := `SELECT id, code, act_id, run_id, kind, detail, change, created_at, resolved FROM review_queue`
	if !includeResolved {
		q += ` WHERE resolved = 0`
	}
	q += ` ORDER BY id`

	rows, err := d.conn.Query(q)
	if err != nil {
		return nil, fmt.Errorf("read review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []types.ReviewItem
	for rows.Next() {
		var item types.ReviewItem
		var change sql.NullString
		var created string
		var resolved int
		if err := rows.Scan(&item.ID, &item.Code, &item.ActID, &item.RunID,
			(*string)(&item.Kind), &item.Detail, &change, &created, &resolved); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		if change.Valid {
			var c types.ArticleChange
			if err := json.Unmarshal([]byte(change.String), &c); err != nil {
				return nil, fmt.Errorf("decode review change: %w", err)
			}
			item.Change = &c
		}
		item.CreatedAt, err = parseStamp(created)
		if err != nil {
			return nil, fmt.Errorf("decode review timestamp: %w", err)
		}
		item.Resolved = resolved != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *db) resolveReview(id int64) error {
	res, err := d.conn.Exec(`UPDATE review_queue SET resolved = 1 WHERE id = ? AND resolved = 0`, id)
	if err != nil {
		return fmt.Errorf("resolve review item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("review item %d: %w", id, types.ErrNotFound)
	}
	return nil
}

func (d *db) close() error {
	return d.conn.Close()
}

func parseStamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// ListReview returns the review queue in creation order, unresolved items
// only unless includeResolved is set.
func (s *Store) ListReview(includeResolved bool) ([]types.ReviewItem, error) {
	return s.db.listReview(includeResolved)
}

// ResolveReview marks a review item resolved. Resolving an unknown or
// already-resolved item returns ErrNotFound.
func (s *Store) ResolveReview(id int64) error {
	return s.db.resolveReview(id)
}
