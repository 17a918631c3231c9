// Package sqlitestore persists tracked accounts, their follower snapshots and
// the username cache in SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"unfollowninja/internal/model"
)

// DefaultLang is returned for accounts without a language preference.
const DefaultLang = model.LangEnglish

// DB wraps the SQLite database.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS accounts (
	  id TEXT PRIMARY KEY,
	  username TEXT NOT NULL DEFAULT '',
	  lang TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL,
	  snapshot_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS followers (
	  account_id TEXT NOT NULL,
	  follower_id TEXT NOT NULL,
	  follow_time INTEGER NOT NULL DEFAULT 0,
	  follow_detected_time INTEGER NOT NULL,
	  PRIMARY KEY (account_id, follower_id)
	);
	CREATE TABLE IF NOT EXISTS usernames (
	  id TEXT PRIMARY KEY,
	  username TEXT NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cycles (
	  id TEXT PRIMARY KEY,
	  account_id TEXT NOT NULL,
	  started_at INTEGER NOT NULL,
	  new_followers INTEGER NOT NULL,
	  unfollowers INTEGER NOT NULL,
	  notified INTEGER NOT NULL,
	  outcome TEXT NOT NULL,
	  payload TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cycles_account_started ON cycles(account_id, started_at);
	`)
	return err
}

// AddAccount registers an account or updates its username and language.
func (d *DB) AddAccount(ctx context.Context, id, username string, lang model.Lang) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO accounts(id, username, lang, created_at) VALUES(?,?,?,?)
	ON CONFLICT(id) DO UPDATE SET username=excluded.username, lang=excluded.lang`,
		id, username, string(lang), time.Now().UTC().Unix())
	return err
}

// Language returns the account's notification language, DefaultLang when unset.
func (d *DB) Language(ctx context.Context, accountID string) (model.Lang, error) {
	var lang string
	err := d.sql.QueryRowContext(ctx, `SELECT lang FROM accounts WHERE id=?`, accountID).Scan(&lang)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && lang == "") {
		return DefaultLang, nil
	}
	if err != nil {
		return "", err
	}
	return model.Lang(lang), nil
}

// HasSnapshot reports whether a follower snapshot was ever saved for the account.
func (d *DB) HasSnapshot(ctx context.Context, accountID string) (bool, error) {
	var at sql.NullInt64
	err := d.sql.QueryRowContext(ctx, `SELECT snapshot_at FROM accounts WHERE id=?`, accountID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return at.Valid, nil
}

// FollowerSet returns the last saved snapshot, empty when none was saved.
func (d *DB) FollowerSet(ctx context.Context, accountID string) (model.FollowerSet, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT follower_id FROM followers WHERE account_id=?`, accountID)
	if err != nil {
		return model.FollowerSet{}, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return model.FollowerSet{}, err
		}
		ids = append(ids, id)
	}
	return model.NewFollowerSet(ids), rows.Err()
}

// FollowTime returns when the follow happened in epoch ms, 0 if it predates tracking.
func (d *DB) FollowTime(ctx context.Context, accountID, followerID string) (int64, error) {
	return d.followerColumn(ctx, "follow_time", accountID, followerID)
}

// FollowDetectedTime returns when the follow was first recorded in epoch ms, 0 if unknown.
func (d *DB) FollowDetectedTime(ctx context.Context, accountID, followerID string) (int64, error) {
	return d.followerColumn(ctx, "follow_detected_time", accountID, followerID)
}

func (d *DB) followerColumn(ctx context.Context, column, accountID, followerID string) (int64, error) {
	var v int64
	q := fmt.Sprintf(`SELECT %s FROM followers WHERE account_id=? AND follower_id=?`, column)
	err := d.sql.QueryRowContext(ctx, q, accountID, followerID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

// SaveSnapshot replaces the stored snapshot with current. Ids in newFollowers
// are stamped as detected at now; their follow time is now too, except on the
// account's first snapshot where the follows predate tracking.
func (d *DB) SaveSnapshot(ctx context.Context, accountID string, current model.FollowerSet, newFollowers []string, now time.Time) error {
	initial, err := d.HasSnapshot(ctx, accountID)
	if err != nil {
		return err
	}
	initial = !initial

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	nowMs := now.UnixMilli()
	followTime := nowMs
	if initial {
		followTime = 0
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO followers(account_id, follower_id, follow_time, follow_detected_time) VALUES(?,?,?,?)
	ON CONFLICT(account_id, follower_id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer insert.Close()
	for _, id := range newFollowers {
		if _, err := insert.ExecContext(ctx, accountID, id, followTime, nowMs); err != nil {
			return err
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT follower_id FROM followers WHERE account_id=?`, accountID)
	if err != nil {
		return err
	}
	var gone []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if !current.Has(id) {
			gone = append(gone, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range gone {
		if _, err := tx.ExecContext(ctx, `DELETE FROM followers WHERE account_id=? AND follower_id=?`, accountID, id); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO accounts(id, created_at, snapshot_at) VALUES(?,?,?)
	ON CONFLICT(id) DO UPDATE SET snapshot_at=excluded.snapshot_at`, accountID, now.UTC().Unix(), now.UTC().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// CachedUsername returns the last known username of a Twitter user, "" on a miss.
func (d *DB) CachedUsername(ctx context.Context, id string) (string, error) {
	var name string
	err := d.sql.QueryRowContext(ctx, `SELECT username FROM usernames WHERE id=?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// CacheUsernames upserts usernames of users; entries without a username are skipped.
func (d *DB) CacheUsernames(ctx context.Context, users []model.User) error {
	now := time.Now().UTC().Unix()
	for _, u := range users {
		if u.ID == "" || u.Username == "" {
			continue
		}
		if _, err := d.sql.ExecContext(ctx, `INSERT INTO usernames(id, username, updated_at) VALUES(?,?,?)
		ON CONFLICT(id) DO UPDATE SET username=excluded.username, updated_at=excluded.updated_at`, u.ID, u.Username, now); err != nil {
			return err
		}
	}
	return nil
}

// CycleRecord summarizes one detection cycle.
type CycleRecord struct {
	ID           string
	AccountID    string
	StartedAt    time.Time
	NewFollowers int
	Unfollowers  int
	Notified     int
	Outcome      string
	Payload      any
}

// RecordCycle stores a cycle summary; Payload is kept as JSON.
func (d *DB) RecordCycle(ctx context.Context, c CycleRecord) error {
	var payload *string
	if c.Payload != nil {
		b, err := sonic.Marshal(c.Payload)
		if err != nil {
			return err
		}
		s := string(b)
		payload = &s
	}
	_, err := d.sql.ExecContext(ctx, `INSERT INTO cycles(id, account_id, started_at, new_followers, unfollowers, notified, outcome, payload) VALUES(?,?,?,?,?,?,?,?)`,
		c.ID, c.AccountID, c.StartedAt.UTC().Unix(), c.NewFollowers, c.Unfollowers, c.Notified, c.Outcome, payload)
	return err
}

// CountCyclesWithin returns how many cycles of accountID started in [start, end).
func (d *DB) CountCyclesWithin(ctx context.Context, accountID string, start, end time.Time) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles WHERE account_id=? AND started_at>=? AND started_at<?`,
		accountID, start.UTC().Unix(), end.UTC().Unix()).Scan(&n)
	return n, err
}

// LastCycles returns the most recent cycles of accountID, newest first.
func (d *DB) LastCycles(ctx context.Context, accountID string, limit int) ([]CycleRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, started_at, new_followers, unfollowers, notified, outcome, COALESCE(payload, '')
	FROM cycles WHERE account_id=? ORDER BY started_at DESC, rowid DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleRecord
	for rows.Next() {
		var (
			c       = CycleRecord{AccountID: accountID}
			started int64
			payload string
		)
		if err := rows.Scan(&c.ID, &started, &c.NewFollowers, &c.Unfollowers, &c.Notified, &c.Outcome, &payload); err != nil {
			return nil, err
		}
		c.StartedAt = time.Unix(started, 0).UTC()
		if payload != "" {
			c.Payload = payload
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
