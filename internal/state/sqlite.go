package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"devservices/pkg/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database %s: %w", path, err)
	}
	// One connection serialises writers from concurrent workers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logging.Debug("State", "Opened state database %s", path)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("state database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
		return err
	})
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const recordColumns = `r.key, r.name, r.status, r.runtime, r.handle, r.target, r.referrers, r.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, extra ...any) (Record, error) {
	var (
		rec     Record
		target  string
		updated int64
	)
	dest := append([]any{&rec.Key, &rec.Name, &rec.Status, &rec.Runtime, &rec.Handle, &target, &rec.Referrers, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	if target != "" {
		if err := json.Unmarshal([]byte(target), &rec.Target); err != nil {
			return Record{}, fmt.Errorf("corrupt target for %s: %w", rec.Key, err)
		}
	}
	rec.UpdatedAt = time.Unix(0, updated)
	return rec, nil
}

func splitModes(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	modes := strings.Split(ns.String, ",")
	sort.Strings(modes)
	return modes
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, service, key string) (Record, bool, error) {
	var modes sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+`,
		(SELECT group_concat(mode) FROM claims c WHERE c.key = r.key AND c.service = ?)
		FROM records r WHERE r.key = ?`, service, key)
	rec, err := scanRecord(row, &modes)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	rec.Service = service
	rec.Modes = splitModes(modes)
	return rec, true, nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, key string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records r WHERE r.key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return rec, true, nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return errors.New("record key is required")
	}
	if rec.Status == "" {
		rec.Status = StatusNotRunning
	}
	if rec.Runtime == "" {
		rec.Runtime = RuntimeContainer
	}
	target, err := json.Marshal(rec.Target)
	if err != nil {
		return fmt.Errorf("failed to encode target of %s: %w", rec.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records (key, name, status, runtime, handle, target, referrers, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT (key) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			runtime = excluded.runtime,
			handle = excluded.handle,
			target = excluded.target,
			updated_at = excluded.updated_at`,
		rec.Key, rec.Name, rec.Status, rec.Runtime, rec.Handle, string(target), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to persist record %s: %w", rec.Key, err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, service string) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if service == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+recordColumns+`,
			(SELECT group_concat(DISTINCT mode) FROM claims c WHERE c.key = r.key)
			FROM records r ORDER BY r.name, r.key`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+recordColumns+`, group_concat(c.mode)
			FROM records r JOIN claims c ON c.key = r.key
			WHERE c.service = ?
			GROUP BY r.key
			ORDER BY r.name, r.key`, service)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var modes sql.NullString
		rec, err := scanRecord(rows, &modes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Service = service
		rec.Modes = splitModes(modes)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Claim implements Store.
func (s *SQLiteStore) Claim(ctx context.Context, service, key, name string, modes []string) (int, error) {
	var referrers int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UnixNano()
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (key, name, status, runtime, handle, referrers, updated_at)
			VALUES (?, ?, ?, COALESCE((SELECT runtime FROM runtimes WHERE key = ?), ?), '', 0, ?)
			ON CONFLICT (key) DO NOTHING`,
			key, name, StatusNotRunning, key, RuntimeContainer, now); err != nil {
			return err
		}
		for _, mode := range modes {
			res, err := tx.ExecContext(ctx, `INSERT INTO claims (service, key, mode, created_at) VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING`, service, key, mode, now)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				if _, err := tx.ExecContext(ctx, `UPDATE records SET referrers = referrers + 1 WHERE key = ?`, key); err != nil {
					return err
				}
			}
		}
		return tx.QueryRowContext(ctx, `SELECT referrers FROM records WHERE key = ?`, key).Scan(&referrers)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to claim %s for %s: %w", key, service, err)
	}
	return referrers, nil
}

// Release implements Store.
func (s *SQLiteStore) Release(ctx context.Context, service, key string, modes []string) (int, error) {
	var referrers int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, mode := range modes {
			res, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE service = ? AND key = ? AND mode = ?`, service, key, mode)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				if _, err := tx.ExecContext(ctx, `UPDATE records SET referrers = referrers - 1 WHERE key = ? AND referrers > 0`, key); err != nil {
					return err
				}
			}
		}
		err := tx.QueryRowContext(ctx, `SELECT referrers FROM records WHERE key = ?`, key).Scan(&referrers)
		if errors.Is(err, sql.ErrNoRows) {
			referrers = 0
			return nil
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release %s for %s: %w", key, service, err)
	}
	return referrers, nil
}

// Claims implements Store.
func (s *SQLiteStore) Claims(ctx context.Context, service string) ([]Claim, error) {
	query := `SELECT service, key, mode FROM claims`
	var args []any
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY service, key, mode`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.Service, &c.Key, &c.Mode); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// ActiveModes implements Store.
func (s *SQLiteStore) ActiveModes(ctx context.Context, service string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT mode FROM claims WHERE service = ? ORDER BY mode`, service)
	if err != nil {
		return nil, fmt.Errorf("failed to list modes of %s: %w", service, err)
	}
	defer rows.Close()

	var modes []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, rows.Err()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, service string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if service == "" {
			for _, table := range []string{"claims", "records", "runtimes", "starting"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return err
				}
			}
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE records SET referrers = MAX(0, referrers -
			(SELECT COUNT(*) FROM claims c WHERE c.key = records.key AND c.service = ?))`, service); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE service = ?`, service); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM records WHERE referrers = 0`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

// Runtime implements Store.
func (s *SQLiteStore) Runtime(ctx context.Context, key string) (Runtime, bool, error) {
	var rt Runtime
	err := s.db.QueryRowContext(ctx, `SELECT runtime FROM runtimes WHERE key = ?`, key).Scan(&rt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read runtime of %s: %w", key, err)
	}
	return rt, true, nil
}

// SetRuntime implements Store.
func (s *SQLiteStore) SetRuntime(ctx context.Context, key string, rt Runtime) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runtimes (key, runtime) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET runtime = excluded.runtime`, key, rt)
	if err != nil {
		return fmt.Errorf("failed to persist runtime of %s: %w", key, err)
	}
	return nil
}

// MarkStarting implements Store.
func (s *SQLiteStore) MarkStarting(ctx context.Context, runID string, pid int, keys []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UnixNano()
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `INSERT INTO starting (run_id, pid, key, started_at) VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING`, runID, pid, key, now); err != nil {
				return fmt.Errorf("failed to mark %s as starting: %w", key, err)
			}
		}
		return nil
	})
}

// FinishStarting implements Store.
func (s *SQLiteStore) FinishStarting(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM starting WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// StartingClaims implements Store.
func (s *SQLiteStore) StartingClaims(ctx context.Context) ([]StartingClaim, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, pid, key, started_at FROM starting ORDER BY started_at, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list starting claims: %w", err)
	}
	defer rows.Close()

	var claims []StartingClaim
	for rows.Next() {
		var (
			c       StartingClaim
			started int64
		)
		if err := rows.Scan(&c.RunID, &c.PID, &c.Key, &started); err != nil {
			return nil, err
		}
		c.StartedAt = time.Unix(0, started)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
