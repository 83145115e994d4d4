package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"slayer/internal/logging"
)

// TimestampSuffix is appended to a key to form its freshness companion.
const TimestampSuffix = "_timestamp"

const autosavePrefix = "slayer_autosave_"

// AutosaveKey returns the store key holding a project's incremental backups.
func AutosaveKey(projectID string) string {
	return autosavePrefix + projectID
}

// ProjectID extracts the project identifier from an autosave key. Keys of
// other shapes come back unchanged.
func ProjectID(key string) string {
	return strings.TrimPrefix(key, autosavePrefix)
}

// TimestampKey returns the companion key recording when a key was last
// written.
func TimestampKey(key string) string {
	return key + TimestampSuffix
}

// SaveResult reports what happened to a write. Over-quota payloads and
// degraded-store writes are skipped, never errors.
type SaveResult struct {
	Skipped bool
	Reason  string
	Bytes   int64
}

// Entry describes one stored backup for listings.
type Entry struct {
	Key       string
	Bytes     int64
	UpdatedAt time.Time
}

// Save serializes the payload and writes it together with its timestamp
// companion in one transaction. Payloads above the quota are skipped whole;
// there are no partial writes. Storage failures degrade the store to a no-op
// and are logged, never raised.
func (s *Store) Save(ctx context.Context, key string, payload any) (SaveResult, error) {
	if s.degraded.Load() {
		return SaveResult{Skipped: true, Reason: "store degraded"}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshal payload for %q: %w", key, err)
	}
	size := int64(len(raw))
	if size > s.quota {
		s.logger.Warn("payload exceeds store quota, skipping write",
			logging.String("key", key),
			logging.Int64("bytes", size),
			logging.Int64("quota", s.quota))
		return SaveResult{Skipped: true, Reason: "quota exceeded", Bytes: size}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ctx = ensureContext(ctx)
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		const upsert = `INSERT INTO backups (key, payload, updated_at) VALUES (?, ?, ?)
            ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
		if _, err := tx.ExecContext(ctx, upsert, key, string(raw), now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsert, TimestampKey(key), now, now); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		s.degrade("save", key, err)
		return SaveResult{Skipped: true, Reason: "storage failure", Bytes: size}, nil
	}
	return SaveResult{Bytes: size}, nil
}

// Load returns the raw JSON payload stored under key. The boolean reports
// whether the key exists.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	ctx = ensureContext(ctx)
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM backups WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %q: %w", key, err)
	}
	return []byte(payload), true, nil
}

// Timestamp returns the freshness companion for key.
func (s *Store) Timestamp(ctx context.Context, key string) (time.Time, bool, error) {
	raw, ok, err := s.Load(ctx, TimestampKey(key))
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	ts, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse timestamp for %q: %w", key, err)
	}
	return ts, true, nil
}

// List returns all backup entries, excluding timestamp companions, newest
// first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, LENGTH(payload), updated_at FROM backups
         WHERE key NOT LIKE '%'||? ORDER BY updated_at DESC`, TimestampSuffix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var updated string
		if err := rows.Scan(&entry.Key, &entry.Bytes, &updated); err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			entry.UpdatedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes a key and its timestamp companion.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.execWithRetry(ensureContext(ctx),
		`DELETE FROM backups WHERE key = ? OR key = ?`, key, TimestampKey(key))
}

// Prune removes entries older than maxAge and returns how many backups were
// dropped. Zero maxAge disables pruning.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339Nano)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		res, err := tx.ExecContext(ctx,
			`DELETE FROM backups WHERE updated_at < ? AND key NOT LIKE '%'||?`, cutoff, TimestampSuffix)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM backups WHERE updated_at < ? AND key LIKE '%'||?`, cutoff, TimestampSuffix); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune backups: %w", err)
	}
	return removed, nil
}

func (s *Store) degrade(operation, key string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Error("storage failure, backup store degraded to no-op",
			logging.String("operation", operation),
			logging.String("key", key),
			logging.Error(err))
	}
}
