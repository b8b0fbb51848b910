package sqlite

import (
	"context"
	"time"
)

// GetCacheEntry returns the stored value and its expiry. Expired rows are
// returned as-is; the caller decides whether to honor or purge them.
func (s *Store) GetCacheEntry(ctx context.Context, key string) (string, time.Time, error) {
	var (
		val string
		ms  int64
	)
	err := s.read.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&val, &ms)
	if err != nil {
		return "", time.Time{}, notFoundErr(err)
	}
	return val, time.UnixMilli(ms), nil
}

// PutCacheEntry inserts or overwrites a cache row.
func (s *Store) PutCacheEntry(ctx context.Context, key, val string, expiresAt time.Time) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, val, expiresAt.UnixMilli(),
	)
	return err
}

// DeleteCacheEntry removes a cache row. Missing keys are not an error.
func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

// PurgeCache removes every cache row.
func (s *Store) PurgeCache(ctx context.Context) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}

// DeleteExpiredCache removes rows whose expiry is at or before now.
func (s *Store) DeleteExpiredCache(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
