package store

import (
	"context"
	"database/sql"
	"errors"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// importHashKey is the metadata key remembering the digest of an imported
// question file.
func importHashKey(name string) string {
	return "import_sha256:" + name
}

// GetImportedFileHash returns the recorded digest of a question file, or "".
func (s *Store) GetImportedFileHash(ctx context.Context, name string) (string, error) {
	return s.GetMetadata(ctx, importHashKey(name))
}

// SetImportedFileHash records the digest of an imported question file.
func (s *Store) SetImportedFileHash(ctx context.Context, name, sum string) error {
	return s.SetMetadata(ctx, importHashKey(name), sum)
}
