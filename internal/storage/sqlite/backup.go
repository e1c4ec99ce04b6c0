package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ErrBackupExists is returned when the backup destination already exists.
var ErrBackupExists = errors.New("backup destination exists")

// Backup writes a consistent copy of the database to destPath and verifies
// it. VACUUM INTO reads through the WAL, so the copy is a point-in-time
// snapshot even while the store is in use.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	if destPath == "" {
		return fmt.Errorf("sqlite: backup destination is required")
	}
	if fileExists(destPath) {
		return fmt.Errorf("sqlite: %w: %s", ErrBackupExists, destPath)
	}

	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("sqlite: failed to backup database: %w", err)
	}

	if err := VerifyBackup(ctx, destPath); err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil {
			s.logger.Warn("sqlite: failed to remove unverified backup", zap.String("path", destPath), zap.Error(rmErr))
		}
		return err
	}
	s.logger.Info("sqlite: backup written", zap.String("path", destPath))
	return nil
}

// VerifyBackup opens a backup read-only and runs SQLite's integrity check.
func VerifyBackup(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("sqlite: failed to open backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("sqlite: failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("sqlite: integrity check failed: %s", result)
	}
	return nil
}
