// Package reliability keeps the analytics store safe: off-site backups and
// periodic database maintenance.
package reliability

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyethone/betbridge/internal/database"
	"github.com/pyethone/betbridge/internal/metrics"
)

const (
	backupNamePrefix = "predictions-"
	backupNameSuffix = ".db.gz"
	backupTimeLayout = "2006-01-02-150405"
	// minBackupsToKeep survive rotation regardless of age
	minBackupsToKeep = 3
	// backupTimeout bounds a scheduled snapshot plus rotation
	backupTimeout = 30 * time.Minute
)

// BackupInfo describes a stored backup
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService snapshots the analytics store and ships it to an object store
type BackupService struct {
	db            *database.DB
	store         ObjectStore
	prefix        string
	stagingDir    string
	retentionDays int
	now           func() time.Time
	log           zerolog.Logger
}

// NewBackupService creates a backup service. Snapshots are staged under
// dataDir before upload.
func NewBackupService(db *database.DB, store ObjectStore, prefix, dataDir string, retentionDays int, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:            db,
		store:         store,
		prefix:        strings.Trim(prefix, "/"),
		stagingDir:    filepath.Join(dataDir, "backup-staging"),
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// Name implements scheduler.Job
func (s *BackupService) Name() string {
	return "analytics_backup"
}

// Run implements scheduler.Job: snapshot, then rotate. A failed rotation does
// not fail the run.
func (s *BackupService) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if _, err := s.Snapshot(ctx); err != nil {
		return err
	}
	if err := s.Rotate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

func (s *BackupService) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Snapshot copies the database with VACUUM INTO, gzips the copy and uploads it
// as <prefix>/predictions-YYYY-MM-DD-HHMMSS.db.gz.
func (s *BackupService) Snapshot(ctx context.Context) (info BackupInfo, err error) {
	start := s.now()
	defer func() { metrics.RecordBackup(err, s.now()) }()

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir, "snapshot-")
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	snapshotPath := filepath.Join(staging, "predictions.db")
	if err := s.db.VacuumInto(ctx, snapshotPath); err != nil {
		return BackupInfo{}, err
	}

	name := backupNamePrefix + start.UTC().Format(backupTimeLayout) + backupNameSuffix
	archivePath := filepath.Join(staging, name)
	size, err := gzipFile(snapshotPath, archivePath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	key := s.key(name)
	if err := s.store.Upload(ctx, key, archive); err != nil {
		return BackupInfo{}, err
	}

	s.log.Info().
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration", s.now().Sub(start)).
		Msg("Analytics backup uploaded")

	return BackupInfo{Key: key, Timestamp: start.UTC(), SizeBytes: size}, nil
}

func gzipFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	stat, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// ListBackups returns the stored backups, newest first. Objects whose names do
// not carry a backup timestamp are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, s.key(backupNamePrefix))
	if err != nil {
		return nil, err
	}

	now := s.now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !strings.HasPrefix(name, backupNamePrefix) || !strings.HasSuffix(name, backupNameSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupNamePrefix), backupNameSuffix)
		ts, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup name")
			continue
		}
		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: ts,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Rotate deletes backups older than the retention period. The newest
// minBackupsToKeep backups are always kept; retention 0 keeps everything.
func (s *BackupService) Rotate(ctx context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for _, b := range backups[minBackupsToKeep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}
