// Package archive keeps a durable copy of every applied stale-tab sweep so
// that deleted tabs can be audited after the fact.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"servizephyr/internal/model"

	"github.com/rs/zerolog"
)

// Archiver stores sweep reports.
type Archiver interface {
	// Store writes the report and returns where it ended up.
	Store(ctx context.Context, report model.CleanupReport) (string, error)
}

// ReportKey is the relative path of a report: <tenant>/<date>/sweep-<id>.json.gz.
func ReportKey(report model.CleanupReport) string {
	return fmt.Sprintf("%s/%s/sweep-%s.json.gz",
		report.TenantID, report.GeneratedAt.UTC().Format("2006-01-02"), report.ID)
}

func encodeReport(report model.CleanupReport) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(report); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress report: %w", err)
	}
	return buf.Bytes(), nil
}

// fileArchiver writes reports under a local directory.
type fileArchiver struct {
	dir    string
	logger zerolog.Logger
}

// NewFileArchiver creates an Archiver rooted at dir.
func NewFileArchiver(dir string, logger zerolog.Logger) Archiver {
	return &fileArchiver{
		dir:    dir,
		logger: logger.With().Str("component", "archive-file").Logger(),
	}
}

func (a *fileArchiver) Store(ctx context.Context, report model.CleanupReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := encodeReport(report)
	if err != nil {
		return "", err
	}

	path := filepath.Join(a.dir, filepath.FromSlash(ReportKey(report)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	a.logger.Info().
		Str("path", path).
		Str("tenant_id", report.TenantID).
		Int("deleted", report.DeletedCount).
		Msg("Sweep report archived")

	return path, nil
}

// fallbackArchiver tries S3 first and falls back to the local directory.
type fallbackArchiver struct {
	s3     Archiver
	file   Archiver
	useS3  bool
	logger zerolog.Logger
}

// NewFallbackArchiver creates an Archiver that prefers s3 when enabled.
func NewFallbackArchiver(s3 Archiver, file Archiver, s3Enabled bool, logger zerolog.Logger) Archiver {
	return &fallbackArchiver{
		s3:     s3,
		file:   file,
		useS3:  s3Enabled && s3 != nil,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

func (a *fallbackArchiver) Store(ctx context.Context, report model.CleanupReport) (string, error) {
	if a.useS3 {
		location, err := a.s3.Store(ctx, report)
		if err == nil {
			return location, nil
		}
		a.logger.Warn().
			Err(err).
			Str("report_id", report.ID).
			Msg("Failed to archive report to S3, falling back to local file system")
	}
	return a.file.Store(ctx, report)
}
