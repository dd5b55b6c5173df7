package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// BundleArchive is an outcome archive that can also write JSONL bundles.
type BundleArchive interface {
	domain.OutcomeArchive
	PutBundle(ctx context.Context, outcomes []domain.Outcome, at time.Time) (string, error)
}

// ArchiveService copies finalized outcomes to cold storage and prunes those
// past retention from Postgres. Settlement keeps reading pruned outcomes
// through the archive.
type ArchiveService struct {
	outcomes  domain.OutcomeStore
	archive   BundleArchive
	audit     domain.AuditStore
	interval  time.Duration
	retention time.Duration
	batch     int
	logger    *slog.Logger
	now       func() time.Time

	watermark time.Time
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(
	outcomes domain.OutcomeStore,
	archive BundleArchive,
	audit domain.AuditStore,
	interval, retention time.Duration,
	batch int,
	logger *slog.Logger,
) *ArchiveService {
	if batch <= 0 {
		batch = 200
	}
	return &ArchiveService{
		outcomes:  outcomes,
		archive:   archive,
		audit:     audit,
		interval:  interval,
		retention: retention,
		batch:     batch,
		logger:    logger.With(slog.String("component", "archive_service")),
		now:       time.Now,
	}
}

// Run archives and prunes every interval until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "archive_service: run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce archives outcomes finalized since the last run, then prunes those
// older than the retention window. Pruning only happens when every outcome
// of the pass was archived.
func (s *ArchiveService) RunOnce(ctx context.Context) error {
	archived, failed, err := s.Archive(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("archive_service: %d outcomes failed to archive, prune skipped", failed)
	}

	if s.retention <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.retention)
	pruned, err := s.outcomes.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive_service: prune: %w", err)
	}
	if archived > 0 || pruned > 0 {
		s.logger.InfoContext(ctx, "archive_service: pass complete",
			slog.Int("archived", archived),
			slog.Int64("pruned", pruned),
		)
		if err := s.audit.Log(ctx, "outcomes_archived", map[string]any{
			"archived": archived,
			"pruned":   pruned,
			"cutoff":   cutoff.Format(time.RFC3339),
		}); err != nil {
			s.logger.WarnContext(ctx, "archive_service: audit log failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Archive uploads outcomes finalized after the watermark and advances it. It
// reports how many were archived and how many failed.
func (s *ArchiveService) Archive(ctx context.Context) (archived, failed int, err error) {
	since := s.watermark
	startedAt := s.now()
	var bundle []domain.Outcome

	for offset := 0; ; offset += s.batch {
		opts := domain.ListOpts{Limit: s.batch, Offset: offset}
		if !since.IsZero() {
			opts.Since = &since
		}
		ids, err := s.outcomes.ListFinalized(ctx, opts)
		if err != nil {
			return archived, failed, fmt.Errorf("archive_service: list finalized: %w", err)
		}
		for _, id := range ids {
			o, err := s.outcomes.Get(ctx, id)
			if err == nil {
				err = s.archive.Put(ctx, o)
			}
			if err != nil {
				failed++
				s.logger.WarnContext(ctx, "archive_service: archive outcome failed",
					slog.String("event_id", id.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			archived++
			bundle = append(bundle, o)
		}
		if len(ids) < s.batch {
			break
		}
	}

	if len(bundle) > 0 {
		path, err := s.archive.PutBundle(ctx, bundle, startedAt)
		if err != nil {
			s.logger.WarnContext(ctx, "archive_service: bundle upload failed", slog.String("error", err.Error()))
		} else {
			s.logger.DebugContext(ctx, "archive_service: bundle written", slog.String("path", path))
		}
	}
	if failed == 0 {
		s.watermark = startedAt
	}
	return archived, failed, nil
}
