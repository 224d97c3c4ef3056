// Package ingest validates parsed articles and persists them to the article
// store with a JSON backup copy per accepted article.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/riverdogs/newscrawler/internal/metrics"
	"github.com/riverdogs/newscrawler/internal/queue"
	"github.com/riverdogs/newscrawler/internal/scraper"
)

// Outcome classifies what happened to an ingested article.
type Outcome string

// Ingest outcomes.
const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeRejected Outcome = "rejected"
)

// Result reports the outcome of one ingestion.
type Result struct {
	Outcome    Outcome
	Reason     string
	BackupPath string
}

// RunStats aggregates one ingestion pass. It is returned to the caller and
// never persisted.
type RunStats struct {
	NewArticles     int       `json:"new_articles"`
	UpdatedArticles int       `json:"updated_articles"`
	FailedSaves     int       `json:"failed_saves"`
	JSONBackups     int       `json:"json_backups"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
}

// Store upserts articles keyed by URL, reporting whether a row was created.
type Store interface {
	Upsert(ctx context.Context, article scraper.Article) (created bool, err error)
}

// BackupSink writes a snapshot of an accepted article.
type BackupSink interface {
	Write(ctx context.Context, article scraper.Article) (string, error)
}

// Service runs the ingestion step. The store and the backup directory are
// independent best-effort sinks: a backup failure never rolls back the store
// write, and a store failure only skips that record's backup.
type Service struct {
	store     Store
	backup    BackupSink
	mirror    BackupSink
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// New constructs a Service. mirror and publisher may be nil.
func New(store Store, backup BackupSink, mirror BackupSink, publisher queue.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = queue.NoOpPublisher{}
	}
	return &Service{
		store:     store,
		backup:    backup,
		mirror:    mirror,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Process ingests every article from a run and aggregates per-run statistics.
// Per-article failures are counted, never propagated.
func (s *Service) Process(ctx context.Context, articles []scraper.Article) RunStats {
	stats := RunStats{StartTime: s.now()}
	for _, article := range articles {
		result, err := s.Ingest(ctx, article)
		if err != nil {
			stats.FailedSaves++
			s.logger.Error("failed to save article",
				zap.String("url", article.URL),
				zap.Error(err),
			)
			continue
		}
		switch result.Outcome {
		case OutcomeCreated:
			stats.NewArticles++
		case OutcomeUpdated:
			stats.UpdatedArticles++
		case OutcomeRejected:
			stats.FailedSaves++
			s.logger.Warn("rejected article",
				zap.String("url", article.URL),
				zap.String("reason", result.Reason),
			)
			continue
		}
		if result.BackupPath != "" {
			stats.JSONBackups++
		}
	}
	stats.EndTime = s.now()
	s.logger.Info("ingestion completed",
		zap.Int("new", stats.NewArticles),
		zap.Int("updated", stats.UpdatedArticles),
		zap.Int("failed", stats.FailedSaves),
		zap.Int("backups", stats.JSONBackups),
	)
	return stats
}

// Ingest validates one article, upserts it into the store, and writes its
// backup snapshot. A rejected candidate never touches the store. A store
// error is returned to the caller; backup and notification failures are
// logged and counted only.
func (s *Service) Ingest(ctx context.Context, article scraper.Article) (Result, error) {
	if !article.Usable() {
		metrics.ObserveIngest(string(OutcomeRejected))
		return Result{Outcome: OutcomeRejected, Reason: "title and content are required"}, nil
	}
	if _, err := json.Marshal(article); err != nil {
		metrics.ObserveIngest(string(OutcomeRejected))
		return Result{Outcome: OutcomeRejected, Reason: fmt.Sprintf("not serializable: %v", err)}, nil
	}

	article.LastUpdated = reconcileLastUpdated(article.Date, s.now())

	created, err := s.store.Upsert(ctx, article)
	if err != nil {
		metrics.ObserveIngest("failed")
		return Result{}, fmt.Errorf("upsert article: %w", err)
	}
	outcome := OutcomeUpdated
	if created {
		outcome = OutcomeCreated
	}
	metrics.ObserveIngest(string(outcome))

	result := Result{Outcome: outcome}
	if s.backup != nil {
		path, err := s.backup.Write(ctx, article)
		if err != nil {
			metrics.ObserveBackup("failure")
			s.logger.Error("failed to write backup file",
				zap.String("url", article.URL),
				zap.Error(err),
			)
		} else {
			metrics.ObserveBackup("success")
			result.BackupPath = path
		}
	}
	if s.mirror != nil {
		if _, err := s.mirror.Write(ctx, article); err != nil {
			s.logger.Warn("failed to mirror backup",
				zap.String("url", article.URL),
				zap.Error(err),
			)
		}
	}

	s.notify(ctx, article, outcome)
	return result, nil
}

func (s *Service) notify(ctx context.Context, article scraper.Article, outcome Outcome) {
	payload, err := json.Marshal(map[string]string{
		"url":       article.URL,
		"title":     article.Title,
		"outcome":   string(outcome),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Warn("failed to publish ingest notification",
			zap.String("url", article.URL),
			zap.Error(err),
		)
	}
}

// lastUpdatedLayouts are the timestamp shapes the source site has been seen
// to emit: RFC3339 from the embedded payload, and long-form dates from the
// rendered byline.
var lastUpdatedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
}

// reconcileLastUpdated is the single reconciliation point for the
// source-claimed update time: the article's date string when it parses, the
// ingestion clock otherwise.
func reconcileLastUpdated(date string, fallback time.Time) time.Time {
	for _, layout := range lastUpdatedLayouts {
		if ts, err := time.Parse(layout, date); err == nil {
			return ts
		}
	}
	return fallback
}
