// Package runner owns the scrape-and-ingest lifecycle: it starts background
// runs with a single-flight guard and serves progress and store statistics to
// status consumers.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riverdogs/newscrawler/internal/ingest"
	"github.com/riverdogs/newscrawler/internal/scraper"
	"github.com/riverdogs/newscrawler/internal/storage/postgres"
)

// StatsProvider reports aggregate store statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (postgres.Stats, error)
}

// BackupCounter reports the on-disk backup state.
type BackupCounter interface {
	Count() (int, error)
	Dir() string
}

// Stats is the aggregate view served to status consumers.
type Stats struct {
	TotalArticles int              `json:"total_articles"`
	Latest        *scraper.Article `json:"latest_article"`
	Oldest        *scraper.Article `json:"oldest_article"`
	JSONBackups   int              `json:"json_backups"`
	BackupDir     string           `json:"backup_dir"`
	LastUpdate    time.Time        `json:"last_update"`
}

// Manager ties the crawl orchestrator to the ingestion service. One crawl run
// executes on a dedicated goroutine so that triggering a run never blocks the
// caller.
type Manager struct {
	scraper  *scraper.Scraper
	ingestor *ingest.Service
	store    StatsProvider
	backups  BackupCounter
	logger   *zap.Logger

	// baseCtx bounds background runs; it outlives any triggering request.
	baseCtx context.Context
}

// New constructs a Manager. baseCtx governs background run cancellation.
func New(
	baseCtx context.Context,
	scr *scraper.Scraper,
	ingestor *ingest.Service,
	store StatsProvider,
	backups BackupCounter,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Manager{
		scraper:  scr,
		ingestor: ingestor,
		store:    store,
		backups:  backups,
		logger:   logger,
		baseCtx:  baseCtx,
	}
}

// StartRun claims the single-flight run slot and launches the crawl on a
// background goroutine. It returns scraper.ErrAlreadyRunning without touching
// the active run when one is in flight.
func (m *Manager) StartRun() error {
	if err := m.scraper.Begin(time.Now()); err != nil {
		return err
	}
	go m.execute()
	return nil
}

func (m *Manager) execute() {
	articles := m.scraper.Crawl(m.baseCtx)
	if len(articles) == 0 {
		m.logger.Warn("run yielded no articles to ingest")
		return
	}
	stats := m.ingestor.Process(m.baseCtx, articles)
	m.logger.Info("run finished",
		zap.Int("scraped", len(articles)),
		zap.Int("new", stats.NewArticles),
		zap.Int("updated", stats.UpdatedArticles),
		zap.Int("failed_saves", stats.FailedSaves),
	)
}

// Progress returns a snapshot of the current run tracker. Safe to call at
// any time from any goroutine.
func (m *Manager) Progress() scraper.ProgressSnapshot {
	return m.scraper.Progress().Snapshot()
}

// Stats aggregates store and backup statistics.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	storeStats, err := m.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	backupCount := 0
	backupDir := ""
	if m.backups != nil {
		backupDir = m.backups.Dir()
		if n, err := m.backups.Count(); err == nil {
			backupCount = n
		} else {
			m.logger.Warn("failed to count backup files", zap.Error(err))
		}
	}
	return Stats{
		TotalArticles: storeStats.TotalArticles,
		Latest:        storeStats.Latest,
		Oldest:        storeStats.Oldest,
		JSONBackups:   backupCount,
		BackupDir:     backupDir,
		LastUpdate:    time.Now(),
	}, nil
}
