package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riverdogs/newscrawler/internal/metrics"
)

// Config controls crawl orchestration.
type Config struct {
	// BaseURL is the listing page enumerating article links.
	BaseURL string
	// SectionPath is the path segment identifying article anchors.
	SectionPath string
	// Delay is the pause between article fetches. It is a deliberate
	// backpressure measure against the upstream source, not a tunable for
	// throughput; keep it at 1s unless the source's operators say otherwise.
	Delay time.Duration
}

// Scraper drives URL discovery and article iteration, updating the Progress
// tracker as it goes. At most one run is in flight at a time.
type Scraper struct {
	cfg      Config
	fetcher  Fetcher
	progress *Progress
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New constructs a Scraper.
func New(cfg Config, fetcher Fetcher, progress *Progress, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return &Scraper{
		cfg:      cfg,
		fetcher:  fetcher,
		progress: progress,
		limiter:  limiter,
		logger:   logger,
	}
}

// Progress exposes the run tracker for status consumers.
func (s *Scraper) Progress() *Progress {
	return s.progress
}

// Begin claims the single-flight run slot. It returns ErrAlreadyRunning when
// a run is in progress, leaving the active run's counters untouched.
func (s *Scraper) Begin(now time.Time) error {
	return s.progress.Begin(now)
}

// Run claims the run slot and crawls synchronously. Callers that need a
// non-blocking start claim via Begin and invoke Crawl on their own goroutine.
func (s *Scraper) Run(ctx context.Context) ([]Article, error) {
	if err := s.Begin(time.Now()); err != nil {
		return nil, err
	}
	return s.Crawl(ctx), nil
}

// Crawl executes the run the caller claimed via Begin: discovers article URLs,
// iterates them in discovery order with pacing, and returns the successfully
// parsed articles. Per-article failures only bump the failure counter; the
// tracker always reaches a terminal state, and errors never propagate out.
func (s *Scraper) Crawl(ctx context.Context) (articles []Article) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("crawl panicked", zap.Any("panic", r))
			s.progress.Fail(time.Now(), fmt.Sprintf("unexpected error: %v", r))
		}
		metrics.ObserveRun(string(s.progress.Status()), time.Since(started))
	}()

	urls := s.discoverURLs(ctx)
	s.progress.SetTotal(len(urls))
	if len(urls) == 0 {
		s.logger.Error("no article URLs found", zap.String("listing", s.cfg.BaseURL))
		s.progress.Fail(time.Now(), ErrNoURLsFound.Error())
		return nil
	}
	s.logger.Info("starting to scrape articles", zap.Int("count", len(urls)))

	for i, articleURL := range urls {
		s.progress.SetCurrent(articleURL)
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				s.progress.Fail(time.Now(), err.Error())
				return articles
			}
		} else if ctx.Err() != nil {
			s.progress.Fail(time.Now(), ctx.Err().Error())
			return articles
		}

		s.logger.Info("scraping article",
			zap.Int("index", i+1),
			zap.Int("total", len(urls)),
			zap.String("url", articleURL),
		)

		article := s.scrapeArticle(ctx, articleURL)
		if article.Usable() {
			articles = append(articles, *article)
			s.progress.RecordSuccess(article.Title, articleURL, time.Now())
			metrics.ObserveScrape("success")
			s.logger.Info("scraped article", zap.String("title", article.Title))
		} else {
			s.progress.RecordFailure()
			metrics.ObserveScrape("failure")
			s.logger.Warn("failed to scrape article", zap.String("url", articleURL))
		}
	}

	s.progress.Complete(time.Now())
	snap := s.progress.Snapshot()
	s.logger.Info("scraping completed",
		zap.Int("total_urls", snap.TotalURLs),
		zap.Int("successful", snap.SuccessfulScrapes),
		zap.Int("failed", snap.FailedScrapes),
		zap.String("elapsed", snap.ElapsedTime),
	)
	return articles
}

// discoverURLs fetches the listing page and extracts article URLs. Fetch or
// parse failures are logged and yield an empty set; the caller treats that as
// the run-level no-URLs condition.
func (s *Scraper) discoverURLs(ctx context.Context) []string {
	markup, err := s.fetcher.Fetch(ctx, s.cfg.BaseURL)
	if err != nil {
		s.logger.Error("failed to fetch listing page", zap.Error(err))
		return nil
	}
	urls, err := ExtractArticleURLs(markup, s.baseOrigin(), s.cfg.SectionPath)
	if err != nil {
		s.logger.Error("failed to parse listing page", zap.Error(err))
		return nil
	}
	s.logger.Info("found article URLs", zap.Int("count", len(urls)))
	return urls
}

// scrapeArticle fetches and parses one article; nil means the attempt failed.
func (s *Scraper) scrapeArticle(ctx context.Context, articleURL string) *Article {
	markup, err := s.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		if IsTimeout(err) {
			s.logger.Error("timeout while fetching article", zap.String("url", articleURL))
		} else {
			s.logger.Error("error fetching article", zap.String("url", articleURL), zap.Error(err))
		}
		return nil
	}
	return ParseArticle(markup, articleURL)
}

// baseOrigin reduces the listing URL to its scheme://host origin so relative
// article links resolve the way the site intends.
func (s *Scraper) baseOrigin() string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s.cfg.BaseURL
	}
	return u.Scheme + "://" + u.Host
}
