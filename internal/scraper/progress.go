package scraper

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a scraping run.
type RunStatus string

// Run status values. Completed and error are terminal until the next run
// resets the tracker.
const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusError     RunStatus = "error"
)

// ScrapedRef is one entry in the recent-articles ring.
type ScrapedRef struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressSnapshot is a read-only copy of the tracker state, safe to hand to
// other goroutines and to serialize.
type ProgressSnapshot struct {
	RunID              string       `json:"run_id,omitempty"`
	Status             RunStatus    `json:"status"`
	TotalURLs          int          `json:"total_urls"`
	ProcessedURLs      int          `json:"processed_urls"`
	SuccessfulScrapes  int          `json:"successful_scrapes"`
	FailedScrapes      int          `json:"failed_scrapes"`
	CurrentArticle     string       `json:"current_article"`
	ProgressPercentage float64      `json:"progress_percentage"`
	StartTime          *time.Time   `json:"start_time"`
	EndTime            *time.Time   `json:"end_time"`
	ElapsedTime        string       `json:"elapsed_time,omitempty"`
	ErrorMessage       string       `json:"error_message,omitempty"`
	LastScraped        []ScrapedRef `json:"last_scraped_articles"`
}

// Progress tracks the state of the current scraping run. It follows a
// single-writer protocol: only the crawl orchestrator mutates it, while any
// goroutine may take a Snapshot. Begin resets every field, so one tracker
// instance serves consecutive runs.
type Progress struct {
	mu sync.Mutex

	runID          uuid.UUID
	status         RunStatus
	totalURLs      int
	processedURLs  int
	successful     int
	failed         int
	currentArticle string
	startTime      *time.Time
	endTime        *time.Time
	errorMessage   string
	lastScraped    []ScrapedRef
	historySize    int
}

// NewProgress builds an idle tracker keeping the historySize most recent
// scraped articles (5 when historySize is not positive).
func NewProgress(historySize int) *Progress {
	if historySize <= 0 {
		historySize = 5
	}
	return &Progress{
		status:      StatusIdle,
		historySize: historySize,
		lastScraped: []ScrapedRef{},
	}
}

// Begin transitions the tracker to running, resetting all counters and the
// recent-articles ring. It returns ErrAlreadyRunning if a run is in flight;
// the check and the reset are atomic, which is what makes the orchestrator's
// single-flight guard race-free.
func (p *Progress) Begin(now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusRunning {
		return ErrAlreadyRunning
	}
	p.runID = uuid.New()
	p.status = StatusRunning
	p.totalURLs = 0
	p.processedURLs = 0
	p.successful = 0
	p.failed = 0
	p.currentArticle = ""
	start := now
	p.startTime = &start
	p.endTime = nil
	p.errorMessage = ""
	p.lastScraped = p.lastScraped[:0]
	return nil
}

// SetTotal records the number of discovered URLs.
func (p *Progress) SetTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalURLs = n
}

// SetCurrent records the URL about to be fetched.
func (p *Progress) SetCurrent(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentArticle = url
}

// RecordSuccess counts a successful scrape and pushes the article onto the
// recent ring, evicting the oldest entry beyond the history size.
func (p *Progress) RecordSuccess(title, url string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.successful++
	p.processedURLs++
	p.lastScraped = append(p.lastScraped, ScrapedRef{Title: title, URL: url, Timestamp: at})
	if len(p.lastScraped) > p.historySize {
		p.lastScraped = p.lastScraped[len(p.lastScraped)-p.historySize:]
	}
}

// RecordFailure counts a failed scrape attempt.
func (p *Progress) RecordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
	p.processedURLs++
}

// Complete transitions the run to its terminal completed state.
func (p *Progress) Complete(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusCompleted
	p.currentArticle = ""
	end := now
	p.endTime = &end
}

// Fail transitions the run to its terminal error state with a message.
func (p *Progress) Fail(now time.Time, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errorMessage = message
	p.currentArticle = ""
	end := now
	p.endTime = &end
}

// Status returns the current run status.
func (p *Progress) Status() RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Snapshot returns a consistent copy of the tracker, including the derived
// progress percentage and elapsed time.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := ProgressSnapshot{
		Status:            p.status,
		TotalURLs:         p.totalURLs,
		ProcessedURLs:     p.processedURLs,
		SuccessfulScrapes: p.successful,
		FailedScrapes:     p.failed,
		CurrentArticle:    p.currentArticle,
		ErrorMessage:      p.errorMessage,
		LastScraped:       append([]ScrapedRef{}, p.lastScraped...),
	}
	if p.runID != uuid.Nil {
		snap.RunID = p.runID.String()
	}
	if p.totalURLs > 0 {
		snap.ProgressPercentage = float64(p.processedURLs) / float64(p.totalURLs) * 100
	}
	if p.startTime != nil {
		start := *p.startTime
		snap.StartTime = &start
	}
	if p.endTime != nil {
		end := *p.endTime
		snap.EndTime = &end
	}
	if p.startTime != nil && p.endTime != nil {
		snap.ElapsedTime = p.endTime.Sub(*p.startTime).String()
	}
	return snap
}
