package scraper

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverdogs/newscrawler/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return nil, errors.New("unexpected fetch: " + url)
}

const (
	testListingURL = "https://www.milb.com/charleston/news"
	testArticleA   = "https://www.milb.com/charleston/news/article-a"
	testArticleB   = "https://www.milb.com/charleston/news/article-b"
)

func testListingPage() []byte {
	return []byte(`<html><body>
		<a href="/charleston/news/article-a">A</a>
		<a href="/charleston/news/article-b">B</a>
	</body></html>`)
}

func testArticlePage(title string) []byte {
	return []byte(`<html><body>
		<h1 class="article-item__headline">` + title + `</h1>
		<div class="article-item__bottom"><p>Body of ` + title + `.</p></div>
	</body></html>`)
}

func newTestScraper(fetcher Fetcher) *Scraper {
	return New(Config{
		BaseURL:     testListingURL,
		SectionPath: "/charleston/news/",
	}, fetcher, NewProgress(5), nil)
}

func TestScraperRun(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			testListingURL: testListingPage(),
			testArticleA:   testArticlePage("Article A"),
		},
		errs: map[string]error{
			testArticleB: &FetchError{Kind: FetchTimeout, URL: testArticleB, Err: errors.New("deadline exceeded")},
		},
	}
	s := newTestScraper(fetcher)

	articles, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Article A", articles[0].Title)
	assert.Equal(t, testArticleA, articles[0].URL)

	snap := s.Progress().Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.TotalURLs)
	assert.Equal(t, 2, snap.ProcessedURLs)
	assert.Equal(t, 1, snap.SuccessfulScrapes)
	assert.Equal(t, 1, snap.FailedScrapes)
	require.Len(t, snap.LastScraped, 1)
	assert.Equal(t, "Article A", snap.LastScraped[0].Title)
	require.NotNil(t, snap.EndTime)
}

func TestScraperRunMixedStrategies(t *testing.T) {
	t.Parallel()

	embeddedA := []byte(`<html><head><script>window.MiLB_ARTICLES article-json="` +
		`{"headline": "Embedded A", "articleParts": [{"type": "markdown", "content": "Embedded body."}]}` +
		`";</script></head><body></body></html>`)

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			testListingURL: testListingPage(),
			testArticleA:   embeddedA,
			testArticleB:   testArticlePage("DOM B"),
		},
	}
	s := newTestScraper(fetcher)

	articles, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Embedded A", articles[0].Title)
	assert.Equal(t, "DOM B", articles[1].Title)

	snap := s.Progress().Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.SuccessfulScrapes)
	assert.Equal(t, 2, snap.ProcessedURLs)
	assert.Zero(t, snap.FailedScrapes)
}

func TestScraperRunAllTimeouts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			testListingURL: []byte(`<a href="/charleston/news/article-a">A</a>`),
		},
		errs: map[string]error{
			testArticleA: &FetchError{Kind: FetchTimeout, URL: testArticleA, Err: errors.New("deadline exceeded")},
		},
	}
	s := newTestScraper(fetcher)

	articles, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, articles)

	// Per-article timeouts are failures within a run, not run failures.
	snap := s.Progress().Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.FailedScrapes)
	assert.Zero(t, snap.SuccessfulScrapes)
}

func TestScraperRunNoURLs(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			testListingURL: []byte(`<html><body><p>no links</p></body></html>`),
		},
	}
	s := newTestScraper(fetcher)

	articles, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, articles)

	snap := s.Progress().Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, ErrNoURLsFound.Error(), snap.ErrorMessage)
}

func TestScraperRunListingFetchFails(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		errs: map[string]error{
			testListingURL: errors.New("connection refused"),
		},
	}
	s := newTestScraper(fetcher)

	articles, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Equal(t, StatusError, s.Progress().Status())
}

func TestScraperRunAlreadyRunning(t *testing.T) {
	t.Parallel()

	s := newTestScraper(&fakeFetcher{})
	require.NoError(t, s.Begin(time.Now()))

	_, err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, StatusRunning, s.Progress().Status())
}

func TestScraperRunCanceledMidRun(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			testListingURL: testListingPage(),
			testArticleA:   testArticlePage("Article A"),
			testArticleB:   testArticlePage("Article B"),
		},
	}
	s := New(Config{
		BaseURL:     testListingURL,
		SectionPath: "/charleston/news/",
		Delay:       50 * time.Millisecond,
	}, fetcher, NewProgress(5), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Begin(time.Now()))
	cancel()

	articles := s.Crawl(ctx)
	// The first wait observes the canceled context, so nothing is scraped and
	// the run lands in its terminal error state.
	assert.Empty(t, articles)
	snap := s.Progress().Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.NotEmpty(t, snap.ErrorMessage)
}
