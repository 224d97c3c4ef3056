package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingMarkup = `<html><body>
	<a href="/charleston/news/first-article">First</a>
	<a href="https://www.milb.com/charleston/news/second-article">Second</a>
	<a href="/charleston/news/first-article">First again</a>
	<a href="/charleston/roster">Roster</a>
	<a href="/columbia/news/other-team">Other team</a>
	<span>no href here</span>
</body></html>`

func TestExtractArticleURLs(t *testing.T) {
	t.Parallel()

	urls, err := ExtractArticleURLs([]byte(listingMarkup), "https://www.milb.com", "/charleston/news/")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.milb.com/charleston/news/first-article",
		"https://www.milb.com/charleston/news/second-article",
	}, urls)
}

func TestExtractArticleURLsEmptyListing(t *testing.T) {
	t.Parallel()

	urls, err := ExtractArticleURLs([]byte(`<html><body><p>nothing</p></body></html>`),
		"https://www.milb.com", "/charleston/news/")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestExtractArticleURLsSkipsUnparsableHrefs(t *testing.T) {
	t.Parallel()

	markup := `<a href="://bad">bad</a><a href="/charleston/news/good">good</a>`
	urls, err := ExtractArticleURLs([]byte(markup), "https://www.milb.com", "/charleston/news/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.milb.com/charleston/news/good"}, urls)
}
