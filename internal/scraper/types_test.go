package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleUsable(t *testing.T) {
	t.Parallel()

	var nilArticle *Article
	assert.False(t, nilArticle.Usable())
	assert.False(t, (&Article{}).Usable())
	assert.False(t, (&Article{Title: "t"}).Usable())
	assert.False(t, (&Article{Content: "c"}).Usable())
	assert.True(t, (&Article{Title: "t", Content: "c"}).Usable())
}

func TestArticleJSONShape(t *testing.T) {
	t.Parallel()

	article := Article{
		URL:     "https://example.com/a",
		Title:   "A",
		Content: "body",
		Tags:    Tags{Teams: []string{"Charleston RiverDogs"}},
	}
	data, err := json.Marshal(article)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "url")
	assert.Contains(t, decoded, "social_shares")
	assert.Contains(t, decoded, "last_updated")
	// Store-assigned timestamps stay out of the document until set.
	assert.NotContains(t, decoded, "created_at")
	assert.NotContains(t, decoded, "updated_at")
}
