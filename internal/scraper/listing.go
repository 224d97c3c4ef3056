package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractArticleURLs scans listing markup for anchors whose target contains
// the news-section path segment, resolves them against baseOrigin, and returns
// absolute URLs deduplicated in first-seen order. An empty result is not an
// error; the caller decides whether that is fatal.
func ExtractArticleURLs(markup []byte, baseOrigin, sectionPath string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse listing markup: %w", err)
	}
	base, err := url.Parse(baseOrigin)
	if err != nil {
		return nil, fmt.Errorf("parse base origin: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, sectionPath) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls, nil
}
