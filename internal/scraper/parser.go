package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Site-specific markers for the embedded-data strategy. The source site is
// inconsistent across pages: some embed the payload as a keyed attribute,
// others as a colon assignment, so both delimiters are tried in order.
const (
	embeddedMarker  = "window.MiLB_ARTICLES"
	attrDelimiter   = "article-json="
	assignDelimiter = "articlePage:"
)

// DOM selectors used by the fallback strategy and the content overwrite step.
const (
	selArticleBody  = "div.article-item__bottom"
	selHeadline     = "h1.article-item__headline"
	selMeta         = "div.article-item__meta-container"
	selMetaDate     = "div.article-item__contributor-date"
	selMetaAuthor   = "div.article-item__contributor-info"
	fallbackSection = "news"
	fallbackTeam    = "Charleston RiverDogs"
	fallbackLeague  = "Carolina League"
)

// ParseArticle produces a normalized Article from raw page markup, or nil when
// neither extraction strategy yields a usable title+content pair. The embedded
// JSON payload is tried first; the server-rendered DOM is the fallback. When
// the DOM article body is present its text overwrites the content field, since
// the rendered body is fresher than the embedded copy.
func ParseArticle(markup []byte, pageURL string) *Article {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil
	}

	article := parseEmbedded(doc, pageURL)
	if article == nil {
		article = parseDOMFallback(doc, pageURL)
	}
	if article == nil {
		return nil
	}

	if body := domBodyText(doc); body != "" {
		article.Content = body
	}
	if !article.Usable() {
		return nil
	}
	return article
}

type embeddedPayload struct {
	Headline    string          `json:"headline"`
	SubHeadline string          `json:"subHeadline"`
	Timestamp   string          `json:"timestamp"`
	Section     string          `json:"section"`
	Tags        embeddedTags    `json:"tags"`
	Social      embeddedSocial  `json:"social"`
	Byline      map[string]any  `json:"byline"`
	Parts       []embeddedPart  `json:"articleParts"`
	Media       json.RawMessage `json:"media"`
	Thumbnail   json.RawMessage `json:"thumbnail"`
}

type embeddedTags struct {
	Topics       []string `json:"topics"`
	Teams        []string `json:"teams"`
	Players      []string `json:"players"`
	Contributors []string `json:"contributors"`
	Leagues      []string `json:"leagues"`
}

type embeddedSocial struct {
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
}

type embeddedPart struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type embeddedCut struct {
	Src         string `json:"src"`
	Width       int    `json:"width"`
	AspectRatio string `json:"aspectRatio"`
}

// parseEmbedded scans inline script blocks for the known JSON payload marker
// and maps the payload into an Article. A failure at any step is non-fatal:
// the caller falls through to the DOM strategy.
func parseEmbedded(doc *goquery.Document, pageURL string) *Article {
	var article *Article
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, embeddedMarker) {
			return true
		}
		raw, ok := locateEmbeddedJSON(text)
		if !ok {
			return true
		}
		var payload embeddedPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		article = payload.toArticle(pageURL)
		return false
	})
	return article
}

// locateEmbeddedJSON extracts the JSON blob from a script body using the two
// source-specific delimiting conventions, attribute form first.
func locateEmbeddedJSON(text string) (string, bool) {
	if _, after, found := strings.Cut(text, attrDelimiter); found {
		trimmed := strings.TrimSpace(after)
		// Keyed attribute form: a quote precedes the blob and a quote plus
		// trailing character follow it.
		if len(trimmed) > 3 {
			return trimmed[1 : len(trimmed)-2], true
		}
		return "", false
	}
	if _, after, found := strings.Cut(text, assignDelimiter); found {
		blob, _, _ := strings.Cut(after, ",")
		blob = strings.TrimSpace(blob)
		if blob != "" {
			return blob, true
		}
	}
	return "", false
}

func (p *embeddedPayload) toArticle(pageURL string) *Article {
	var content strings.Builder
	for _, part := range p.Parts {
		if part.Type == "markdown" {
			content.WriteString(part.Content)
		}
	}

	author := make(map[string]string)
	for key, value := range p.Byline {
		if s, ok := value.(string); ok {
			author[key] = s
		}
	}

	return &Article{
		URL:         pageURL,
		Title:       p.Headline,
		Subheadline: p.SubHeadline,
		Content:     stripMarkup(content.String()),
		Date:        p.Timestamp,
		Section:     p.Section,
		Images:      p.extractImages(),
		Tags: Tags{
			Topics:       orEmpty(p.Tags.Topics),
			Teams:        orEmpty(p.Tags.Teams),
			Players:      orEmpty(p.Tags.Players),
			Contributors: orEmpty(p.Tags.Contributors),
			Leagues:      orEmpty(p.Tags.Leagues),
		},
		SocialShares: SocialShares{
			Facebook: p.Social.Facebook,
			Twitter:  p.Social.Twitter,
		},
		Author: author,
	}
}

// extractImages maps the primary media cuts and thumbnail cuts into Images.
// A malformed or absent sub-structure yields no entries rather than failing
// the whole parse.
func (p *embeddedPayload) extractImages() []Image {
	images := []Image{}

	var media struct {
		Content struct {
			Cuts []embeddedCut `json:"cuts"`
		} `json:"content"`
	}
	if len(p.Media) > 0 && json.Unmarshal(p.Media, &media) == nil {
		for _, cut := range media.Content.Cuts {
			images = append(images, Image{
				URL:         cut.Src,
				Width:       cut.Width,
				AspectRatio: cut.AspectRatio,
				Kind:        ImageKindMain,
			})
		}
	}

	var thumb struct {
		Image struct {
			Cuts []embeddedCut `json:"cuts"`
		} `json:"image"`
	}
	if len(p.Thumbnail) > 0 && json.Unmarshal(p.Thumbnail, &thumb) == nil {
		for _, cut := range thumb.Image.Cuts {
			images = append(images, Image{
				URL:         cut.Src,
				Width:       cut.Width,
				AspectRatio: cut.AspectRatio,
				Kind:        ImageKindThumbnail,
			})
		}
	}

	return images
}

// parseDOMFallback builds an Article from the server-rendered markup alone.
// It succeeds only when both title and body text are non-empty.
func parseDOMFallback(doc *goquery.Document, pageURL string) *Article {
	title := strings.TrimSpace(doc.Find(selHeadline).First().Text())
	content := domBodyText(doc)
	if title == "" || content == "" {
		return nil
	}

	var date, authorName string
	meta := doc.Find(selMeta).First()
	if meta.Length() > 0 {
		date = strings.TrimSpace(meta.Find(selMetaDate).First().Text())
		authorName = strings.TrimSpace(meta.Find(selMetaAuthor).First().Text())
	}

	author := map[string]string{}
	contributors := []string{}
	if authorName != "" {
		author["name"] = authorName
		contributors = append(contributors, authorName)
	}

	images := []Image{}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		width := 0
		if w, ok := sel.Attr("width"); ok {
			width, _ = strconv.Atoi(w)
		}
		images = append(images, Image{URL: src, Width: width, Kind: ImageKindMain})
	})

	return &Article{
		URL:     pageURL,
		Title:   title,
		Content: content,
		Date:    date,
		Section: fallbackSection,
		Images:  images,
		Tags: Tags{
			Topics:       []string{},
			Teams:        []string{fallbackTeam},
			Players:      []string{},
			Contributors: contributors,
			Leagues:      []string{fallbackLeague},
		},
		Author: author,
	}
}

// domBodyText returns the concatenated paragraph text of the article body
// container, or "" when the container is absent or empty.
func domBodyText(doc *goquery.Document) string {
	body := doc.Find(selArticleBody).First()
	if body.Length() == 0 {
		return ""
	}
	var paragraphs []string
	body.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n")
}

// stripMarkup reduces embedded markup to plain text: tags removed, text nodes
// joined by single spaces, surrounding whitespace trimmed.
func stripMarkup(markup string) string {
	if markup == "" {
		return ""
	}
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var parts []string
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.TextToken {
			continue
		}
		if text := strings.TrimSpace(tokenizer.Token().Data); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
