package ingest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	// Extracted text shorter than this is treated as a failed extraction.
	minArticleRunes = 10
)

// ArticleFetcher turns an article url into plain text.
type ArticleFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

type HttpArticleFetcher struct {
	client *http.Client
}

func NewHttpArticleFetcher(timeout time.Duration) *HttpArticleFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HttpArticleFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HttpArticleFetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build article request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch article %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", errors.Errorf("fetch article %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "parse article html")
	}
	text := ExtractText(doc)
	if len([]rune(text)) < minArticleRunes {
		return "", errors.Errorf("no readable text in %s", url)
	}
	return text, nil
}

// ExtractText prefers paragraphs inside <article>, then any paragraph, then
// the whole body with page chrome removed.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	for _, selector := range []string{"article p", "p"} {
		parts := []string{}
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if t := normalizeSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if text := strings.Join(parts, " "); len([]rune(text)) >= minArticleRunes {
			return text
		}
	}
	return normalizeSpace(doc.Find("body").Text())
}

// htmlToText strips markup from feed descriptions, which are often HTML.
func htmlToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return normalizeSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeSpace(fragment)
	}
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
