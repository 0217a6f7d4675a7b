package ingest

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/pipeline"
	"github.com/Luismorlan/insighthub/utils"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTitleRunes = 512

// Feed is one RSS source.
type Feed struct {
	Name       string
	Url        string
	SourceName string
}

func (f Feed) source() string {
	if f.SourceName != "" {
		return f.SourceName
	}
	return "rss:" + f.Name
}

type Report struct {
	Feed       string   `json:"feed"`
	Fetched    int      `json:"fetched"`
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Errors     int      `json:"errors"`
	ContentIds []string `json:"content_ids"`
}

type Ingester struct {
	db      *gorm.DB
	parser  *gofeed.Parser
	fetcher ArticleFetcher
	now     func() time.Time
}

// NewIngester builds an Ingester. A nil fetcher keeps feed descriptions as
// the content text.
func NewIngester(db *gorm.DB, fetcher ArticleFetcher) *Ingester {
	return &Ingester{db: db, parser: gofeed.NewParser(), fetcher: fetcher, now: time.Now}
}

// IngestFeed stores every new entry of the feed as pending content. Entries
// whose text hash is already stored are counted as duplicates.
func (i *Ingester) IngestFeed(ctx context.Context, feed Feed) (*Report, error) {
	parsed, err := i.parser.ParseURLWithContext(feed.Url, ctx)
	if err != nil {
		return nil, apperr.Transient(err, "parse feed "+feed.Url)
	}

	report := &Report{Feed: feed.Url, ContentIds: []string{}}
	for _, item := range parsed.Items {
		if ctx.Err() != nil {
			break
		}
		report.Fetched++

		content := i.buildContent(ctx, feed, item)
		res := i.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
			Create(content)
		if res.Error != nil {
			Log.WithFields(logrus.Fields{"feed": feed.Url, "url": content.Url}).Errorf("fail to store content: %v", res.Error)
			report.Errors++
			continue
		}
		if res.RowsAffected == 0 {
			report.Duplicates++
			continue
		}
		report.Inserted++
		report.ContentIds = append(report.ContentIds, content.Id)
	}

	Log.WithFields(logrus.Fields{
		"feed":       feed.Url,
		"fetched":    report.Fetched,
		"inserted":   report.Inserted,
		"duplicates": report.Duplicates,
	}).Info("feed ingested")
	return report, nil
}

func (i *Ingester) buildContent(ctx context.Context, feed Feed, item *gofeed.Item) *model.Content {
	url := strings.TrimSpace(item.Link)
	fallback := htmlToText(item.Description)
	if fallback == "" {
		fallback = htmlToText(item.Content)
	}

	text := fallback
	if i.fetcher != nil && url != "" {
		fetched, err := i.fetcher.FetchText(ctx, url)
		if err != nil {
			Log.WithFields(logrus.Fields{"url": url}).Debugf("using feed description, article fetch failed: %v", err)
		} else {
			text = fetched
		}
	}

	hashInput := text
	if hashInput == "" {
		hashInput = url
	}
	title := utils.TruncateRunes(strings.TrimSpace(item.Title), maxTitleRunes)
	lang := DetectLanguage(title + " " + text)

	c := &model.Content{
		Source:      feed.source(),
		Title:       title,
		Url:         url,
		PublishedAt: i.publishedAt(item),
		RawText:     text,
		Lang:        lang,
		Hash:        utils.TextToSha256Hash(hashInput),
		State:       model.StatePendingSummary,
		Labels:      pipeline.DescriptiveLabels(lang, title),
		Tags:        []string{},
	}
	if item.Author != nil {
		c.Author = item.Author.Name
	}
	return c
}

func (i *Ingester) publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseLocal(raw); err == nil {
			return t
		}
	}
	return i.now()
}

// DetectLanguage returns "ko" for text containing Hangul, "en" otherwise.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			return "ko"
		}
	}
	return "en"
}
