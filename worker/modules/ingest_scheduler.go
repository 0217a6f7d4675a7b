package modules

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/insighthub/ingest"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

type FeedIngester interface {
	IngestFeed(ctx context.Context, feed ingest.Feed) (*ingest.Report, error)
}

type IngestSchedulerConfig struct {
	// Name of the scheduler.
	Name     string
	Feeds    []ingest.Feed
	Interval time.Duration
	// Attached to every published task, the dispatcher matches new content
	// against this user's followings.
	UserId string
}

// IngestScheduler polls every configured feed once per interval and
// publishes new content to the extraction topic.
type IngestScheduler struct {
	Config   IngestSchedulerConfig
	Ingester FeedIngester
	Statsd   statsd.ClientInterface
	EventBus *gochannel.GoChannel
}

func NewIngestScheduler(config IngestSchedulerConfig, ingester FeedIngester, client statsd.ClientInterface, e *gochannel.GoChannel) *IngestScheduler {
	if client == nil {
		client = &statsd.NoOpClient{}
	}
	return &IngestScheduler{
		Config:   config,
		Ingester: ingester,
		Statsd:   client,
		EventBus: e,
	}
}

func (s *IngestScheduler) RunModule(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce ingests all feeds and returns how many content items were
// published for extraction. A failing feed does not stop the others.
func (s *IngestScheduler) RunOnce(ctx context.Context) int {
	published := 0
	for _, feed := range s.Config.Feeds {
		report, err := s.Ingester.IngestFeed(ctx, feed)
		if err != nil {
			Log.WithFields(logrus.Fields{"feed": feed.Url}).Errorf("fail to ingest feed: %v", err)
			continue
		}
		s.Statsd.Count(worker.DdogIngestedCounter, int64(report.Inserted), []string{"feed:" + feed.Name}, 1)

		for _, id := range report.ContentIds {
			msg, err := worker.NewMessage(worker.ContentTask{ContentId: id, UserId: s.Config.UserId})
			if err != nil {
				Log.Errorf("fail to build extract message: %v", err)
				continue
			}
			if err := s.EventBus.Publish(worker.TopicContentExtract, msg); err != nil {
				Log.WithFields(logrus.Fields{"content_id": id}).Errorf("fail to publish extract message: %v", err)
				continue
			}
			published++
		}
	}
	return published
}

func (s *IngestScheduler) Name() string {
	return s.Config.Name
}
