package modules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/ingest"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/pipeline"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persistentBus replays messages to late subscribers so tests do not race
// module start up.
func persistentBus(t *testing.T) *gochannel.GoChannel {
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { bus.Close() })
	return bus
}

func nextMessage(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

type fakeIngester struct {
	reports map[string]*ingest.Report
}

func (f *fakeIngester) IngestFeed(ctx context.Context, feed ingest.Feed) (*ingest.Report, error) {
	r, ok := f.reports[feed.Url]
	if !ok {
		return nil, errors.New("feed down")
	}
	return r, nil
}

func TestIngestSchedulerPublishesNewContent(t *testing.T) {
	bus := persistentBus(t)
	scheduler := NewIngestScheduler(IngestSchedulerConfig{
		Name:     "ingest_scheduler",
		Feeds:    []ingest.Feed{{Name: "a", Url: "http://a"}, {Name: "down", Url: "http://down"}, {Name: "b", Url: "http://b"}},
		Interval: time.Hour,
		UserId:   "u1",
	}, &fakeIngester{reports: map[string]*ingest.Report{
		"http://a": {Inserted: 2, ContentIds: []string{"c1", "c2"}},
		"http://b": {Inserted: 1, ContentIds: []string{"c3"}},
	}}, nil, bus)

	assert.Equal(t, 3, scheduler.RunOnce(context.Background()))

	messages, err := bus.Subscribe(context.Background(), worker.TopicContentExtract)
	require.NoError(t, err)
	var ids []string
	for i := 0; i < 3; i++ {
		task, err := worker.ParseContentTask(nextMessage(t, messages))
		require.NoError(t, err)
		assert.Equal(t, "u1", task.UserId)
		ids = append(ids, task.ContentId)
	}
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids)
}

func TestExtractorStoresMentionsAndDispatches(t *testing.T) {
	db := utils.CreateTempDB(t)
	bus := persistentBus(t)
	content := model.Content{Title: "Acme and Globex merge", RawText: "body", Hash: "h1"}
	require.NoError(t, db.Create(&content).Error)

	provider := &llm.FakeProvider{ExtractionFn: func(title string, body string) []llm.ExtractedCompany {
		return []llm.ExtractedCompany{
			{Name: "Acme", ConfidenceScore: 0.9, RelevanceScore: 0.8},
			{Name: "Globex", ConfidenceScore: 0.95, RelevanceScore: 0.7},
			{Name: "Unsure Inc", ConfidenceScore: 0.3},
		}
	}}
	mentions := mention.NewStore(db)
	extractor := NewExtractor(ExtractorConfig{Name: "extractor", Concurrency: 2}, db, provider, mentions, cost.NewRecorder(db, nil), bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go extractor.RunModule(ctx)

	msg, err := worker.NewMessage(worker.ContentTask{ContentId: content.Id, UserId: "u1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(worker.TopicContentExtract, msg))

	dispatched, err := bus.Subscribe(ctx, worker.TopicContentDispatch)
	require.NoError(t, err)
	task, err := worker.ParseContentTask(nextMessage(t, dispatched))
	require.NoError(t, err)
	assert.Equal(t, worker.ContentTask{ContentId: content.Id, UserId: "u1"}, task)

	ids, err := mentions.GetContentCompanies(ctx, content.Id)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	var stored model.Content
	require.NoError(t, db.First(&stored, "id = ?", content.Id).Error)
	assert.NotNil(t, stored.ExtractedAt)

	var log model.CostLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, model.RequestTypeExtraction, log.RequestType)
	assert.Equal(t, int64(80), log.TokensIn)
}

func TestExtractorFailureStillDispatches(t *testing.T) {
	db := utils.CreateTempDB(t)
	bus := persistentBus(t)
	content := model.Content{Title: "t", Hash: "h1"}
	require.NoError(t, db.Create(&content).Error)

	provider := &llm.FakeProvider{Err: errors.New("provider down")}
	extractor := NewExtractor(ExtractorConfig{Name: "extractor"}, db, provider, mention.NewStore(db), cost.NewRecorder(db, nil), bus)
	assert.Error(t, extractor.Extract(context.Background(), worker.ContentTask{ContentId: content.Id}))

	var stored model.Content
	require.NoError(t, db.First(&stored, "id = ?", content.Id).Error)
	assert.NotNil(t, stored.ExtractedAt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go extractor.RunModule(ctx)
	msg, _ := worker.NewMessage(worker.ContentTask{ContentId: content.Id})
	require.NoError(t, bus.Publish(worker.TopicContentExtract, msg))

	dispatched, err := bus.Subscribe(ctx, worker.TopicContentDispatch)
	require.NoError(t, err)
	task, err := worker.ParseContentTask(nextMessage(t, dispatched))
	require.NoError(t, err)
	assert.Equal(t, content.Id, task.ContentId)
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []worker.ContentTask
	batch *pipeline.BatchResult
}

func (f *fakeProcessor) ProcessNewContent(ctx context.Context, contentId string, userId string) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, worker.ContentTask{ContentId: contentId, UserId: userId})
	f.mu.Unlock()
	if contentId == "broken" {
		return nil, errors.New("db down")
	}
	return &pipeline.Result{ContentId: contentId, Outcome: pipeline.OutcomeAutoSummarized, SummaryStatus: model.SummaryStatusSuccess}, nil
}

func (f *fakeProcessor) ProcessPendingBatch(ctx context.Context, userId string, limit int) (*pipeline.BatchResult, error) {
	return f.batch, nil
}

type countingStatsd struct {
	statsd.NoOpClient
	mu    sync.Mutex
	names []string
	tags  [][]string
}

func (c *countingStatsd) Incr(name string, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
	c.tags = append(c.tags, tags)
	return nil
}

func (c *countingStatsd) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}

func TestDispatcherAndReporter(t *testing.T) {
	bus := persistentBus(t)
	processor := &fakeProcessor{}
	client := &countingStatsd{}
	dispatcher := NewDispatcher(DispatcherConfig{Name: "dispatcher", Concurrency: 3}, processor, bus)
	reporter := NewReporter(ReporterConfig{Name: "reporter"}, client, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.RunModule(ctx)
	go reporter.RunModule(ctx)

	for _, id := range []string{"c1", "broken"} {
		msg, err := worker.NewMessage(worker.ContentTask{ContentId: id, UserId: "u1"})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(worker.TopicContentDispatch, msg))
	}

	require.Eventually(t, func() bool { return client.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.ElementsMatch(t, []string{worker.DdogPipelineOutcomeCounter, worker.DdogPipelineFailureCounter}, client.names)
	for i, name := range client.names {
		if name == worker.DdogPipelineOutcomeCounter {
			assert.Equal(t, []string{"outcome:auto_summarized", "summary_status:success"}, client.tags[i])
		}
	}
}

func TestDispatchEvent(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{Name: "dispatcher"}, &fakeProcessor{}, persistentBus(t))
	event := dispatcher.Dispatch(context.Background(), worker.ContentTask{ContentId: "broken", UserId: "u1"})
	assert.Equal(t, "db down", event.Error)
	assert.Empty(t, event.Outcome)

	event = dispatcher.Dispatch(context.Background(), worker.ContentTask{ContentId: "c1", UserId: "u1"})
	assert.Equal(t, "auto_summarized", event.Outcome)
}

func TestBatchSweeper(t *testing.T) {
	sweeper := NewBatchSweeper(BatchSweeperConfig{Name: "sweeper", Interval: time.Hour, BatchSize: 10, UserId: "u1"},
		&fakeProcessor{batch: &pipeline.BatchResult{Processed: 3, AutoSummarized: 1, OnDemandAvailable: 2}})
	res := sweeper.RunOnce(context.Background())
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Processed)
}
