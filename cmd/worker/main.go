package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Luismorlan/insighthub/aicache"
	"github.com/Luismorlan/insighthub/app_setting"
	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/ingest"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/matcher"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/pipeline"
	. "github.com/Luismorlan/insighthub/utils"
	"github.com/Luismorlan/insighthub/utils/dotenv"
	. "github.com/Luismorlan/insighthub/utils/flag"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/Luismorlan/insighthub/worker/modules"
)

const defaultAppSettingPath = "cmd/worker/config.yaml"

func feedsFromSetting(setting app_setting.WorkerAppSetting) []ingest.Feed {
	feeds := make([]ingest.Feed, 0, len(setting.FEEDS))
	for _, f := range setting.FEEDS {
		feeds = append(feeds, ingest.Feed{Name: f.NAME, Url: f.URL, SourceName: f.SOURCE_NAME})
	}
	return feeds
}

func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	serviceName := *ServiceName
	if serviceName == APIServer {
		serviceName = Worker
	}
	StartTracer(serviceName)
	defer CloseTracer()

	settingPath := *AppSettingPath
	if settingPath == "" {
		settingPath = defaultAppSettingPath
	}
	setting, err := app_setting.ParseWorkerAppSetting(settingPath)
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := GetDBConnection()
	if err != nil {
		panic(err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		panic(err)
	}
	redisClient, err := GetRedisClient(ctx)
	if err != nil {
		panic(err)
	}
	statsdClient := NewDogStatsdClient()
	provider, err := llm.NewProviderFromEnv()
	if err != nil {
		panic(err)
	}
	costs := cost.NewRecorder(db, statsdClient)

	followingStore := following.NewStore(db, following.NewRedisMirror(redisClient, following.DefaultMirrorTTL))
	mentionStore := mention.NewStore(db)
	selectivePipeline := pipeline.NewPipeline(pipeline.Deps{
		DB:              db,
		Matcher:         matcher.NewMatcher(followingStore, mentionStore),
		Resolver:        aicache.NewResolver(aicache.NewStore(db), aicache.NewRedisLocker(redisClient), statsdClient, aicache.ResolverConfig{}),
		Provider:        provider,
		Costs:           costs,
		AITimeout:       setting.AITimeout(),
		ExtractionGrace: setting.ExtractionGrace(),
	})

	eventbus := worker.NewEventBus()

	// Initialize all engine modules here.
	ms := []worker.Module{
		// Reporter reports pipeline outcomes to datadog for monitoring purpose.
		modules.NewReporter(modules.ReporterConfig{Name: "reporter"}, statsdClient, eventbus),
		// Dispatcher runs the selective pipeline for content with extraction
		// done.
		modules.NewDispatcher(
			modules.DispatcherConfig{Name: "dispatcher", Concurrency: setting.DISPATCH_CONCURRENCY},
			selectivePipeline,
			eventbus,
		),
		// Extractor links new content to mentioned companies.
		modules.NewExtractor(
			modules.ExtractorConfig{Name: "extractor", Concurrency: setting.DISPATCH_CONCURRENCY, AITimeout: setting.AITimeout()},
			db, provider, mentionStore, costs, eventbus,
		),
		// IngestScheduler polls rss feeds and pushes new content onto EventBus.
		modules.NewIngestScheduler(
			modules.IngestSchedulerConfig{
				Name:     "ingest_scheduler",
				Feeds:    feedsFromSetting(setting),
				Interval: setting.IngestInterval(),
				UserId:   setting.DISPATCH_USER_ID,
			},
			ingest.NewIngester(db, ingest.NewHttpArticleFetcher(setting.ArticleFetchTimeout())),
			statsdClient,
			eventbus,
		),
		// BatchSweeper processes pending content the event bus missed.
		modules.NewBatchSweeper(modules.BatchSweeperConfig{
			Name:      "batch_sweeper",
			Interval:  setting.SweepInterval(),
			BatchSize: setting.SWEEP_BATCH_SIZE,
			UserId:    setting.DISPATCH_USER_ID,
		}, selectivePipeline),
	}

	engine := worker.NewEngine(ms, eventbus)

	// blocking call.
	engine.Run(ctx)

	Log.Info("engine stopped execution")
}
