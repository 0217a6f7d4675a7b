package main

import (
	"context"
	"flag"
	"time"

	"github.com/Luismorlan/insighthub/aicache"
	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/dashboard"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/matcher"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/pipeline"
	"github.com/Luismorlan/insighthub/server"
	. "github.com/Luismorlan/insighthub/utils"
	"github.com/Luismorlan/insighthub/utils/dotenv"
	. "github.com/Luismorlan/insighthub/utils/flag"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	CloseProfiler()
	CloseTracer()
	Log.Info("api server shutdown")
}

func main() {
	flag.Parse()
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	StartTracer(*ServiceName)
	StartProfiler(*ServiceName)

	db, err := GetDBConnection()
	if err != nil {
		panic(err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		panic(err)
	}
	redisClient, err := GetRedisClient(context.Background())
	if err != nil {
		panic(err)
	}
	statsdClient := NewDogStatsdClient()
	provider, err := llm.NewProviderFromEnv()
	if err != nil {
		panic(err)
	}

	followingStore := following.NewStore(db, following.NewRedisMirror(redisClient, following.DefaultMirrorTTL))
	mentionStore := mention.NewStore(db)
	companyMatcher := matcher.NewMatcher(followingStore, mentionStore)
	selectivePipeline := pipeline.NewPipeline(pipeline.Deps{
		DB:       db,
		Matcher:  companyMatcher,
		Resolver: aicache.NewResolver(aicache.NewStore(db), aicache.NewRedisLocker(redisClient), statsdClient, aicache.ResolverConfig{}),
		Provider: provider,
		Costs:    cost.NewRecorder(db, statsdClient),
	})

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(*ServiceName))

	server.RegisterRoutes(router, server.Services{
		Pipeline:  selectivePipeline,
		Matcher:   companyMatcher,
		Dashboard: dashboard.NewService(db, followingStore, companyMatcher),
		Companies: mentionStore,
		Following: followingStore,
		CostSummary: func(ctx context.Context, since time.Time) (*cost.Report, error) {
			return cost.Summarize(ctx, db, since)
		},
	})

	Log.Info("api server starts up")
	if err := router.Run(":8080"); err != nil {
		Log.Errorf("api server stopped: %v", err)
	}
}
