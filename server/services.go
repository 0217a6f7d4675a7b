package server

import (
	"context"
	"time"

	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/dashboard"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/matcher"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/pipeline"
)

type Pipeline interface {
	ProcessNewContent(ctx context.Context, contentId string, userId string) (*pipeline.Result, error)
	TriggerOnDemandSummary(ctx context.Context, contentId string, userId string) (*pipeline.Result, error)
	ProcessPendingBatch(ctx context.Context, userId string, limit int) (*pipeline.BatchResult, error)
}

type Matcher interface {
	ShouldAutoSummarize(ctx context.Context, contentId string, userId string) matcher.MatchResult
}

type Dashboard interface {
	Dashboard(ctx context.Context, userId string) (*dashboard.Dashboard, error)
	PriorityContent(ctx context.Context, userId string, limit int) ([]dashboard.PriorityContent, error)
	RecentAutoSummarized(ctx context.Context, limit int) ([]dashboard.RecentSummary, error)
}

type Companies interface {
	ListCompanies(ctx context.Context, f mention.ListFilter) ([]model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	CompanyStats(ctx context.Context, id string) (*mention.CompanyStats, error)
}

type Following interface {
	AddFollowing(ctx context.Context, userId string, companyId string, opts following.FollowOptions) (following.Result, error)
	RemoveFollowing(ctx context.Context, userId string, companyId string) (following.Result, error)
	ListFollowing(ctx context.Context, userId string) ([]following.FollowedCompany, error)
	SyncFromDurable(ctx context.Context, userId string) ([]following.Info, error)
}

type CostSummaryFunc func(ctx context.Context, since time.Time) (*cost.Report, error)

// Services bundles everything the api handlers call into.
type Services struct {
	Pipeline    Pipeline
	Matcher     Matcher
	Dashboard   Dashboard
	Companies   Companies
	Following   Following
	CostSummary CostSummaryFunc
}
