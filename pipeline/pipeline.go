package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Luismorlan/insighthub/aicache"
	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/matcher"
	"github.com/Luismorlan/insighthub/model"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultAITimeout = 30 * time.Second
	DefaultBatchSize = 50
	MaxBatchSize     = 200

	// DefaultExtractionGrace is how long the batch waits for company
	// extraction before processing a pending item without it.
	DefaultExtractionGrace = 15 * time.Minute
)

type Matcher interface {
	ShouldAutoSummarize(ctx context.Context, contentId string, userId string) matcher.MatchResult
}

type Resolver interface {
	Resolve(ctx context.Context, contentHash string, modelVersion string, compute aicache.ComputeFunc) (*aicache.Resolution, error)
}

type CostRecorder interface {
	Record(ctx context.Context, e cost.Entry) (*model.CostLog, error)
}

// Outcome is what a pipeline call did to a content item.
type Outcome string

const (
	OutcomeAutoSummarized     Outcome = "auto_summarized"
	OutcomeOnDemandAvailable  Outcome = "on_demand_available"
	OutcomeOnDemandSummarized Outcome = "on_demand_summarized"
	OutcomeAlreadyProcessed   Outcome = "already_processed"
	OutcomeAlreadySummarized  Outcome = "already_summarized"
)

type Result struct {
	ContentId      string                `json:"content_id"`
	Outcome        Outcome               `json:"status"`
	State          model.ProcessingState `json:"state"`
	Match          *matcher.MatchResult  `json:"match,omitempty"`
	SummaryStatus  model.SummaryStatus   `json:"summary_status,omitempty"`
	SummaryBullets []string              `json:"summary_bullets,omitempty"`
	Insight        string                `json:"insight,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	// Error carries a failure the pipeline recovered from, the rest of the
	// result is still valid.
	Error string `json:"error,omitempty"`
}

func resultOf(c *model.Content, outcome Outcome) *Result {
	return &Result{
		ContentId:      c.Id,
		Outcome:        outcome,
		State:          c.State,
		SummaryStatus:  c.SummaryStatus,
		SummaryBullets: c.SummaryBullets,
		Insight:        c.Insight,
		Tags:           c.Tags,
	}
}

type Deps struct {
	DB       *gorm.DB
	Matcher  Matcher
	Resolver Resolver
	Provider llm.Provider
	Costs    CostRecorder
	// AITimeout bounds each provider call, DefaultAITimeout when zero.
	AITimeout time.Duration
	// ExtractionGrace, DefaultExtractionGrace when zero.
	ExtractionGrace time.Duration
}

// Pipeline decides per content item whether to pay for a summary now or to
// leave it for an explicit user request.
type Pipeline struct {
	db        *gorm.DB
	matcher   Matcher
	resolver  Resolver
	provider  llm.Provider
	costs     CostRecorder
	aiTimeout time.Duration

	extractionGrace time.Duration
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.AITimeout <= 0 {
		deps.AITimeout = DefaultAITimeout
	}
	if deps.ExtractionGrace <= 0 {
		deps.ExtractionGrace = DefaultExtractionGrace
	}
	return &Pipeline{
		db:              deps.DB,
		matcher:         deps.Matcher,
		resolver:        deps.Resolver,
		provider:        deps.Provider,
		costs:           deps.Costs,
		aiTimeout:       deps.AITimeout,
		extractionGrace: deps.ExtractionGrace,
	}
}

// ProcessNewContent moves a pending content item to auto_summarized when the
// user follows a company it mentions, otherwise to on_demand_available.
// Content that already left pending_summary is reported as is, so repeated
// calls never spend AI twice.
func (p *Pipeline) ProcessNewContent(ctx context.Context, contentId string, userId string) (*Result, error) {
	content, err := p.loadContent(ctx, contentId)
	if err != nil {
		return nil, err
	}
	if content.State != model.StatePendingSummary {
		return resultOf(content, OutcomeAlreadyProcessed), nil
	}

	match := p.matcher.ShouldAutoSummarize(ctx, contentId, userId)

	to, outcome := model.StateOnDemandAvailable, OutcomeOnDemandAvailable
	var s *summary
	if match.ShouldSummarize {
		sum := p.summarize(ctx, content)
		to, outcome, s = model.StateAutoSummarized, OutcomeAutoSummarized, &sum
	}

	current, applied, err := p.transition(ctx, content, []model.ProcessingState{model.StatePendingSummary}, to, s)
	if err != nil {
		return nil, err
	}
	if !applied {
		outcome = OutcomeAlreadyProcessed
	}

	res := resultOf(current, outcome)
	res.Match = &match
	if match.Err != nil {
		res.Error = match.Reason
	} else if applied && s != nil && s.Err != nil {
		res.Error = s.Err.Error()
	}
	return res, nil
}

// TriggerOnDemandSummary summarizes a content item because a user asked for
// it. Items that already carry a summary are returned untouched.
func (p *Pipeline) TriggerOnDemandSummary(ctx context.Context, contentId string, userId string) (*Result, error) {
	content, err := p.loadContent(ctx, contentId)
	if err != nil {
		return nil, err
	}
	if content.HasSummary() {
		return resultOf(content, OutcomeAlreadySummarized), nil
	}

	from := []model.ProcessingState{model.StatePendingSummary, model.StateOnDemandAvailable}
	to, outcome := model.StateOnDemandSummarized, OutcomeOnDemandSummarized
	if content.State == model.StateAutoSummarized || content.State == model.StateOnDemandSummarized {
		// Summarized state without summary fields, only fill them in.
		from, to, outcome = []model.ProcessingState{content.State}, content.State, Outcome(content.State)
	}

	s := p.summarize(ctx, content)
	current, applied, err := p.transition(ctx, content, from, to, &s)
	if err != nil {
		return nil, err
	}
	if !applied {
		if current.HasSummary() {
			return resultOf(current, OutcomeAlreadySummarized), nil
		}
		return nil, apperr.Transient(errors.Errorf("content %s changed state to %s concurrently", contentId, current.State), "on demand summary")
	}

	res := resultOf(current, outcome)
	if s.Err != nil {
		res.Error = s.Err.Error()
	}
	Log.WithFields(logrus.Fields{"content_id": contentId, "user_id": userId, "summary_status": s.Status}).Info("on demand summary written")
	return res, nil
}

type BatchFailure struct {
	ContentId string `json:"content_id"`
	Error     string `json:"error"`
}

type BatchResult struct {
	Processed         int            `json:"processed"`
	AutoSummarized    int            `json:"auto_summarized"`
	OnDemandAvailable int            `json:"on_demand_available"`
	Skipped           int            `json:"skipped"`
	Errors            int            `json:"errors"`
	Failures          []BatchFailure `json:"failures"`
	Error             string         `json:"error,omitempty"`
}

// ProcessPendingBatch runs ProcessNewContent over up to limit pending items,
// oldest first. Items still waiting for company extraction are left alone
// until the extraction grace period passes. One item failing never stops the
// batch.
func (p *Pipeline) ProcessPendingBatch(ctx context.Context, userId string, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	if limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	var ids []string
	err := p.db.WithContext(ctx).
		Model(&model.Content{}).
		Where("state = ?", model.StatePendingSummary).
		Where("extracted_at IS NOT NULL OR created_at <= ?", time.Now().Add(-p.extractionGrace)).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperr.Transient(err, "load pending content")
	}

	res := &BatchResult{Failures: []BatchFailure{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			res.Error = fmt.Sprintf("batch interrupted: %v", ctx.Err())
			break
		}

		r, err := p.safeProcess(ctx, id, userId)
		if err != nil {
			Log.WithFields(logrus.Fields{"content_id": id, "user_id": userId}).Errorf("fail to process content in batch: %v", err)
			res.Errors++
			res.Failures = append(res.Failures, BatchFailure{ContentId: id, Error: err.Error()})
			continue
		}

		res.Processed++
		switch r.Outcome {
		case OutcomeAutoSummarized:
			res.AutoSummarized++
		case OutcomeOnDemandAvailable:
			res.OnDemandAvailable++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (p *Pipeline) safeProcess(ctx context.Context, contentId string, userId string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while processing: %v", r)
		}
	}()
	return p.ProcessNewContent(ctx, contentId, userId)
}

func (p *Pipeline) loadContent(ctx context.Context, contentId string) (*model.Content, error) {
	var content model.Content
	err := p.db.WithContext(ctx).Where("id = ?", contentId).First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("content %s", contentId)
	}
	if err != nil {
		return nil, apperr.Transient(err, "load content")
	}
	return &content, nil
}

// transition moves the content from one of the from states to the to state
// and writes the summary in the same statement, inside one transaction. It
// reports applied=false, with the current row, when another worker moved the
// content first.
func (p *Pipeline) transition(ctx context.Context, content *model.Content, from []model.ProcessingState, to model.ProcessingState, s *summary) (*model.Content, bool, error) {
	var current model.Content
	applied := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		update := model.Content{State: to, UpdatedAt: now}
		columns := []string{"state", "updated_at"}
		if s != nil {
			update.SummaryBullets = s.Bullets
			update.Insight = s.Insight
			update.Tags = MergeTags(s.Tags, content.Labels)
			update.SummaryStatus = s.Status
			update.SummarizedAt = &now
			columns = append(columns, "summary_bullets", "insight", "tags", "summary_status", "summarized_at")
		}

		res := tx.Model(&model.Content{}).
			Where("id = ? AND state IN ?", content.Id, from).
			Select(columns).
			Updates(&update)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1
		return tx.Where("id = ?", content.Id).First(&current).Error
	})
	if err != nil {
		return nil, false, apperr.Transient(err, "write content state")
	}
	return &current, applied, nil
}

// summarize resolves the AI summary through the cache, degrading to a
// metadata only summary when the provider fails or times out.
func (p *Pipeline) summarize(ctx context.Context, content *model.Content) summary {
	aiCtx, cancel := context.WithTimeout(ctx, p.aiTimeout)
	defer cancel()

	modelVersion := p.provider.Model()
	resolution, err := p.resolver.Resolve(aiCtx, content.Hash, modelVersion, func(ctx context.Context) (*aicache.Result, error) {
		out, err := p.provider.Summarize(ctx, llm.SummaryInput{Title: content.Title, Body: content.RawText, Source: content.Source})
		p.recordCost(content.Id, modelVersion, out, err)
		if err != nil {
			return nil, err
		}
		return &aicache.Result{
			SummaryBullets: out.Bullets,
			Tags:           out.Tags,
			Insight:        out.Insight,
			TokensIn:       out.TokensIn,
			TokensOut:      out.TokensOut,
			CostUsd:        cost.Calculate(modelVersion, out.TokensIn, out.TokensOut).Total,
		}, nil
	})
	if err != nil {
		Log.WithFields(logrus.Fields{"content_id": content.Id, "model": modelVersion}).
			Warnf("ai summary failed, using fallback: %v", err)
		return fallbackSummary(content, err)
	}

	status := model.SummaryStatusSuccess
	if resolution.Cached {
		status = model.SummaryStatusCached
	}
	return summary{
		Bullets: resolution.Result.SummaryBullets,
		Tags:    resolution.Result.Tags,
		Insight: resolution.Result.Insight,
		Status:  status,
	}
}

func (p *Pipeline) recordCost(contentId string, modelVersion string, out *llm.SummaryOutput, callErr error) {
	if p.costs == nil {
		return
	}
	entry := cost.Entry{ContentId: contentId, Model: modelVersion, RequestType: model.RequestTypeSummary, Err: callErr}
	if out != nil {
		entry.TokensIn, entry.TokensOut = out.TokensIn, out.TokensOut
	}
	// The call context may be past its deadline already.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := p.costs.Record(ctx, entry); err != nil {
		Log.WithFields(logrus.Fields{"content_id": contentId}).Errorf("fail to record ai cost: %v", err)
	}
}
