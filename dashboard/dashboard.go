package dashboard

import (
	"context"
	"time"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/matcher"
	"github.com/Luismorlan/insighthub/model"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultPriorityLimit = 10
	DefaultRecentLimit   = 5
	MaxListLimit         = 100
)

type FollowingReader interface {
	GetFollowingCompanies(ctx context.Context, userId string) ([]string, error)
}

type Matcher interface {
	ShouldAutoSummarize(ctx context.Context, contentId string, userId string) matcher.MatchResult
}

type UserStats struct {
	FollowingCompanies int64   `json:"following_companies"`
	TotalContent       int64   `json:"total_content"`
	MatchedContent     int64   `json:"matched_content"`
	AutoSummarized     int64   `json:"auto_summarized"`
	PendingSummary     int64   `json:"pending_summary"`
	MatchRate          float64 `json:"match_rate"`
}

type PriorityContent struct {
	ContentId          string                `json:"content_id"`
	Title              string                `json:"title"`
	Source             string                `json:"source"`
	PublishedAt        time.Time             `json:"published_at"`
	State              model.ProcessingState `json:"state"`
	MatchedCompanies   []string              `json:"matched_companies"`
	MatchedCompanyInfo []matcher.CompanyInfo `json:"matched_company_info"`
	MaxPriority        int                   `json:"max_priority"`
	MatchRatio         float64               `json:"match_ratio"`
	HasAISummary       bool                  `json:"has_ai_summary"`
}

type RecentSummary struct {
	Id             string    `json:"id"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"published_at"`
	SummaryBullets []string  `json:"summary_bullets"`
	Insight        string    `json:"insight"`
	Tags           []string  `json:"tags"`
}

type Dashboard struct {
	Stats           *UserStats        `json:"stats"`
	PriorityContent []PriorityContent `json:"priority_content"`
	RecentSummaries []RecentSummary   `json:"recent_summaries"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Service computes read only views over content, mentions and followings.
type Service struct {
	db        *gorm.DB
	following FollowingReader
	matcher   Matcher
}

func NewService(db *gorm.DB, following FollowingReader, m Matcher) *Service {
	return &Service{db: db, following: following, matcher: m}
}

// matchedContentIds is a subquery selecting content mentioning any of the
// companies.
func (s *Service) matchedContentIds(ctx context.Context, companyIds []string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&model.CompanyMention{}).
		Select("content_id").
		Where("company_id IN ?", companyIds)
}

func (s *Service) UserStats(ctx context.Context, userId string) (*UserStats, error) {
	companies, err := s.following.GetFollowingCompanies(ctx, userId)
	if err != nil {
		return nil, err
	}
	stats := &UserStats{}
	if len(companies) == 0 {
		return stats, nil
	}
	stats.FollowingCompanies = int64(len(companies))

	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Content{}).Count(&stats.TotalContent).Error; err != nil {
		return nil, apperr.Transient(err, "count content")
	}
	if err := db.Model(&model.Content{}).
		Where("id IN (?)", s.matchedContentIds(ctx, companies)).
		Count(&stats.MatchedContent).Error; err != nil {
		return nil, apperr.Transient(err, "count matched content")
	}
	if err := db.Model(&model.Content{}).
		Where("id IN (?)", s.matchedContentIds(ctx, companies)).
		Where("state = ?", model.StateAutoSummarized).
		Count(&stats.AutoSummarized).Error; err != nil {
		return nil, apperr.Transient(err, "count auto summarized content")
	}
	if err := db.Model(&model.Content{}).
		Where("id IN (?)", s.matchedContentIds(ctx, companies)).
		Where("state IN ?", []model.ProcessingState{model.StatePendingSummary, model.StateOnDemandAvailable}).
		Count(&stats.PendingSummary).Error; err != nil {
		return nil, apperr.Transient(err, "count pending content")
	}

	if stats.TotalContent > 0 {
		stats.MatchRate = float64(stats.MatchedContent) / float64(stats.TotalContent)
	}
	return stats, nil
}

// PriorityContent lists the newest content mentioning followed companies,
// ranked by the priority of the best matched company and then by match
// ratio.
func (s *Service) PriorityContent(ctx context.Context, userId string, limit int) ([]PriorityContent, error) {
	limit = clampLimit(limit, DefaultPriorityLimit)
	companies, err := s.following.GetFollowingCompanies(ctx, userId)
	if err != nil {
		return nil, err
	}
	out := []PriorityContent{}
	if len(companies) == 0 {
		return out, nil
	}

	var contents []model.Content
	err = s.db.WithContext(ctx).
		Where("id IN (?)", s.matchedContentIds(ctx, companies)).
		Order("created_at DESC").
		Limit(limit).
		Find(&contents).Error
	if err != nil {
		return nil, apperr.Transient(err, "load matched content")
	}

	byId := make(map[string]model.Content, len(contents))
	items := make([]matcher.PriorityItem, 0, len(contents))
	for _, c := range contents {
		match := s.matcher.ShouldAutoSummarize(ctx, c.Id, userId)
		if match.Err != nil {
			Log.WithFields(logrus.Fields{"content_id": c.Id, "user_id": userId}).Warnf("skip content in priority list: %s", match.Reason)
			continue
		}
		byId[c.Id] = c
		items = append(items, matcher.PriorityItem{ContentId: c.Id, Match: match})
	}
	matcher.SortByPriority(items)

	for _, item := range items {
		c := byId[item.ContentId]
		out = append(out, PriorityContent{
			ContentId:          c.Id,
			Title:              c.Title,
			Source:             c.Source,
			PublishedAt:        c.PublishedAt,
			State:              c.State,
			MatchedCompanies:   item.Match.MatchedCompanies,
			MatchedCompanyInfo: item.Match.MatchedCompanyInfo,
			MaxPriority:        item.Match.MaxPriority,
			MatchRatio:         item.Match.MatchRatio,
			HasAISummary:       c.HasSummary(),
		})
	}
	return out, nil
}

func (s *Service) RecentAutoSummarized(ctx context.Context, limit int) ([]RecentSummary, error) {
	limit = clampLimit(limit, DefaultRecentLimit)
	var contents []model.Content
	err := s.db.WithContext(ctx).
		Where("state = ?", model.StateAutoSummarized).
		Where("insight <> ''").
		Order("published_at DESC").
		Limit(limit).
		Find(&contents).Error
	if err != nil {
		return nil, apperr.Transient(err, "load recent summaries")
	}

	out := make([]RecentSummary, 0, len(contents))
	for _, c := range contents {
		out = append(out, RecentSummary{
			Id:             c.Id,
			Title:          c.Title,
			Source:         c.Source,
			PublishedAt:    c.PublishedAt,
			SummaryBullets: c.SummaryBullets,
			Insight:        c.Insight,
			Tags:           c.Tags,
		})
	}
	return out, nil
}

func (s *Service) Dashboard(ctx context.Context, userId string) (*Dashboard, error) {
	stats, err := s.UserStats(ctx, userId)
	if err != nil {
		return nil, err
	}
	priority, err := s.PriorityContent(ctx, userId, DefaultPriorityLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentAutoSummarized(ctx, DefaultRecentLimit)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Stats:           stats,
		PriorityContent: priority,
		RecentSummaries: recent,
		Timestamp:       time.Now(),
	}, nil
}

func clampLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
