package mention

import (
	"context"
	"strings"
	"time"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MinConfidence is the extraction confidence below which an unknown
	// company is not created.
	MinConfidence = 0.7

	ExtractionMethodAI     = "ai"
	ExtractionMethodManual = "manual"

	defaultListLimit = 50
	maxListLimit     = 200
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetContentCompanies returns the distinct ids of companies mentioned by the
// content item, empty when nothing was extracted.
func (s *Store) GetContentCompanies(ctx context.Context, contentId string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).
		Model(&model.CompanyMention{}).
		Where("content_id = ?", contentId).
		Distinct("company_id").
		Pluck("company_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "load content companies")
	}
	return ids, nil
}

func (s *Store) GetCompaniesByIds(ctx context.Context, ids []string) ([]model.Company, error) {
	companies := []model.Company{}
	if len(ids) == 0 {
		return companies, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, errors.Wrap(err, "load companies")
	}
	return companies, nil
}

func (s *Store) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("company %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load company")
	}
	return &c, nil
}

type ListFilter struct {
	Industry string
	// Query matches a substring of the name, case insensitive.
	Query  string
	Limit  int
	Offset int
}

// ListCompanies returns active companies, most mentioned first.
func (s *Store) ListCompanies(ctx context.Context, f ListFilter) ([]model.Company, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if f.Industry != "" {
		q = q.Where("industry = ?", f.Industry)
	}
	if f.Query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(f.Query)+"%")
	}

	companies := []model.Company{}
	err := q.Order("total_mentions DESC, name ASC").Limit(f.Limit).Offset(f.Offset).Find(&companies).Error
	return companies, errors.Wrap(err, "list companies")
}

type CompanyStats struct {
	CompanyId       string                    `json:"company_id"`
	TotalMentions   int64                     `json:"total_mentions"`
	Sentiment       map[model.Sentiment]int64 `json:"sentiment"`
	AvgRelevance    float64                   `json:"avg_relevance"`
	LastMentionedAt *time.Time                `json:"last_mentioned_at"`
}

func (s *Store) CompanyStats(ctx context.Context, id string) (*CompanyStats, error) {
	c, err := s.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Sentiment model.Sentiment
		Count     int64
		Relevance float64
	}
	err = s.db.WithContext(ctx).
		Model(&model.CompanyMention{}).
		Select("sentiment, COUNT(*) AS count, SUM(relevance_score) AS relevance").
		Where("company_id = ?", id).
		Group("sentiment").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "aggregate mentions")
	}

	stats := &CompanyStats{
		CompanyId:       id,
		Sentiment:       map[model.Sentiment]int64{},
		LastMentionedAt: c.LastMentionedAt,
	}
	var relevance float64
	for _, r := range rows {
		stats.Sentiment[r.Sentiment] = r.Count
		stats.TotalMentions += r.Count
		relevance += r.Relevance
	}
	if stats.TotalMentions > 0 {
		stats.AvgRelevance = relevance / float64(stats.TotalMentions)
	}
	return stats, nil
}

type SaveReport struct {
	// Linked counts new mentions written, Created counts new companies.
	Linked    int `json:"linked"`
	Created   int `json:"created"`
	Discarded int `json:"discarded"`
}

// SaveExtraction links a content item to the companies extraction found in
// it. Known companies are linked whatever the confidence. Unknown names become
// new companies only at MinConfidence or above, and only confident entries
// grow the aliases of known ones. Mentions are written at most once per
// (company, content) pair, so replaying an extraction is harmless. The
// content is marked extracted in the same transaction.
func (s *Store) SaveExtraction(ctx context.Context, contentId string, extracted []llm.ExtractedCompany, method string, modelName string) (*SaveReport, error) {
	report := &SaveReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range extracted {
			name := strings.TrimSpace(e.Name)
			if name == "" {
				report.Discarded++
				continue
			}

			company, err := findCompany(tx, name)
			if err != nil {
				return err
			}
			switch {
			case company == nil && e.ConfidenceScore < MinConfidence:
				report.Discarded++
				continue
			case company == nil:
				var created bool
				if company, created, err = createCompany(tx, name, e); err != nil {
					return err
				}
				if created {
					report.Created++
				}
			case e.ConfidenceScore >= MinConfidence:
				if err := growAliases(tx, company, name, e.Aliases); err != nil {
					return err
				}
			}

			mention := model.CompanyMention{
				CompanyId:        company.Id,
				ContentId:        contentId,
				MentionText:      name,
				MentionContext:   e.MentionContext,
				Sentiment:        model.ParseSentiment(e.Sentiment),
				RelevanceScore:   e.RelevanceScore,
				ConfidenceScore:  e.ConfidenceScore,
				ExtractionMethod: method,
				ExtractionModel:  modelName,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "company_id"}, {Name: "content_id"}},
				DoNothing: true,
			}).Create(&mention)
			if res.Error != nil {
				return errors.Wrap(res.Error, "insert mention")
			}
			if res.RowsAffected == 0 {
				continue
			}
			report.Linked++

			now := time.Now()
			err = tx.Model(&model.Company{}).Where("id = ?", company.Id).Updates(map[string]interface{}{
				"total_mentions":    gorm.Expr("total_mentions + 1"),
				"last_mentioned_at": now,
			}).Error
			if err != nil {
				return errors.Wrap(err, "bump company mentions")
			}
		}
		return markExtracted(tx, contentId)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// MarkExtracted records that extraction finished for the content item without
// linking anything, so the batch sweeper no longer waits for it.
func (s *Store) MarkExtracted(ctx context.Context, contentId string) error {
	return markExtracted(s.db.WithContext(ctx), contentId)
}

func markExtracted(tx *gorm.DB, contentId string) error {
	err := tx.Model(&model.Content{}).
		Where("id = ? AND extracted_at IS NULL", contentId).
		Update("extracted_at", time.Now()).Error
	return errors.Wrap(err, "mark content extracted")
}

// findCompany looks a company up by canonical name then by alias, returning
// nil when neither matches.
func findCompany(tx *gorm.DB, name string) (*model.Company, error) {
	var found []model.Company
	if err := tx.Where("LOWER(name) = ?", strings.ToLower(name)).Limit(1).Find(&found).Error; err != nil {
		return nil, errors.Wrap(err, "lookup company by name")
	}
	if len(found) == 0 {
		// Aliases are stored as a JSON array, match the quoted element.
		if err := tx.Where("aliases LIKE ?", "%\""+name+"\"%").Limit(1).Find(&found).Error; err != nil {
			return nil, errors.Wrap(err, "lookup company by alias")
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func growAliases(tx *gorm.DB, c *model.Company, name string, more []string) error {
	aliases := mergeAliases(c.Name, c.Aliases, append([]string{name}, more...))
	if len(aliases) == len(c.Aliases) {
		return nil
	}
	if err := tx.Model(c).Select("aliases").Updates(&model.Company{Aliases: aliases}).Error; err != nil {
		return errors.Wrap(err, "grow aliases")
	}
	c.Aliases = aliases
	return nil
}

func createCompany(tx *gorm.DB, name string, e llm.ExtractedCompany) (*model.Company, bool, error) {
	c := model.Company{
		Name:            name,
		Industry:        e.Industry,
		Aliases:         mergeAliases(name, nil, e.Aliases),
		ConfidenceScore: e.ConfidenceScore,
		IsActive:        true,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c)
	if res.Error != nil {
		return nil, false, errors.Wrap(res.Error, "create company")
	}
	if res.RowsAffected == 0 {
		// Created concurrently under the same name.
		var existing model.Company
		if err := tx.Where("name = ?", name).First(&existing).Error; err != nil {
			return nil, false, errors.Wrap(err, "reload company")
		}
		return &existing, false, nil
	}
	return &c, true, nil
}

// mergeAliases appends the new names that are neither the canonical name nor
// already known.
func mergeAliases(canonical string, known []string, more []string) []string {
	merged := append([]string{}, known...)
	for _, a := range more {
		a = strings.TrimSpace(a)
		if a == "" || strings.EqualFold(a, canonical) || utils.ContainsString(merged, a) {
			continue
		}
		merged = append(merged, a)
	}
	return merged
}
