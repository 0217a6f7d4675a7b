package aicache

import (
	"context"

	"github.com/Luismorlan/insighthub/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result is a cached AI summary.
type Result struct {
	SummaryBullets []string `json:"summary_bullets"`
	Tags           []string `json:"tags"`
	Insight        string   `json:"insight"`
	TokensIn       int64    `json:"tokens_in"`
	TokensOut      int64    `json:"tokens_out"`
	CostUsd        float64  `json:"cost_usd"`
}

type PutStatus string

const (
	Inserted       PutStatus = "inserted"
	AlreadyPresent PutStatus = "already_present"
)

// Store is the durable cache table. PutIfAbsent relies on the unique index on
// (content_hash, model_version): the first insert wins and later ones are
// silently dropped by the database.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, contentHash string, modelVersion string) (*Result, bool, error) {
	var entries []model.AICacheEntry
	err := s.db.WithContext(ctx).
		Where("content_hash = ? AND model_version = ?", contentHash, modelVersion).
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, false, errors.Wrap(err, "read ai cache")
	}
	if len(entries) == 0 {
		return nil, false, nil
	}
	e := entries[0]
	return &Result{
		SummaryBullets: e.SummaryBullets,
		Tags:           e.Tags,
		Insight:        e.Insight,
		TokensIn:       e.TokensIn,
		TokensOut:      e.TokensOut,
		CostUsd:        e.CostUsd,
	}, true, nil
}

func (s *Store) PutIfAbsent(ctx context.Context, contentHash string, modelVersion string, r Result) (PutStatus, error) {
	entry := model.AICacheEntry{
		ContentHash:    contentHash,
		ModelVersion:   modelVersion,
		SummaryBullets: r.SummaryBullets,
		Tags:           r.Tags,
		Insight:        r.Insight,
		TokensIn:       r.TokensIn,
		TokensOut:      r.TokensOut,
		CostUsd:        r.CostUsd,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}, {Name: "model_version"}},
		DoNothing: true,
	}).Create(&entry)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "insert ai cache")
	}
	if res.RowsAffected == 0 {
		return AlreadyPresent, nil
	}
	return Inserted, nil
}
