package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*

AICacheEntry is a write-once AI summary keyed by content body hash and model.
The unique index on (ContentHash, ModelVersion) is what keeps the provider
from being asked twice for the same body.

*/

type AICacheEntry struct {
	Id             string `gorm:"primaryKey"`
	CreatedAt      time.Time
	ContentHash    string   `gorm:"uniqueIndex:idx_ai_cache_hash_model;not null"`
	ModelVersion   string   `gorm:"uniqueIndex:idx_ai_cache_hash_model;not null"`
	SummaryBullets []string `gorm:"serializer:json"`
	Tags           []string `gorm:"serializer:json"`
	Insight        string
	TokensIn       int64
	TokensOut      int64
	CostUsd        float64
}

func (e *AICacheEntry) BeforeCreate(db *gorm.DB) error {
	if e.Id == "" {
		e.Id = uuid.New().String()
	}
	return nil
}
