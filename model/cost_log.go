package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RequestTypeSummary    = "summary"
	RequestTypeExtraction = "extraction"

	CostStatusSuccess = "success"
	CostStatusError   = "error"
)

/*

CostLog is one real (non cached) AI provider call

ContentId: content the call was made for, may be empty
ModelName: provider model name
RequestType: RequestTypeSummary or RequestTypeExtraction
TokensIn, TokensOut: token usage reported by the provider
CostUsd: computed from the price table
Status: CostStatusSuccess or CostStatusError
ErrorMessage: provider error, only on failure
Metadata: free form extra fields, for example the price breakdown

*/

type CostLog struct {
	Id           string    `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"index"`
	ContentId    string    `gorm:"index"`
	ModelName    string    `gorm:"index"`
	RequestType  string    `gorm:"index"`
	TokensIn     int64
	TokensOut    int64
	CostUsd      float64
	Status       string
	ErrorMessage string
	Metadata     datatypes.JSONMap
}

func (l *CostLog) BeforeCreate(db *gorm.DB) error {
	if l.Id == "" {
		l.Id = uuid.New().String()
	}
	return nil
}
