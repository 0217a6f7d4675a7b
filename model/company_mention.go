package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps free form labels onto the three known sentiments,
// anything unknown is neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	}
	return SentimentNeutral
}

/*

CompanyMention is the fact that a content item references a company. It is
written once per (company, content) pair by extraction and never updated.

CompanyId: mentioned company
ContentId: content item the mention was found in
MentionText: the literal text matched, usually the company name
MentionContext: surrounding sentence
Sentiment: positive, negative or neutral
RelevanceScore: [0,1] how central the company is to the content
ConfidenceScore: [0,1] how sure extraction is about the company
ExtractionMethod: "ai" or "manual"
ExtractionModel: model name when ExtractionMethod is "ai"

*/

type CompanyMention struct {
	Id               string `gorm:"primaryKey"`
	CreatedAt        time.Time
	CompanyId        string `gorm:"uniqueIndex:idx_mention_company_content;not null"`
	ContentId        string `gorm:"uniqueIndex:idx_mention_company_content;index;not null"`
	MentionText      string
	MentionContext   string
	Sentiment        Sentiment
	RelevanceScore   float64
	ConfidenceScore  float64
	ExtractionMethod string
	ExtractionModel  string
}

func (m *CompanyMention) BeforeCreate(db *gorm.DB) error {
	if m.Id == "" {
		m.Id = uuid.New().String()
	}
	return nil
}
