package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessingState is where a content item is in the selective summary flow.
// pending_summary -> auto_summarized | on_demand_available
// on_demand_available -> on_demand_summarized
type ProcessingState string

const (
	StatePendingSummary     ProcessingState = "pending_summary"
	StateAutoSummarized     ProcessingState = "auto_summarized"
	StateOnDemandAvailable  ProcessingState = "on_demand_available"
	StateOnDemandSummarized ProcessingState = "on_demand_summarized"
)

func (s ProcessingState) IsValid() bool {
	switch s {
	case StatePendingSummary, StateAutoSummarized, StateOnDemandAvailable, StateOnDemandSummarized:
		return true
	}
	return false
}

// SummaryStatus records how the current summary fields were produced.
type SummaryStatus string

const (
	SummaryStatusNone      SummaryStatus = ""
	SummaryStatusSuccess   SummaryStatus = "success"
	SummaryStatusCached    SummaryStatus = "cached"
	SummaryStatusAPIError  SummaryStatus = "api_error"
	SummaryStatusJSONError SummaryStatus = "json_error"
)

func (s SummaryStatus) IsFallback() bool {
	return s == SummaryStatusAPIError || s == SummaryStatusJSONError
}

/*

Content is one ingested article

Id: primary key
CreatedAt: time when entity is created
UpdatedAt: time when entity is last updated

Source: feed name the article came from
Title, Author, Url: article metadata
PublishedAt: publish time reported by the feed
RawText: readable body text
Lang: "ko" or "en"
Hash: sha256 of RawText (or Url when there is no text), unique

State: exactly one ProcessingState at any time
Labels: descriptive labels independent of State, for example language and topic
SummaryBullets: at most 5 bullets
Insight: short analysis text
Tags: AI tags merged with Labels, at most 15
SummaryStatus: how the summary was produced
SummarizedAt: time when summary fields were written
ExtractedAt: time company extraction finished, nil while it is still queued

*/

type Content struct {
	Id             string    `gorm:"primaryKey"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
	Source         string `gorm:"index"`
	Title          string
	Author         string
	Url            string
	PublishedAt    time.Time `gorm:"index"`
	RawText        string
	Lang           string
	Hash           string          `gorm:"uniqueIndex;not null"`
	State          ProcessingState `gorm:"index;not null;default:'pending_summary'"`
	Labels         []string        `gorm:"serializer:json"`
	SummaryBullets []string        `gorm:"serializer:json"`
	Insight        string
	Tags           []string `gorm:"serializer:json"`
	SummaryStatus  SummaryStatus
	SummarizedAt   *time.Time
	ExtractedAt    *time.Time `gorm:"index"`
}

func (c *Content) BeforeCreate(db *gorm.DB) error {
	if c.Id == "" {
		c.Id = uuid.New().String()
	}
	if c.State == "" {
		c.State = StatePendingSummary
	}
	return nil
}

// HasSummary is true when both summary fields are populated.
func (c *Content) HasSummary() bool {
	return len(c.SummaryBullets) > 0 && c.Insight != ""
}
