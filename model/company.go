package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*

Company is an organization that content can mention and users can follow

Id: primary key
CreatedAt: time when entity is created
UpdatedAt: time when entity is last updated

Name: canonical name, unique
DisplayName: name shown in UI, defaults to Name
Industry: free form industry label, for example "semiconductor"
Aliases: alternative names seen by extraction, only grows
Keywords: extra keywords describing the company
ConfidenceScore: extraction confidence when the company was first created
TotalMentions: number of content items mentioning this company
LastMentionedAt: time of the latest mention
IsActive: inactive companies can not be followed

*/

type Company struct {
	Id              string `gorm:"primaryKey"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Name            string `gorm:"uniqueIndex;not null"`
	DisplayName     string
	Industry        string   `gorm:"index"`
	Aliases         []string `gorm:"serializer:json"`
	Keywords        []string `gorm:"serializer:json"`
	ConfidenceScore float64
	TotalMentions   int
	LastMentionedAt *time.Time
	IsActive        bool
}

func (c *Company) BeforeCreate(db *gorm.DB) error {
	if c.Id == "" {
		c.Id = uuid.New().String()
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	return nil
}
