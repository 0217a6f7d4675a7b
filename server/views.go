package server

import (
	"time"

	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/model"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

type CompanyView struct {
	Id              string     `json:"id"`
	Name            string     `json:"name"`
	DisplayName     string     `json:"display_name"`
	Industry        string     `json:"industry"`
	Aliases         []string   `json:"aliases"`
	Keywords        []string   `json:"keywords"`
	ConfidenceScore float64    `json:"confidence_score"`
	TotalMentions   int        `json:"total_mentions"`
	LastMentionedAt *time.Time `json:"last_mentioned_at"`
	IsActive        bool       `json:"is_active"`
}

type CompanyDetailView struct {
	CompanyView
	Stats *mention.CompanyStats `json:"stats"`
}

func toCompanyViews(companies []model.Company) ([]CompanyView, error) {
	views := []CompanyView{}
	if err := copier.Copy(&views, &companies); err != nil {
		return nil, errors.Wrap(err, "copy companies")
	}
	return views, nil
}

func toCompanyView(company *model.Company) (CompanyView, error) {
	view := CompanyView{}
	if err := copier.Copy(&view, company); err != nil {
		return view, errors.Wrap(err, "copy company")
	}
	return view, nil
}
