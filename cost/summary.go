package cost

import (
	"context"
	"sort"
	"time"

	"github.com/Luismorlan/insighthub/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Bucket struct {
	Key       string  `json:"key"`
	Calls     int64   `json:"calls"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CostUsd   float64 `json:"cost_usd"`
}

type Report struct {
	Since         time.Time `json:"since"`
	TotalCalls    int64     `json:"total_calls"`
	TotalTokens   int64     `json:"total_tokens"`
	TotalCostUsd  float64   `json:"total_cost_usd"`
	ByModel       []Bucket  `json:"by_model"`
	ByRequestType []Bucket  `json:"by_request_type"`
	// Daily is ordered by day ascending, keys are YYYY-MM-DD in UTC.
	Daily []Bucket `json:"daily"`
}

// Summarize aggregates cost logs created at or after since.
func Summarize(ctx context.Context, db *gorm.DB, since time.Time) (*Report, error) {
	var rows []model.CostLog
	err := db.WithContext(ctx).
		Select("created_at", "model_name", "request_type", "tokens_in", "tokens_out", "cost_usd").
		Where("created_at >= ?", since).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load cost logs")
	}

	byModel := map[string]*Bucket{}
	byType := map[string]*Bucket{}
	daily := map[string]*Bucket{}
	report := &Report{Since: since}
	for _, row := range rows {
		report.TotalCalls++
		report.TotalTokens += row.TokensIn + row.TokensOut
		report.TotalCostUsd += row.CostUsd
		add(byModel, row.ModelName, row)
		add(byType, row.RequestType, row)
		add(daily, row.CreatedAt.UTC().Format("2006-01-02"), row)
	}
	report.TotalCostUsd = round6(report.TotalCostUsd)
	report.ByModel = flatten(byModel)
	report.ByRequestType = flatten(byType)
	report.Daily = flatten(daily)
	return report, nil
}

func add(buckets map[string]*Bucket, key string, row model.CostLog) {
	b, ok := buckets[key]
	if !ok {
		b = &Bucket{Key: key}
		buckets[key] = b
	}
	b.Calls++
	b.TokensIn += row.TokensIn
	b.TokensOut += row.TokensOut
	b.CostUsd = round6(b.CostUsd + row.CostUsd)
}

func flatten(buckets map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
