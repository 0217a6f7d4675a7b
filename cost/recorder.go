package cost

import (
	"context"
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/insighthub/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	metricCalls  = "insighthub.ai.calls"
	metricTokens = "insighthub.ai.tokens"
	metricCost   = "insighthub.ai.cost_usd"
)

// Entry describes one real provider call.
type Entry struct {
	ContentId   string
	Model       string
	RequestType string
	TokensIn    int64
	TokensOut   int64
	Err         error
}

// Recorder appends CostLog rows and mirrors them to statsd. It is a side
// channel, failures are returned to the caller to log and never retried.
type Recorder struct {
	db     *gorm.DB
	statsd statsd.ClientInterface
}

func NewRecorder(db *gorm.DB, client statsd.ClientInterface) *Recorder {
	if client == nil {
		client = &statsd.NoOpClient{}
	}
	return &Recorder{db: db, statsd: client}
}

func (r *Recorder) Record(ctx context.Context, e Entry) (*model.CostLog, error) {
	b := Calculate(e.Model, e.TokensIn, e.TokensOut)
	row := &model.CostLog{
		ContentId:   e.ContentId,
		ModelName:   e.Model,
		RequestType: e.RequestType,
		TokensIn:    e.TokensIn,
		TokensOut:   e.TokensOut,
		CostUsd:     b.Total,
		Status:      model.CostStatusSuccess,
		Metadata: map[string]interface{}{
			"input_cost":  b.InputCost,
			"output_cost": b.OutputCost,
		},
	}
	if e.Err != nil {
		row.Status = model.CostStatusError
		row.ErrorMessage = e.Err.Error()
	}

	tags := []string{
		fmt.Sprintf("model:%s", e.Model),
		fmt.Sprintf("request_type:%s", e.RequestType),
		fmt.Sprintf("status:%s", row.Status),
	}
	// Metrics are fire and forget.
	r.statsd.Incr(metricCalls, tags, 1)
	r.statsd.Count(metricTokens, e.TokensIn+e.TokensOut, tags, 1)
	r.statsd.Histogram(metricCost, b.Total, tags, 1)

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, errors.Wrap(err, "insert cost log")
	}
	return row, nil
}
