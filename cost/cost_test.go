package cost

import (
	"context"
	"testing"
	"time"

	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	b := Calculate("gpt-4", 1000, 500)
	assert.InDelta(t, 0.03, b.InputCost, 1e-9)
	assert.InDelta(t, 0.03, b.OutputCost, 1e-9)
	assert.InDelta(t, 0.06, b.Total, 1e-9)

	assert.Equal(t, Calculate("gpt-3.5-turbo", 2000, 1000), Calculate("unknown-model", 2000, 1000))
	assert.InDelta(t, 0.005, Calculate("unknown-model", 2000, 1000).Total, 1e-9)
}

func TestRecorderAndSummary(t *testing.T) {
	db := utils.CreateTempDB(t)
	r := NewRecorder(db, nil)
	ctx := context.Background()

	_, err := r.Record(ctx, Entry{ContentId: "c1", Model: "gpt-3.5-turbo", RequestType: model.RequestTypeSummary, TokensIn: 1000, TokensOut: 1000})
	require.NoError(t, err)
	_, err = r.Record(ctx, Entry{ContentId: "c2", Model: "gpt-4", RequestType: model.RequestTypeExtraction, TokensIn: 1000})
	require.NoError(t, err)
	failed, err := r.Record(ctx, Entry{ContentId: "c3", Model: "gpt-4", RequestType: model.RequestTypeSummary, Err: errors.New("timeout")})
	require.NoError(t, err)
	assert.Equal(t, model.CostStatusError, failed.Status)
	assert.Equal(t, "timeout", failed.ErrorMessage)

	report, err := Summarize(ctx, db, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.TotalCalls)
	assert.Equal(t, int64(3000), report.TotalTokens)
	assert.InDelta(t, 0.0335, report.TotalCostUsd, 1e-9)

	want := []Bucket{
		{Key: "gpt-3.5-turbo", Calls: 1, TokensIn: 1000, TokensOut: 1000, CostUsd: 0.0035},
		{Key: "gpt-4", Calls: 2, TokensIn: 1000, TokensOut: 0, CostUsd: 0.03},
	}
	if diff := cmp.Diff(want, report.ByModel); diff != "" {
		t.Errorf("by model mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, report.ByRequestType, 2)
	assert.Equal(t, model.RequestTypeExtraction, report.ByRequestType[0].Key)
	require.Len(t, report.Daily, 1)
	assert.Equal(t, int64(3), report.Daily[0].Calls)

	empty, err := Summarize(ctx, db, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalCalls)
	assert.Empty(t, empty.ByModel)
}
