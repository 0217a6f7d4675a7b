package modules

import (
	"context"
	"time"

	"github.com/Luismorlan/insighthub/pipeline"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/sirupsen/logrus"
)

type BatchProcessor interface {
	ProcessPendingBatch(ctx context.Context, userId string, limit int) (*pipeline.BatchResult, error)
}

type BatchSweeperConfig struct {
	Name      string
	Interval  time.Duration
	BatchSize int
	UserId    string
}

// BatchSweeper periodically runs the pipeline over content still pending,
// which covers messages lost while the worker restarted.
type BatchSweeper struct {
	Config    BatchSweeperConfig
	Processor BatchProcessor
}

func NewBatchSweeper(config BatchSweeperConfig, p BatchProcessor) *BatchSweeper {
	return &BatchSweeper{Config: config, Processor: p}
}

func (b *BatchSweeper) RunModule(ctx context.Context) error {
	ticker := time.NewTicker(b.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.RunOnce(ctx)
		}
	}
}

func (b *BatchSweeper) RunOnce(ctx context.Context) *pipeline.BatchResult {
	res, err := b.Processor.ProcessPendingBatch(ctx, b.Config.UserId, b.Config.BatchSize)
	if err != nil {
		Log.WithFields(logrus.Fields{"user_id": b.Config.UserId}).Errorf("batch sweep failed: %v", err)
		return nil
	}
	if res.Processed > 0 || res.Errors > 0 {
		Log.WithFields(logrus.Fields{
			"processed":           res.Processed,
			"auto_summarized":     res.AutoSummarized,
			"on_demand_available": res.OnDemandAvailable,
			"errors":              res.Errors,
		}).Info("batch sweep finished")
	}
	return res
}

func (b *BatchSweeper) Name() string {
	return b.Config.Name
}
