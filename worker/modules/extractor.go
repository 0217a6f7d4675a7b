package modules

import (
	"context"
	"time"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/cost"
	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/model"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ExtractionStore interface {
	SaveExtraction(ctx context.Context, contentId string, extracted []llm.ExtractedCompany, method string, modelName string) (*mention.SaveReport, error)
	MarkExtracted(ctx context.Context, contentId string) error
}

type CostRecorder interface {
	Record(ctx context.Context, e cost.Entry) (*model.CostLog, error)
}

type ExtractorConfig struct {
	Name        string
	Concurrency int
	AITimeout   time.Duration
}

// Extractor links new content to the companies it mentions, then hands the
// content to the dispatcher. Extraction failures still dispatch, the content
// then simply has no mentions.
type Extractor struct {
	Config   ExtractorConfig
	DB       *gorm.DB
	Provider llm.Provider
	Mentions ExtractionStore
	Costs    CostRecorder
	EventBus *gochannel.GoChannel
}

func NewExtractor(config ExtractorConfig, db *gorm.DB, provider llm.Provider, mentions ExtractionStore, costs CostRecorder, e *gochannel.GoChannel) *Extractor {
	if config.AITimeout <= 0 {
		config.AITimeout = 30 * time.Second
	}
	return &Extractor{
		Config:   config,
		DB:       db,
		Provider: provider,
		Mentions: mentions,
		Costs:    costs,
		EventBus: e,
	}
}

func (x *Extractor) RunModule(ctx context.Context) error {
	return consume(ctx, x.EventBus, worker.TopicContentExtract, x.Config.Concurrency, func(ctx context.Context, msg *message.Message) {
		task, err := worker.ParseContentTask(msg)
		if err != nil {
			Log.Errorf("drop extract message: %v", err)
			return
		}
		if err := x.Extract(ctx, task); err != nil {
			Log.WithFields(logrus.Fields{"content_id": task.ContentId}).Errorf("fail to extract companies: %v", err)
		}
		x.dispatch(task)
	})
}

// Extract runs company extraction for one content item and stores the
// mentions. The content is marked extracted whether or not the provider
// call succeeded.
func (x *Extractor) Extract(ctx context.Context, task worker.ContentTask) error {
	var content model.Content
	err := x.DB.WithContext(ctx).Where("id = ?", task.ContentId).First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFoundf("content %s", task.ContentId)
	}
	if err != nil {
		return apperr.Transient(err, "load content")
	}

	aiCtx, cancel := context.WithTimeout(ctx, x.Config.AITimeout)
	defer cancel()
	out, err := x.Provider.ExtractCompanies(aiCtx, content.Title, content.RawText)

	entry := cost.Entry{ContentId: content.Id, Model: x.Provider.Model(), RequestType: model.RequestTypeExtraction, Err: err}
	if out != nil {
		entry.TokensIn, entry.TokensOut = out.TokensIn, out.TokensOut
	}
	if _, costErr := x.Costs.Record(ctx, entry); costErr != nil {
		Log.WithFields(logrus.Fields{"content_id": content.Id}).Errorf("fail to record extraction cost: %v", costErr)
	}
	if err != nil {
		// The content goes on without mentions, stop the sweeper waiting for it.
		if markErr := x.Mentions.MarkExtracted(ctx, content.Id); markErr != nil {
			Log.WithFields(logrus.Fields{"content_id": content.Id}).Errorf("fail to mark content extracted: %v", markErr)
		}
		return errors.Wrap(err, "extract companies")
	}

	report, err := x.Mentions.SaveExtraction(ctx, content.Id, out.Companies, mention.ExtractionMethodAI, x.Provider.Model())
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"content_id": content.Id,
		"linked":     report.Linked,
		"created":    report.Created,
		"discarded":  report.Discarded,
	}).Info("companies extracted")
	return nil
}

func (x *Extractor) dispatch(task worker.ContentTask) {
	msg, err := worker.NewMessage(task)
	if err != nil {
		Log.Errorf("fail to build dispatch message: %v", err)
		return
	}
	if err := x.EventBus.Publish(worker.TopicContentDispatch, msg); err != nil {
		Log.WithFields(logrus.Fields{"content_id": task.ContentId}).Errorf("fail to publish dispatch message: %v", err)
	}
}

func (x *Extractor) Name() string {
	return x.Config.Name
}
