package modules

import (
	"context"

	"github.com/Luismorlan/insighthub/pipeline"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

type ContentProcessor interface {
	ProcessNewContent(ctx context.Context, contentId string, userId string) (*pipeline.Result, error)
}

type DispatcherConfig struct {
	Name        string
	Concurrency int
}

// Dispatcher runs the selective pipeline for every dispatched content item
// and publishes the outcome.
type Dispatcher struct {
	Config    DispatcherConfig
	Processor ContentProcessor
	EventBus  *gochannel.GoChannel
}

func NewDispatcher(config DispatcherConfig, p ContentProcessor, e *gochannel.GoChannel) *Dispatcher {
	return &Dispatcher{
		Config:    config,
		Processor: p,
		EventBus:  e,
	}
}

func (d *Dispatcher) RunModule(ctx context.Context) error {
	return consume(ctx, d.EventBus, worker.TopicContentDispatch, d.Config.Concurrency, func(ctx context.Context, msg *message.Message) {
		task, err := worker.ParseContentTask(msg)
		if err != nil {
			Log.Errorf("drop dispatch message: %v", err)
			return
		}
		d.Dispatch(ctx, task)
	})
}

func (d *Dispatcher) Dispatch(ctx context.Context, task worker.ContentTask) worker.ProcessedEvent {
	event := worker.ProcessedEvent{ContentId: task.ContentId, UserId: task.UserId}
	res, err := d.Processor.ProcessNewContent(ctx, task.ContentId, task.UserId)
	if err != nil {
		Log.WithFields(logrus.Fields{"content_id": task.ContentId, "user_id": task.UserId}).Errorf("fail to process content: %v", err)
		event.Error = err.Error()
	} else {
		event.Outcome = string(res.Outcome)
		event.SummaryStatus = res.SummaryStatus
		event.Error = res.Error
	}

	msg, err := worker.NewMessage(event)
	if err == nil {
		err = d.EventBus.Publish(worker.TopicContentProcessed, msg)
	}
	if err != nil {
		Log.WithFields(logrus.Fields{"content_id": task.ContentId}).Errorf("fail to publish processed event: %v", err)
	}
	return event
}

func (d *Dispatcher) Name() string {
	return d.Config.Name
}
