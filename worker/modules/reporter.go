package modules

import (
	"context"

	"github.com/DataDog/datadog-go/statsd"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/Luismorlan/insighthub/worker"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type ReporterConfig struct {
	Name string
}

// Reporter's job is to listen to pipeline outcomes and aggregate results,
// sending to Datadog for monitoring purpose.
type Reporter struct {
	Config ReporterConfig

	Statsd statsd.ClientInterface

	EventBus *gochannel.GoChannel
}

func NewReporter(config ReporterConfig, client statsd.ClientInterface, e *gochannel.GoChannel) *Reporter {
	if client == nil {
		client = &statsd.NoOpClient{}
	}
	return &Reporter{
		Config:   config,
		Statsd:   client,
		EventBus: e,
	}
}

// ReportOutcome sends one pipeline outcome to datadog.
func ReportOutcome(event worker.ProcessedEvent, client statsd.ClientInterface) {
	if event.Outcome == "" {
		if err := client.Incr(worker.DdogPipelineFailureCounter, nil, 1); err != nil {
			Log.Infoln("cannot report pipeline failure")
		}
		return
	}
	tags := []string{"outcome:" + event.Outcome}
	if event.SummaryStatus != "" {
		tags = append(tags, "summary_status:"+string(event.SummaryStatus))
	}
	if err := client.Incr(worker.DdogPipelineOutcomeCounter, tags, 1); err != nil {
		Log.Infoln("cannot report pipeline outcome")
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	return consume(ctx, r.EventBus, worker.TopicContentProcessed, 1, func(ctx context.Context, msg *message.Message) {
		event, err := worker.ParseProcessedEvent(msg)
		if err != nil {
			Log.Errorf("drop processed event: %v", err)
			return
		}
		ReportOutcome(event, r.Statsd)
	})
}

func (r *Reporter) Name() string {
	return r.Config.Name
}
