package worker

import (
	"context"
	"sync"

	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Engine manages shared resources and execution lifecycle of each module. It
// maintains a shared event bus
type Engine struct {
	// A list of modules that will be run in this Engine. Module's lifetime is
	// bound to Engine's lifetime. Each Module will be ran in a separate routine.
	Modules []Module

	// The EventBus this engine managed. Modules exchange ContentTask messages
	// through it.
	EventBus *gochannel.GoChannel
}

func NewEngine(ms []Module, e *gochannel.GoChannel) *Engine {
	return &Engine{
		Modules:  ms,
		EventBus: e,
	}
}

// Run executes all modules and blocks until every module returned, which
// happens once ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for idx := range e.Modules {
		wg.Add(1)
		go func(m Module) {
			defer wg.Done()
			Log.Infof("start engine module %s", m.Name())
			RunModuleWithGracefulRestart(ctx, m)
			Log.Infof("module %s finished execution", m.Name())
		}(e.Modules[idx])
	}

	wg.Wait()
	if err := e.EventBus.Close(); err != nil {
		Log.Errorf("fail to close event bus: %v", err)
	}
}

// NewEventBus returns the in-process bus shared by the engine modules.
// Messages published while a topic has no subscriber are dropped, the batch
// sweeper picks those content items up later.
func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}
