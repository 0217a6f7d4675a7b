package modules

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// consume subscribes to topic and hands every message to handle from
// concurrency goroutines. It returns once ctx is cancelled and in-flight
// handlers finished.
func consume(ctx context.Context, bus *gochannel.GoChannel, topic string, concurrency int, handle func(ctx context.Context, msg *message.Message)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := bus.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				msg.Ack()
				handle(ctx, msg)
			}
		}()
	}
	wg.Wait()
	return nil
}
