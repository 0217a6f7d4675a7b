package worker

import (
	"encoding/json"

	"github.com/Luismorlan/insighthub/model"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// ContentTask is the payload of extract and dispatch messages.
type ContentTask struct {
	ContentId string `json:"content_id"`
	UserId    string `json:"user_id"`
}

// ProcessedEvent reports what the pipeline did with one content item.
type ProcessedEvent struct {
	ContentId     string              `json:"content_id"`
	UserId        string              `json:"user_id"`
	Outcome       string              `json:"outcome"`
	SummaryStatus model.SummaryStatus `json:"summary_status"`
	Error         string              `json:"error,omitempty"`
}

func NewMessage(payload interface{}) (*message.Message, error) {
	bytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message payload")
	}
	return message.NewMessage(watermill.NewUUID(), bytes), nil
}

func ParseContentTask(msg *message.Message) (ContentTask, error) {
	task := ContentTask{}
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		return task, errors.Wrapf(err, "unmarshal content task %s", msg.UUID)
	}
	if task.ContentId == "" {
		return task, errors.Errorf("content task %s has no content id", msg.UUID)
	}
	return task, nil
}

func ParseProcessedEvent(msg *message.Message) (ProcessedEvent, error) {
	event := ProcessedEvent{}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return event, errors.Wrapf(err, "unmarshal processed event %s", msg.UUID)
	}
	return event, nil
}
