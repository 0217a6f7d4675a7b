package pipeline

import (
	"fmt"

	"github.com/Luismorlan/insighthub/llm"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/pkg/errors"
)

// summary is what gets written onto a content item.
type summary struct {
	Bullets []string
	Tags    []string
	Insight string
	Status  model.SummaryStatus
	Err     error
}

// fallbackSummary builds a degraded summary from metadata only, so every
// processing attempt still ends in a state transition.
func fallbackSummary(c *model.Content, cause error) summary {
	status := model.SummaryStatusAPIError
	if errors.Is(cause, llm.ErrMalformedResponse) {
		status = model.SummaryStatusJSONError
	}

	published := "N/A"
	if !c.PublishedAt.IsZero() {
		published = c.PublishedAt.Format("2006-01-02")
	}
	bullets := []string{
		c.Title,
		fmt.Sprintf("Published: %s", published),
		fmt.Sprintf("Source: %s", c.Source),
		"AI summary unavailable, showing article details only",
	}
	return summary{
		Bullets: bullets,
		Tags:    []string{"fallback", string(status)},
		Insight: fmt.Sprintf("AI analysis failed (%s). Basic details are shown instead.", utils.TruncateRunes(cause.Error(), 200)),
		Status:  status,
		Err:     cause,
	}
}
