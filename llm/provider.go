package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const (
	MaxSummaryBullets = 5
	MaxSummaryTags    = 8
	MaxInsightRunes   = 500

	// Only the head of long articles is sent to the provider.
	MaxPromptBodyRunes = 3000

	DefaultModel = "gpt-3.5-turbo"
)

// ErrMalformedResponse is returned when the provider answered but the answer
// could not be decoded into the expected JSON document.
var ErrMalformedResponse = errors.New("malformed ai response")

type SummaryInput struct {
	Title  string
	Body   string
	Source string
}

type SummaryOutput struct {
	Bullets   []string
	Tags      []string
	Insight   string
	TokensIn  int64
	TokensOut int64
	Model     string
}

// ExtractedCompany is one company the extraction collaborator found in a text.
type ExtractedCompany struct {
	Name            string   `json:"company_name"`
	Aliases         []string `json:"aliases"`
	Industry        string   `json:"industry"`
	RelevanceScore  float64  `json:"relevance_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	MentionContext  string   `json:"mention_context"`
	Sentiment       string   `json:"sentiment"`
}

type ExtractionOutput struct {
	Companies []ExtractedCompany
	TokensIn  int64
	TokensOut int64
	Model     string
}

// Provider is the AI backend. Implementations must honor ctx cancellation.
type Provider interface {
	Summarize(ctx context.Context, input SummaryInput) (*SummaryOutput, error)
	ExtractCompanies(ctx context.Context, title string, body string) (*ExtractionOutput, error)
	// Model is the model version results are cached under.
	Model() string
}

// cleanJSONResponse strips markdown code fences some models wrap JSON in.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

func capStrings(in []string, n int) []string {
	out := []string{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}
