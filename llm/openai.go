package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Luismorlan/insighthub/utils"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

const summarySystemPrompt = `You are a news analyst. Analyze the article and answer with JSON only, no other text:
{
  "summary_bullets": ["key point 1", "key point 2", "key point 3"],
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"],
  "insight": "two or three sentences on what the article means and why it matters"
}

Rules:
- summary_bullets: 3 to 5 concrete one sentence points
- tags: 5 to 8 lowercase english keywords
- insight: 2 to 3 sentences`

const extractionSystemPrompt = `You extract companies mentioned in news articles. Answer with JSON only:
{
  "companies": [
    {
      "company_name": "canonical company name",
      "aliases": ["other names used in the text"],
      "industry": "industry in one or two words",
      "relevance_score": 0.0-1.0,
      "confidence_score": 0.0-1.0,
      "mention_context": "the sentence mentioning the company",
      "sentiment": "positive | negative | neutral"
    }
  ]
}

Only include real companies. Return {"companies": []} when there are none.`

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider for model, extra options are passed to
// the underlying client (base url, retries, http client).
func NewOpenAIProvider(apiKey string, model string, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{
		client: &client,
		model:  model,
	}
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) complete(ctx context.Context, system string, user string, maxTokens int64) (string, int64, int64, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return "", 0, 0, errors.Wrap(err, "openai API error")
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, errors.Wrap(ErrMalformedResponse, "no choices in openai response")
	}
	return cleanJSONResponse(resp.Choices[0].Message.Content), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
}

func (p *OpenAIProvider) Summarize(ctx context.Context, input SummaryInput) (*SummaryOutput, error) {
	user := fmt.Sprintf("Title: %s\n\nBody: %s", input.Title, utils.TruncateRunes(input.Body, MaxPromptBodyRunes))
	content, in, out, err := p.complete(ctx, summarySystemPrompt, user, 1200)
	if err != nil {
		return nil, err
	}

	summary, err := parseSummary(content)
	if err != nil {
		return nil, err
	}
	summary.TokensIn, summary.TokensOut, summary.Model = in, out, p.model
	return summary, nil
}

func (p *OpenAIProvider) ExtractCompanies(ctx context.Context, title string, body string) (*ExtractionOutput, error) {
	user := fmt.Sprintf("Title: %s\n\nBody: %s", title, utils.TruncateRunes(body, MaxPromptBodyRunes))
	content, in, out, err := p.complete(ctx, extractionSystemPrompt, user, 1500)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Companies []ExtractedCompany `json:"companies"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "parse extraction: %v", err)
	}
	return &ExtractionOutput{Companies: parsed.Companies, TokensIn: in, TokensOut: out, Model: p.model}, nil
}

// parseSummary decodes a summary document and enforces the output limits.
func parseSummary(content string) (*SummaryOutput, error) {
	var parsed struct {
		SummaryBullets []string `json:"summary_bullets"`
		Tags           []string `json:"tags"`
		Insight        string   `json:"insight"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "parse summary: %v", err)
	}
	if len(parsed.SummaryBullets) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "summary has no bullets")
	}
	return &SummaryOutput{
		Bullets: capStrings(parsed.SummaryBullets, MaxSummaryBullets),
		Tags:    capStrings(parsed.Tags, MaxSummaryTags),
		Insight: utils.TruncateRunes(parsed.Insight, MaxInsightRunes),
	}, nil
}
