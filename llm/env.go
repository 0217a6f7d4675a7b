package llm

import (
	"os"

	"github.com/Luismorlan/insighthub/utils/dotenv"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/pkg/errors"
)

// NewProviderFromEnv returns an OpenAI provider configured by OPENAI_API_KEY
// and AI_MODEL. Without an api key a FakeProvider is returned so local runs
// never spend money, except in prod where a missing key is an error.
func NewProviderFromEnv() (Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		if dotenv.IsProd() {
			return nil, errors.New("OPENAI_API_KEY must be set in prod")
		}
		Log.Warn("OPENAI_API_KEY not set, using fake ai provider")
		return &FakeProvider{}, nil
	}
	return NewOpenAIProvider(apiKey, os.Getenv("AI_MODEL")), nil
}
