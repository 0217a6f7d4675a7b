package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FakeProvider is an in-memory Provider for tests and local runs without an
// API key. It counts calls so callers can assert on AI spend.
type FakeProvider struct {
	// Delay is slept (honoring ctx) before answering.
	Delay time.Duration
	// Err, when set, is returned by every call.
	Err error

	SummaryFn    func(input SummaryInput) *SummaryOutput
	ExtractionFn func(title string, body string) []ExtractedCompany

	summarizeCalls int64
	extractCalls   int64
	mu             sync.Mutex
	titles         []string
}

func (f *FakeProvider) Model() string {
	return "fake-model"
}

func (f *FakeProvider) SummarizeCalls() int {
	return int(atomic.LoadInt64(&f.summarizeCalls))
}

func (f *FakeProvider) ExtractCalls() int {
	return int(atomic.LoadInt64(&f.extractCalls))
}

// SummarizedTitles lists the titles seen by Summarize in call order.
func (f *FakeProvider) SummarizedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.titles...)
}

func (f *FakeProvider) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeProvider) Summarize(ctx context.Context, input SummaryInput) (*SummaryOutput, error) {
	atomic.AddInt64(&f.summarizeCalls, 1)
	f.mu.Lock()
	f.titles = append(f.titles, input.Title)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.SummaryFn != nil {
		return f.SummaryFn(input), nil
	}
	return &SummaryOutput{
		Bullets:   []string{"summary of " + input.Title},
		Tags:      []string{"news"},
		Insight:   "insight on " + input.Title,
		TokensIn:  100,
		TokensOut: 50,
		Model:     f.Model(),
	}, nil
}

func (f *FakeProvider) ExtractCompanies(ctx context.Context, title string, body string) (*ExtractionOutput, error) {
	atomic.AddInt64(&f.extractCalls, 1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := &ExtractionOutput{TokensIn: 80, TokensOut: 40, Model: f.Model()}
	if f.ExtractionFn != nil {
		out.Companies = f.ExtractionFn(title, body)
	}
	return out, nil
}
