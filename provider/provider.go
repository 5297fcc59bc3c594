package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"

	"predictivecoder/client/openai"
	"predictivecoder/logger"
	"predictivecoder/types"
)

// Client interface for API calls (enables mocking in tests)
type Client interface {
	DoChatCompletion(ctx context.Context, apiKey string, req goopenai.ChatCompletionRequest) (*goopenai.ChatCompletionResponse, error)
}

// Context carries data through the completion pipeline
type Context struct {
	Request      types.CompletionRequest
	APIKey       string
	CleanContext string
	CacheKey     string // set by CacheLookup for in-line requests
	Cached       bool
	Candidates   []string
	Response     *goopenai.ChatCompletionResponse
}

// Provider turns completion requests into suggestion candidates through a
// configurable pipeline. It never returns an error: every failure is logged
// and yields no candidates.
type Provider struct {
	Name           string
	Model          string
	Client         Client
	Cache          *Cache
	APIKey         func() string
	Notifier       types.Notifier
	Preprocessors  []Preprocessor
	PromptBuilder  PromptBuilder
	Postprocessors []Postprocessor

	notifyOnce sync.Once
}

// Options configures New.
type Options struct {
	Model    string
	Client   Client
	Cache    *Cache
	APIKey   func() string
	Notifier types.Notifier
}

// New creates the chat completion provider.
func New(opts Options) *Provider {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		Name:     "openai",
		Model:    model,
		Client:   opts.Client,
		Cache:    opts.Cache,
		APIKey:   opts.APIKey,
		Notifier: opts.Notifier,
		Preprocessors: []Preprocessor{
			RequireAPIKey(),
			CacheLookup(),
			SkipEmptyContext(),
		},
		PromptBuilder: BuildChatRequest,
		Postprocessors: []Postprocessor{
			RejectNoChoices(),
			CleanCandidates(),
		},
	}
}

// GetSuggestions returns the cleaned candidates for req, most relevant
// first. Only in-line results are cached.
func (p *Provider) GetSuggestions(ctx context.Context, req types.CompletionRequest) []string {
	pctx := &Context{Request: req}

	for _, pre := range p.Preprocessors {
		if err := pre(p, pctx); err != nil {
			if !errors.Is(err, ErrSkipCompletion) {
				logger.Warn("%s: %v", p.Name, err)
			}
			return nil
		}
		if pctx.Cached {
			return pctx.Candidates
		}
	}

	chatReq := p.PromptBuilder(p, pctx)
	p.logRequest(chatReq)

	resp, err := p.Client.DoChatCompletion(ctx, pctx.APIKey, chatReq)
	if err != nil {
		p.logError(err)
		return nil
	}
	pctx.Response = resp
	p.logResponse(resp)

	for _, post := range p.Postprocessors {
		if candidates, done := post(p, pctx); done {
			pctx.Candidates = candidates
			break
		}
	}

	if len(pctx.Candidates) > 0 && !req.IsNewLine && p.Cache != nil {
		key := pctx.CacheKey
		if key == "" {
			key = CacheKey(req.FileType, req.CurrentLinePrefix, req.Context)
		}
		p.Cache.Set(key, pctx.Candidates)
	}
	return pctx.Candidates
}

// TestAPIKey sends a tiny request to check that the configured key works.
func (p *Provider) TestAPIKey(ctx context.Context) error {
	key := ""
	if p.APIKey != nil {
		key = p.APIKey()
	}
	if _, err := p.Client.DoChatCompletion(ctx, key, buildTestRequest(p.Model)); err != nil {
		return fmt.Errorf("%s: API key test failed: %w", p.Name, err)
	}
	return nil
}

func (p *Provider) notifyMissingKey() {
	if p.Notifier == nil {
		return
	}
	p.notifyOnce.Do(func() {
		go p.Notifier.Notify(types.NotifyError,
			"PredictiveCoder: OpenAI API key not found. Run `predictivecoder config set-key <key>` or set "+
				"OPENAI_API_KEY.")
	})
}

func (p *Provider) logError(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		logger.Debug("%s: request canceled", p.Name)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("%s: request timed out: %v", p.Name, err)
	default:
		if status := openai.StatusCode(err); status != 0 {
			logger.Warn("%s: API request failed (status %d): %v", p.Name, status, err)
			return
		}
		logger.Warn("%s: %v", p.Name, err)
	}
}

func (p *Provider) logRequest(req goopenai.ChatCompletionRequest) {
	var prompt string
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	logger.Debug("%s provider request:\n  Model: %s\n  Temperature: %.2f\n  MaxTokens: %d\n  Penalties: %.2f/%.2f\n  Prompt length: %d chars\n  Prompt:\n%s",
		p.Name,
		req.Model,
		req.Temperature,
		req.MaxTokens,
		req.FrequencyPenalty,
		req.PresencePenalty,
		len(prompt),
		prompt)
}

func (p *Provider) logResponse(resp *goopenai.ChatCompletionResponse) {
	if resp == nil || len(resp.Choices) == 0 {
		logger.Debug("%s provider response: no choices", p.Name)
		return
	}
	logger.Debug("%s provider response:\n  Choices: %d\n  FinishReason: %s\n  Text: %q",
		p.Name,
		len(resp.Choices),
		resp.Choices[0].FinishReason,
		resp.Choices[0].Message.Content)
}
