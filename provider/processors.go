package provider

import (
	"errors"
	"regexp"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"predictivecoder/logger"
)

// Preprocessor processes the context before prompt building.
// Return ErrSkipCompletion to skip without error, or another error to fail.
type Preprocessor func(p *Provider, ctx *Context) error

// PromptBuilder builds the chat request from the context
type PromptBuilder func(p *Provider, ctx *Context) goopenai.ChatCompletionRequest

// Postprocessor processes the response.
// Returns (candidates, done) - if done is true, the candidates are final.
type Postprocessor func(p *Provider, ctx *Context) ([]string, bool)

// ErrSkipCompletion is a sentinel error that preprocessors return to skip
// completion without treating it as an error.
var ErrSkipCompletion = errors.New("skip completion")

// --- Preprocessors ---

// RequireAPIKey resolves the key and skips when none is configured,
// notifying the user the first time.
func RequireAPIKey() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		key := ""
		if p.APIKey != nil {
			key = strings.TrimSpace(p.APIKey())
		}
		if key == "" {
			logger.Error("%s: API key not configured", p.Name)
			p.notifyMissingKey()
			return ErrSkipCompletion
		}
		ctx.APIKey = key
		return nil
	}
}

// CacheLookup serves in-line requests from the cache. Line-boundary
// requests always go to the model.
func CacheLookup() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if p.Cache == nil || ctx.Request.IsNewLine {
			return nil
		}
		ctx.CacheKey = CacheKey(ctx.Request.FileType, ctx.Request.CurrentLinePrefix, ctx.Request.Context)
		if candidates, ok := p.Cache.Get(ctx.CacheKey); ok {
			logger.Debug("%s: cache hit for %q", p.Name, ctx.Request.CurrentLinePrefix)
			ctx.Candidates = candidates
			ctx.Cached = true
		}
		return nil
	}
}

// SkipEmptyContext skips when the context is blank after trimming.
func SkipEmptyContext() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		ctx.CleanContext = strings.TrimSpace(ctx.Request.Context)
		if ctx.CleanContext == "" {
			logger.Debug("%s: skipping, empty context", p.Name)
			return ErrSkipCompletion
		}
		return nil
	}
}

// --- Postprocessors ---

// RejectNoChoices returns a postprocessor that rejects responses without choices
func RejectNoChoices() Postprocessor {
	return func(p *Provider, ctx *Context) ([]string, bool) {
		if ctx.Response == nil || len(ctx.Response.Choices) == 0 {
			logger.Debug("%s: rejected, no choices", p.Name)
			return nil, true
		}
		return nil, false
	}
}

// CleanCandidates cleans every choice and keeps the usable ones in order.
func CleanCandidates() Postprocessor {
	return func(p *Provider, ctx *Context) ([]string, bool) {
		var candidates []string
		for _, choice := range ctx.Response.Choices {
			if s, ok := CleanSuggestion(choice.Message.Content); ok {
				candidates = append(candidates, s)
			} else {
				logger.Debug("%s: dropped candidate %q", p.Name, choice.Message.Content)
			}
		}
		return candidates, true
	}
}

var fencePattern = regexp.MustCompile("```\\w*\\n?")

// CleanSuggestion removes code fences and surrounding whitespace, and one
// leading "." left over from member-access completions. It reports false
// for text that is blank or still fenced.
func CleanSuggestion(raw string) (string, bool) {
	s := fencePattern.ReplaceAllString(raw, "")
	s = strings.TrimSpace(strings.TrimRight(s, " \t\r\n"))
	s = strings.TrimPrefix(s, ".")
	if strings.TrimSpace(s) == "" || strings.Contains(s, "```") {
		return "", false
	}
	return s, true
}
