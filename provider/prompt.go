package provider

import (
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = "gpt-4o-mini"

	temperature      = 0.4
	maxTokens        = 50
	topP             = 1.0
	newLinePenalty   = 0.2
	userPromptPrefix = "Complete this code:\n"
)

var stopSequences = []string{"```", "\n\n"}

var (
	newLineRules = []string{
		"Focus on completing the new line based on the context",
		"Maintain consistent indentation with the current block",
		"Consider the block structure and type",
		"Provide complete statement or block continuation",
		"Follow the existing code patterns",
		"Ensure proper closing of blocks and statements",
		"Consider the scope and context of the current block",
	}
	inlineRules = []string{
		"Provide only code completions, no explanations",
		"Continue from the existing code context",
		"Follow the existing code style",
	}
	commonRules = []string{
		"Be concise and relevant",
		"Ensure code is syntactically correct",
		"Return only valid code, no markdown formatting",
	}
	newLineTrailingRules = []string{
		"Prioritize completing control structures and blocks",
		"Maintain logical flow with surrounding code",
	}
)

// SystemPrompt returns the system message for fileType.
func SystemPrompt(fileType string, isNewLine bool) string {
	var b strings.Builder
	b.WriteString("You are a code completion assistant for " + fileType + " files.\n")
	b.WriteString("Rules:\n")

	writeRules := func(rules []string) {
		for _, r := range rules {
			b.WriteString("- " + r + "\n")
		}
	}
	if isNewLine {
		writeRules(newLineRules)
	} else {
		writeRules(inlineRules)
	}
	writeRules(commonRules)
	if isNewLine {
		writeRules(newLineTrailingRules)
	}
	return b.String()
}

// BuildChatRequest is the prompt builder for chat completion models.
func BuildChatRequest(p *Provider, ctx *Context) goopenai.ChatCompletionRequest {
	req := ctx.Request

	var penalty float32
	if req.IsNewLine {
		penalty = newLinePenalty
	}

	return goopenai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt(req.FileType, req.IsNewLine)},
			{Role: goopenai.ChatMessageRoleUser, Content: userPromptPrefix + ctx.CleanContext},
		},
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		TopP:             topP,
		FrequencyPenalty: penalty,
		PresencePenalty:  penalty,
		Stop:             stopSequences,
	}
}

// buildTestRequest is the minimal request used to check a key.
func buildTestRequest(model string) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: "Say 'test'"},
		},
		Temperature: temperature,
		MaxTokens:   5,
		TopP:        topP,
	}
}
