package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultPromptModelName = "gemini-1.5-flash-latest"

	promptSystemInstruction = "You help writers continue collaborative stories. " +
		"Given the title, genre and latest chapters of a story, reply with one short sentence " +
		"that invites the next writer to continue it. Return only that sentence, no quotes."

	// maxExcerptRunes bounds how much of each chapter goes into the request.
	maxExcerptRunes = 1200
)

// LLMService suggests chapter prompts with Gemini.
type LLMService struct {
	client *genai.Client
	logger *zap.Logger
}

var _ PromptSuggester = (*LLMService)(nil)

func NewLLMService(ctx context.Context, apiKey string, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client, logger: logger.Named("llm")}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

func (s *LLMService) SuggestPrompt(ctx context.Context, story Story, recent []Chapter) (string, error) {
	model := s.client.GenerativeModel(defaultPromptModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(promptSystemInstruction)},
	}

	temp := float32(0.9)
	maxTokens := int32(60)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(buildSuggestionRequest(story, recent)))
	if err != nil {
		return "", fmt.Errorf("gemini prompt suggestion request failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return strings.Trim(text, "\"'\n\r\t "), nil
}

func buildSuggestionRequest(story Story, recent []Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nGenre: %s\n", story.Title, story.Genre)
	if story.Prompt != "" {
		fmt.Fprintf(&b, "Current prompt: %s\n", story.Prompt)
	}
	for _, ch := range recent {
		fmt.Fprintf(&b, "\nChapter %d by %s:\n%s\n", ch.ChapterNumber, ch.Author, excerpt(ch.Content, maxExcerptRunes))
	}
	b.WriteString("\nSuggest the prompt for the next chapter.")
	return b.String()
}

// excerpt keeps the last n runes of s, where a chapter hands over to the
// next one.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n:])
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("LLM did not generate a prompt (empty response)")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("LLM generated an empty prompt")
	}
	return text.String(), nil
}
