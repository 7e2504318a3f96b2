package core

import (
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSuggestionRequest(t *testing.T) {
	story := Story{Title: "Cellar", Genre: "horror", Prompt: "Open the door."}
	recent := []Chapter{
		{ChapterNumber: 2, Author: "Bob", Content: "The stairs creaked."},
		{ChapterNumber: 3, Author: "Cid", Content: strings.Repeat("a", maxExcerptRunes) + "END"},
	}

	req := buildSuggestionRequest(story, recent)
	assert.Contains(t, req, "Title: Cellar\nGenre: horror\n")
	assert.Contains(t, req, "Current prompt: Open the door.")
	assert.Contains(t, req, "Chapter 2 by Bob:\nThe stairs creaked.")
	assert.Contains(t, req, "Chapter 3 by Cid:\n...")
	assert.Contains(t, req, "END")
	assert.True(t, strings.HasSuffix(req, "Suggest the prompt for the next chapter."))
}

func TestExcerptKeepsTail(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 10))
	assert.Equal(t, "...éf", excerpt("abcdéf", 2))
}

func TestResponseText(t *testing.T) {
	_, err := responseText(nil)
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}}},
	})
	assert.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{
			genai.Text("What waits "),
			genai.Blob{MIMEType: "image/png"},
			genai.Text("below?"),
		}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "What waits below?", text)
}
