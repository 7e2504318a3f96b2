package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStory() StoryInput {
	return StoryInput{
		Title:   "The Lighthouse",
		Genre:   "mystery",
		Author:  "Ann",
		Content: strings.Repeat("x", minStoryContentLength),
		Prompt:  "What did the keeper see?",
	}
}

func TestValidateStoryInput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*StoryInput)
		want   []string
	}{
		{"valid", func(*StoryInput) {}, nil},
		{"short title after trim", func(in *StoryInput) { in.Title = "  ab  " }, []string{"Title must be at least 3 characters long"}},
		{"missing genre", func(in *StoryInput) { in.Genre = "" }, []string{"Please select a genre"}},
		{"unknown genre", func(in *StoryInput) { in.Genre = "western" }, []string{"Genre must be one of: fantasy, sci-fi, mystery, romance, horror, adventure, comedy, drama"}},
		{"short author", func(in *StoryInput) { in.Author = "A" }, []string{"Author name must be at least 2 characters long"}},
		{"short content", func(in *StoryInput) { in.Content = strings.Repeat("x", 99) }, []string{"Story content must be at least 100 characters long"}},
		{"multibyte content counts runes", func(in *StoryInput) { in.Content = strings.Repeat("é", 100) }, nil},
		{"short prompt", func(in *StoryInput) { in.Prompt = "Why?" }, []string{"Story prompt must be at least 10 characters long"}},
		{"everything wrong", func(in *StoryInput) { *in = StoryInput{} }, []string{
			"Title must be at least 3 characters long",
			"Please select a genre",
			"Author name must be at least 2 characters long",
			"Story content must be at least 100 characters long",
			"Story prompt must be at least 10 characters long",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validStory()
			tt.modify(&in)
			err := ValidateStoryInput(in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.want, verr.Problems)
		})
	}
}

func TestValidateChapterInput(t *testing.T) {
	content := strings.Repeat("y", minChapterContentLength)
	tests := []struct {
		name string
		in   ChapterInput
		want []string
	}{
		{"valid without number", ChapterInput{Content: content, Author: "Bob"}, nil},
		{"valid with number", ChapterInput{Content: content, Author: "Bob", ChapterNumber: 4}, nil},
		{"missing author", ChapterInput{Content: content, Author: "   "}, []string{"Please fill in all required fields"}},
		{"missing content", ChapterInput{Author: "Bob"}, []string{"Please fill in all required fields"}},
		{"short content", ChapterInput{Content: content[1:], Author: "Bob"}, []string{"Contribution must be at least 50 characters long"}},
		{"negative number", ChapterInput{Content: content, Author: "Bob", ChapterNumber: -1}, []string{"Chapter number must be a positive integer"}},
		{"missing author hides short content", ChapterInput{Content: "too short", Author: ""}, []string{"Please fill in all required fields"}},
		{"both missing reported once", ChapterInput{Content: " ", Author: " "}, []string{"Please fill in all required fields"}},
		{"padded content measured after trim", ChapterInput{Content: "  " + content[1:] + "  ", Author: "Bob"}, []string{"Contribution must be at least 50 characters long"}},
		{"multibyte content counts runes", ChapterInput{Content: strings.Repeat("ü", minChapterContentLength), Author: "Bob"}, nil},
		{"short content and negative number", ChapterInput{Content: "short", Author: "Bob", ChapterNumber: -2}, []string{
			"Contribution must be at least 50 characters long",
			"Chapter number must be a positive integer",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChapterInput(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.want, verr.Problems)
			assert.Contains(t, err.Error(), tt.want[0])
		})
	}
}

func TestValidateStoryInputAcceptsEveryGenre(t *testing.T) {
	for _, genre := range Genres {
		in := validStory()
		in.Genre = "  " + genre + " "
		assert.NoError(t, ValidateStoryInput(in), genre)
	}
}

func TestValidateStoryInputLeavesCallerValueUntouched(t *testing.T) {
	in := validStory()
	in.Title = "  The Lighthouse  "
	require.NoError(t, ValidateStoryInput(in))
	assert.Equal(t, "  The Lighthouse  ", in.Title)
}

func TestSortOrderDefaultsToNewest(t *testing.T) {
	assert.Equal(t, SortNewest.orderBy(), SortOrder("").orderBy())
	assert.Equal(t, SortNewest.orderBy(), SortOrder("random").orderBy())
	assert.Equal(t, "views", SortPopular.orderBy().Field)
}

func TestContributorIDIsStable(t *testing.T) {
	assert.Equal(t, contributorID("s1", "Ann"), contributorID("s1", "Ann"))
	assert.NotEqual(t, contributorID("s1", "Ann"), contributorID("s2", "Ann"))
	assert.NotEqual(t, contributorID("s1", "Ann"), contributorID("s1", "ann"))
	assert.NotEqual(t, contributorID("ab", "c"), contributorID("a", "bc"))
}
