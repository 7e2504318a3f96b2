package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	minTitleLength          = 3
	minAuthorLength         = 2
	minStoryContentLength   = 100
	minPromptLength         = 10
	minChapterContentLength = 50
)

const msgMissingFields = "Please fill in all required fields"

var validate = validator.New()

// ValidateStoryInput checks a new story the way the submission form does.
// All fields are measured after trimming.
func ValidateStoryInput(in StoryInput) error {
	in = StoryInput{
		Title:   strings.TrimSpace(in.Title),
		Genre:   strings.TrimSpace(in.Genre),
		Author:  strings.TrimSpace(in.Author),
		Content: strings.TrimSpace(in.Content),
		Prompt:  strings.TrimSpace(in.Prompt),
	}
	return validationProblems(validate.Struct(in), storyProblem)
}

// ValidateChapterInput checks a contribution. A zero chapter number is
// accepted and means "next".
func ValidateChapterInput(in ChapterInput) error {
	in = ChapterInput{
		Content:       strings.TrimSpace(in.Content),
		Author:        strings.TrimSpace(in.Author),
		Prompt:        strings.TrimSpace(in.Prompt),
		ChapterNumber: in.ChapterNumber,
	}
	err := validationProblems(validate.Struct(in), chapterProblem)

	// A missing field hides the length complaint about the other one.
	var verr *ValidationError
	if errors.As(err, &verr) && contains(verr.Problems, msgMissingFields) {
		kept := verr.Problems[:0]
		for _, p := range verr.Problems {
			if p != chapterProblem("Content", "min") {
				kept = append(kept, p)
			}
		}
		verr.Problems = kept
	}
	return err
}

func storyProblem(field, tag string) string {
	switch field {
	case "Title":
		return fmt.Sprintf("Title must be at least %d characters long", minTitleLength)
	case "Genre":
		if tag == "required" {
			return "Please select a genre"
		}
		return fmt.Sprintf("Genre must be one of: %s", strings.Join(Genres, ", "))
	case "Author":
		return fmt.Sprintf("Author name must be at least %d characters long", minAuthorLength)
	case "Content":
		return fmt.Sprintf("Story content must be at least %d characters long", minStoryContentLength)
	case "Prompt":
		return fmt.Sprintf("Story prompt must be at least %d characters long", minPromptLength)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func chapterProblem(field, tag string) string {
	switch {
	case tag == "required":
		return msgMissingFields
	case field == "Content":
		return fmt.Sprintf("Contribution must be at least %d characters long", minChapterContentLength)
	case field == "ChapterNumber":
		return "Chapter number must be a positive integer"
	}
	return fmt.Sprintf("%s is invalid", field)
}

// validationProblems turns validator failures into UI messages, in field
// order and without repeats.
func validationProblems(err error, message func(field, tag string) string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	var problems []string
	for _, fe := range fieldErrs {
		msg := message(fe.StructField(), fe.Tag())
		if !contains(problems, msg) {
			problems = append(problems, msg)
		}
	}
	return &ValidationError{Problems: problems}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
