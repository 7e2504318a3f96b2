package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gwi.com/story-weaver/internal/store"
)

// SeedStory is one entry of a seed file: a story plus the chapters that
// follow its first one.
type SeedStory struct {
	StoryInput
	Chapters []ChapterInput `json:"chapters"`
}

// SeedFromFile creates the stories listed in a JSON seed file and returns
// how many were created. Invalid entries are skipped with a warning.
func (m *StoryManager) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var seeds []SeedStory
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	created := 0
	for i, seed := range seeds {
		if err := ValidateStoryInput(seed.StoryInput); err != nil {
			m.logger.Warn("Skipping invalid seed story", zap.Int("index", i), zap.Error(err))
			continue
		}
		storyID, err := m.CreateStory(ctx, seed.StoryInput)
		if err != nil {
			return created, fmt.Errorf("failed to seed story %q: %w", seed.Title, err)
		}
		created++

		for n, ch := range seed.Chapters {
			ch.ChapterNumber = n + 2
			if err := ValidateChapterInput(ch); err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					m.logger.Warn("Skipping invalid seed chapter",
						zap.String("story_id", storyID),
						zap.Int("chapter_number", ch.ChapterNumber),
						zap.Strings("problems", verr.Problems),
					)
				}
				break
			}
			if _, err := m.AddChapter(ctx, storyID, ch); err != nil {
				return created, fmt.Errorf("failed to seed chapter %d of %q: %w", ch.ChapterNumber, seed.Title, err)
			}
		}
	}
	m.logger.Info("Seeding complete", zap.Int("stories", created), zap.String("file", path))
	return created, nil
}

// BackfillContributors writes the contributor markers for stories whose
// chapters predate them and resets contributorCount to the number of
// distinct authors. Run it while no chapters are being added. It returns
// how many stories had their count corrected.
func (m *StoryManager) BackfillContributors(ctx context.Context) (int, error) {
	snaps, err := m.store.Query(ctx, CollectionStories, store.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to list stories: %w", err)
	}

	corrected := 0
	for _, story := range storiesFromSnapshots(snaps) {
		chapters, err := m.store.Query(ctx, CollectionChapters, store.Query{
			Filters: []store.Filter{{Field: "storyId", Op: store.OpEqual, Value: story.ID}},
		})
		if err != nil {
			return corrected, fmt.Errorf("failed to list chapters of story %s: %w", story.ID, err)
		}

		authors := map[string]struct{}{}
		if a := strings.TrimSpace(story.Author); a != "" {
			authors[a] = struct{}{}
		}
		for _, snap := range chapters {
			if a := strings.TrimSpace(chapterFromSnapshot(snap).Author); a != "" {
				authors[a] = struct{}{}
			}
		}

		for author := range authors {
			if _, err := m.markContributor(ctx, story.ID, author); err != nil {
				return corrected, fmt.Errorf("failed to mark contributor of story %s: %w", story.ID, err)
			}
		}

		count := int64(len(authors))
		if story.ContributorCount == count {
			continue
		}
		if err := m.store.Update(ctx, CollectionStories, story.ID, store.Document{"contributorCount": count}); err != nil {
			return corrected, fmt.Errorf("failed to update contributor count of story %s: %w", story.ID, err)
		}
		m.logger.Info("Contributor count corrected",
			zap.String("story_id", story.ID),
			zap.Int64("was", story.ContributorCount),
			zap.Int64("now", count),
		)
		corrected++
	}
	m.logger.Info("Contributor backfill complete", zap.Int("stories", len(snaps)), zap.Int("corrected", corrected))
	return corrected, nil
}
