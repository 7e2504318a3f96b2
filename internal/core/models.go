package core

import (
	"time"

	"gwi.com/story-weaver/internal/store"
)

const (
	CollectionStories      = "stories"
	CollectionChapters     = "chapters"
	CollectionReports      = "reports"
	CollectionContributors = "contributors"
)

// StatusActive marks a story as visible. Any other status hides it.
const StatusActive = "active"

// Genres is the fixed set of story genres, in display order.
var Genres = []string{"fantasy", "sci-fi", "mystery", "romance", "horror", "adventure", "comedy", "drama"}

func IsGenre(genre string) bool {
	for _, g := range Genres {
		if g == genre {
			return true
		}
	}
	return false
}

type Story struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Genre            string    `json:"genre"`
	Author           string    `json:"author"`
	Content          string    `json:"content"`
	Prompt           string    `json:"prompt"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ChapterCount     int64     `json:"chapter_count"`
	ContributorCount int64     `json:"contributor_count"`
	Likes            int64     `json:"likes"`
	Views            int64     `json:"views"`
	Featured         bool      `json:"featured"`
	Status           string    `json:"status"`
}

type Chapter struct {
	ID            string    `json:"id"`
	StoryID       string    `json:"story_id"`
	Content       string    `json:"content"`
	Author        string    `json:"author"`
	Prompt        string    `json:"prompt"`
	ChapterNumber int       `json:"chapter_number"`
	CreatedAt     time.Time `json:"created_at"`
	Likes         int64     `json:"likes"`
	Reports       int64     `json:"reports"`
}

// StoryDetails is a story together with its chapters in reading order.
type StoryDetails struct {
	Story
	Chapters []Chapter `json:"chapters"`
}

type StoryInput struct {
	Title   string `json:"title" validate:"required,min=3"`
	Genre   string `json:"genre" validate:"required,oneof=fantasy sci-fi mystery romance horror adventure comedy drama"`
	Author  string `json:"author" validate:"min=2"`
	Content string `json:"content" validate:"min=100"`
	Prompt  string `json:"prompt" validate:"min=10"`
}

// ChapterInput describes a contribution. A zero ChapterNumber lets the
// caller assign the next number.
type ChapterInput struct {
	Content       string `json:"content" validate:"required,min=50"`
	Author        string `json:"author" validate:"required"`
	Prompt        string `json:"prompt"`
	ChapterNumber int    `json:"chapter_number" validate:"min=0"`
}

type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortPopular SortOrder = "popular"
)

// orderBy maps a sort key to its store ordering. Unknown keys sort newest
// first.
func (s SortOrder) orderBy() store.OrderBy {
	switch s {
	case SortOldest:
		return store.OrderBy{Field: "createdAt", Direction: store.Asc}
	case SortPopular:
		return store.OrderBy{Field: "views", Direction: store.Desc}
	default:
		return store.OrderBy{Field: "createdAt", Direction: store.Desc}
	}
}

type StoryFilters struct {
	Genre string
	Sort  SortOrder
}

type Statistics struct {
	TotalStories       int64 `json:"total_stories"`
	TotalContributions int64 `json:"total_contributions"`
	FeaturedStories    int64 `json:"featured_stories"`
}

func storyFromSnapshot(snap store.Snapshot) Story {
	d := snap.Data
	return Story{
		ID:               snap.ID,
		Title:            d.String("title"),
		Genre:            d.String("genre"),
		Author:           d.String("author"),
		Content:          d.String("content"),
		Prompt:           d.String("prompt"),
		CreatedAt:        d.Time("createdAt"),
		UpdatedAt:        d.Time("updatedAt"),
		ChapterCount:     d.Int("chapterCount"),
		ContributorCount: d.Int("contributorCount"),
		Likes:            d.Int("likes"),
		Views:            d.Int("views"),
		Featured:         d.Bool("featured"),
		Status:           d.String("status"),
	}
}

func chapterFromSnapshot(snap store.Snapshot) Chapter {
	d := snap.Data
	return Chapter{
		ID:            snap.ID,
		StoryID:       d.String("storyId"),
		Content:       d.String("content"),
		Author:        d.String("author"),
		Prompt:        d.String("prompt"),
		ChapterNumber: int(d.Int("chapterNumber")),
		CreatedAt:     d.Time("createdAt"),
		Likes:         d.Int("likes"),
		Reports:       d.Int("reports"),
	}
}

func storiesFromSnapshots(snaps []store.Snapshot) []Story {
	stories := make([]Story, 0, len(snaps))
	for _, s := range snaps {
		stories = append(stories, storyFromSnapshot(s))
	}
	return stories
}

// RequiredIndexes registers the composite indexes the manager's queries
// need, for backends that enforce them locally.
func RequiredIndexes(set *store.IndexSet) *store.IndexSet {
	return set.
		Add(CollectionStories, "status", "createdAt").
		Add(CollectionStories, "status", "views").
		Add(CollectionStories, "genre", "status", "createdAt").
		Add(CollectionStories, "genre", "status", "views").
		Add(CollectionStories, "status", "titleLower").
		Add(CollectionChapters, "storyId", "chapterNumber")
}
