package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gwi.com/story-weaver/internal/store"
)

const (
	storyListLimit   = 50
	searchLimit      = 20
	suggestionWindow = 3

	// searchSentinel is the highest code point used as an exclusive upper
	// bound for prefix range queries.
	searchSentinel = "\uf8ff"
)

// User-facing notice texts.
const (
	MessageStoryCreated    = "Story created successfully!"
	MessageChapterAdded    = "Your chapter has been added to the story!"
	MessageStoryNotFound   = "Story not found"
	MessageDegradedSorting = "Stories are temporarily shown with simplified sorting while the search index is being built."
	MessageReportReceived  = "Thank you. The story has been reported for review."
)

// contributorNamespace seeds the deterministic ids of contributor markers.
var contributorNamespace = uuid.MustParse("6f1c1f0e-3b7a-4c1e-9a51-2d7f0c3e8b42")

// PromptSuggester proposes a prompt for the next chapter of a story.
type PromptSuggester interface {
	SuggestPrompt(ctx context.Context, story Story, recent []Chapter) (string, error)
}

// StoryManager runs every story read and write against the document store
// and keeps the derived counters of a story in step with its chapters.
//
// The manager caches the last fetched story list and the open story. Both
// caches are last-write-wins and safe for concurrent use.
type StoryManager struct {
	store     store.DocumentStore
	notifier  Notifier
	suggester PromptSuggester
	logger    *zap.Logger

	mu      sync.RWMutex
	stories []Story
	current *StoryDetails
}

type Option func(*StoryManager)

func WithNotifier(n Notifier) Option {
	return func(m *StoryManager) { m.notifier = n }
}

func WithPromptSuggester(s PromptSuggester) Option {
	return func(m *StoryManager) { m.suggester = s }
}

func NewStoryManager(st store.DocumentStore, logger *zap.Logger, opts ...Option) *StoryManager {
	m := &StoryManager{
		store:  st,
		logger: logger.Named("story_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = NewLogNotifier(logger)
	}
	return m
}

// CreateStory writes a story, its first chapter and the author's contributor
// marker, in that order. The story's counters already account for chapter 1.
func (m *StoryManager) CreateStory(ctx context.Context, in StoryInput) (string, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	content := strings.TrimSpace(in.Content)
	prompt := strings.TrimSpace(in.Prompt)

	storyID, err := m.store.Insert(ctx, CollectionStories, store.Document{
		"title":            title,
		"titleLower":       strings.ToLower(title),
		"genre":            strings.TrimSpace(in.Genre),
		"author":           author,
		"content":          content,
		"prompt":           prompt,
		"createdAt":        store.ServerTimestamp,
		"updatedAt":        store.ServerTimestamp,
		"chapterCount":     1,
		"contributorCount": 1,
		"likes":            0,
		"views":            0,
		"featured":         false,
		"status":           StatusActive,
	})
	if err != nil {
		return "", m.fail(ctx, "create story", err)
	}

	first := ChapterInput{Content: content, Author: author, Prompt: prompt, ChapterNumber: 1}
	if _, err := m.insertChapter(ctx, storyID, first); err != nil {
		m.partialWrite("create story", "insert first chapter", storyID, err)
		return "", m.fail(ctx, "create story", err)
	}
	if _, err := m.markContributor(ctx, storyID, author); err != nil {
		// The story is usable. A later chapter by the same author will count
		// them a second time.
		m.partialWrite("create story", "mark contributor", storyID, err)
	}

	storiesCreatedTotal.Inc()
	m.logger.Info("Story created", zap.String("story_id", storyID), zap.String("genre", in.Genre))
	m.notify(ctx, LevelInfo, MessageStoryCreated)
	return storyID, nil
}

// AddChapter appends a chapter and rolls the change up into the story:
// chapter count, update time, prompt mirror and, for a first-time author,
// the contributor count. Steps are not rolled back when a later one fails.
func (m *StoryManager) AddChapter(ctx context.Context, storyID string, in ChapterInput) (string, error) {
	author := strings.TrimSpace(in.Author)
	prompt := strings.TrimSpace(in.Prompt)

	chapterID, err := m.insertChapter(ctx, storyID, in)
	if err != nil {
		return "", m.fail(ctx, "add chapter", err)
	}

	err = m.store.Update(ctx, CollectionStories, storyID, store.Document{
		"chapterCount": store.Inc(1),
		"updatedAt":    store.ServerTimestamp,
		"prompt":       prompt,
	})
	if err != nil {
		m.partialWrite("add chapter", "update story", storyID, err)
		return "", m.fail(ctx, "add chapter", err)
	}

	created, err := m.markContributor(ctx, storyID, author)
	if err != nil {
		m.partialWrite("add chapter", "mark contributor", storyID, err)
		return "", m.fail(ctx, "add chapter", err)
	}
	if created {
		if err := m.store.Increment(ctx, CollectionStories, storyID, "contributorCount", 1); err != nil {
			m.partialWrite("add chapter", "increment contributors", storyID, err)
			return "", m.fail(ctx, "add chapter", err)
		}
	}

	m.forgetCurrent(storyID)
	chaptersAddedTotal.Inc()
	m.logger.Info("Chapter added",
		zap.String("story_id", storyID),
		zap.String("chapter_id", chapterID),
		zap.Int("chapter_number", in.ChapterNumber),
		zap.Bool("new_contributor", created),
	)
	m.notify(ctx, LevelInfo, MessageChapterAdded)
	return chapterID, nil
}

func (m *StoryManager) insertChapter(ctx context.Context, storyID string, in ChapterInput) (string, error) {
	return m.store.Insert(ctx, CollectionChapters, store.Document{
		"storyId":       storyID,
		"content":       strings.TrimSpace(in.Content),
		"author":        strings.TrimSpace(in.Author),
		"prompt":        strings.TrimSpace(in.Prompt),
		"chapterNumber": in.ChapterNumber,
		"createdAt":     store.ServerTimestamp,
		"likes":         0,
		"reports":       0,
	})
}

// markContributor records that author wrote for the story. It reports true
// only for the call that created the marker.
func (m *StoryManager) markContributor(ctx context.Context, storyID, author string) (bool, error) {
	err := m.store.Create(ctx, CollectionContributors, contributorID(storyID, author), store.Document{
		"storyId":   storyID,
		"author":    author,
		"createdAt": store.ServerTimestamp,
	})
	switch {
	case err == nil:
		return true, nil
	case store.IsAlreadyExists(err):
		return false, nil
	default:
		return false, err
	}
}

func contributorID(storyID, author string) string {
	return uuid.NewSHA1(contributorNamespace, []byte(storyID+"\x00"+author)).String()
}

// NextChapterNumber returns the number the next chapter of a story should
// carry. It does not count as a view.
func (m *StoryManager) NextChapterNumber(ctx context.Context, storyID string) (int, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()
	if current != nil && current.ID == storyID {
		return len(current.Chapters) + 1, nil
	}

	snap, err := m.store.Get(ctx, CollectionStories, storyID)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, &NotFoundError{Resource: "story", ID: storyID}
		}
		return 0, m.fail(ctx, "next chapter number", err)
	}
	count := snap.Data.Int("chapterCount")
	if count < 1 {
		count = 1
	}
	return int(count) + 1, nil
}

// GetStories lists active stories. When the indexed query fails the manager
// fetches up to the same limit unsorted and filters and sorts in memory, so
// only those documents are considered.
func (m *StoryManager) GetStories(ctx context.Context, filters StoryFilters) []Story {
	order := filters.Sort.orderBy()
	q := store.Query{
		Filters: []store.Filter{store.Where("status", store.OpEqual, StatusActive)},
		OrderBy: &order,
		Limit:   storyListLimit,
	}
	if filters.Genre != "" {
		q.Filters = append(q.Filters, store.Where("genre", store.OpEqual, filters.Genre))
	}

	snaps, err := m.store.Query(ctx, CollectionStories, q)
	if err != nil {
		m.logger.Warn("Story query failed, sorting on the client",
			zap.String("genre", filters.Genre),
			zap.String("sort", string(filters.Sort)),
			zap.String("code", string(store.CodeOf(err))),
			zap.Error(err),
		)
		snaps, err = m.fallbackStories(ctx, filters.Genre, order)
		if err != nil {
			m.fail(ctx, "get stories", err)
			return []Story{}
		}
		storyListFallbacksTotal.Inc()
		m.notify(ctx, LevelWarning, MessageDegradedSorting)
	}

	stories := storiesFromSnapshots(snaps)
	m.mu.Lock()
	m.stories = stories
	m.mu.Unlock()
	return append([]Story{}, stories...)
}

func (m *StoryManager) fallbackStories(ctx context.Context, genre string, order store.OrderBy) ([]store.Snapshot, error) {
	snaps, err := m.store.Query(ctx, CollectionStories, store.Query{
		Filters: []store.Filter{store.Where("status", store.OpEqual, StatusActive)},
		Limit:   storyListLimit,
	})
	if err != nil {
		return nil, err
	}
	if genre != "" {
		kept := snaps[:0]
		for _, s := range snaps {
			if s.Data.String("genre") == genre {
				kept = append(kept, s)
			}
		}
		snaps = kept
	}
	store.SortSnapshots(snaps, order)
	return snaps, nil
}

// GetStoryWithChapters loads a story and its chapters, counts a view and
// makes it the open story. The returned story carries the values read
// before the view was counted.
func (m *StoryManager) GetStoryWithChapters(ctx context.Context, storyID string) (*StoryDetails, error) {
	snap, err := m.store.Get(ctx, CollectionStories, storyID)
	if err != nil {
		if store.IsNotFound(err) {
			m.notify(ctx, LevelError, MessageStoryNotFound)
			return nil, &NotFoundError{Resource: "story", ID: storyID}
		}
		return nil, m.fail(ctx, "get story", err)
	}

	chapters, err := m.chapters(ctx, storyID)
	if err != nil {
		return nil, m.fail(ctx, "get story", err)
	}

	if err := m.store.Increment(ctx, CollectionStories, storyID, "views", 1); err != nil {
		return nil, m.fail(ctx, "get story", err)
	}

	details := &StoryDetails{Story: storyFromSnapshot(snap), Chapters: chapters}
	m.mu.Lock()
	m.current = details
	m.mu.Unlock()
	return copyDetails(details), nil
}

func (m *StoryManager) chapters(ctx context.Context, storyID string) ([]Chapter, error) {
	snaps, err := m.store.Query(ctx, CollectionChapters, store.Query{
		Filters: []store.Filter{store.Where("storyId", store.OpEqual, storyID)},
		OrderBy: store.Order("chapterNumber", store.Asc),
	})
	if err != nil {
		return nil, err
	}
	chapters := make([]Chapter, 0, len(snaps))
	for _, s := range snaps {
		chapters = append(chapters, chapterFromSnapshot(s))
	}
	return chapters, nil
}

// CurrentStory returns the open story, or nil.
func (m *StoryManager) CurrentStory() *StoryDetails {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return copyDetails(m.current)
}

func (m *StoryManager) CloseStory() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// forgetCurrent drops the open story when it is storyID, since its chapter
// list is stale.
func (m *StoryManager) forgetCurrent(storyID string) {
	m.mu.Lock()
	if m.current != nil && m.current.ID == storyID {
		m.current = nil
	}
	m.mu.Unlock()
}

// CachedStories returns the list from the last successful GetStories.
func (m *StoryManager) CachedStories() []Story {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Story{}, m.stories...)
}

func copyDetails(d *StoryDetails) *StoryDetails {
	out := *d
	out.Chapters = append([]Chapter(nil), d.Chapters...)
	return &out
}

// SearchStories matches active stories whose lower-cased title starts with
// term. A blank term returns the cached list.
func (m *StoryManager) SearchStories(ctx context.Context, term string) []Story {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return m.CachedStories()
	}

	snaps, err := m.store.Query(ctx, CollectionStories, store.Query{
		Filters: []store.Filter{
			store.Where("status", store.OpEqual, StatusActive),
			store.Where("titleLower", store.OpGreaterOrEqual, t),
			store.Where("titleLower", store.OpLess, t+searchSentinel),
		},
		OrderBy: store.Order("titleLower", store.Asc),
		Limit:   searchLimit,
	})
	if err != nil {
		m.recordStoreError("search stories", err)
		return []Story{}
	}
	return storiesFromSnapshots(snaps)
}

func (m *StoryManager) LikeStory(ctx context.Context, storyID string) {
	if err := m.store.Increment(ctx, CollectionStories, storyID, "likes", 1); err != nil {
		m.fail(ctx, "like story", err)
	}
}

func (m *StoryManager) ReportStory(ctx context.Context, storyID, reason string) {
	_, err := m.store.Insert(ctx, CollectionReports, store.Document{
		"storyId":   storyID,
		"reason":    strings.TrimSpace(reason),
		"type":      "story",
		"timestamp": store.ServerTimestamp,
	})
	if err != nil {
		m.fail(ctx, "report story", err)
		return
	}
	m.notify(ctx, LevelInfo, MessageReportReceived)
}

// GetStatistics aggregates over every active story. Contributions are
// chapter counts, with a missing count taken as one.
func (m *StoryManager) GetStatistics(ctx context.Context) Statistics {
	snaps, err := m.store.Query(ctx, CollectionStories, store.Query{
		Filters: []store.Filter{store.Where("status", store.OpEqual, StatusActive)},
	})
	if err != nil {
		m.recordStoreError("get statistics", err)
		return Statistics{}
	}

	var stats Statistics
	for _, s := range snaps {
		stats.TotalStories++
		if n := s.Data.Int("chapterCount"); n > 0 {
			stats.TotalContributions += n
		} else {
			stats.TotalContributions++
		}
		if s.Data.Bool("featured") {
			stats.FeaturedStories++
		}
	}
	return stats
}

// SuggestNextPrompt asks the configured suggester for a prompt that
// continues the story from its latest chapters.
func (m *StoryManager) SuggestNextPrompt(ctx context.Context, storyID string) (string, error) {
	if m.suggester == nil {
		return "", ErrSuggestionsDisabled
	}

	snap, err := m.store.Get(ctx, CollectionStories, storyID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", &NotFoundError{Resource: "story", ID: storyID}
		}
		return "", m.fail(ctx, "suggest prompt", err)
	}
	chapters, err := m.chapters(ctx, storyID)
	if err != nil {
		return "", m.fail(ctx, "suggest prompt", err)
	}
	if len(chapters) > suggestionWindow {
		chapters = chapters[len(chapters)-suggestionWindow:]
	}

	prompt, err := m.suggester.SuggestPrompt(ctx, storyFromSnapshot(snap), chapters)
	if err != nil {
		m.logger.Error("Prompt suggestion failed", zap.String("story_id", storyID), zap.Error(err))
		return "", fmt.Errorf("failed to suggest prompt: %w", err)
	}
	return prompt, nil
}

// fail records a store failure, tells the user what went wrong and returns
// the wrapped error.
func (m *StoryManager) fail(ctx context.Context, op string, err error) error {
	m.recordStoreError(op, err)
	m.notify(ctx, LevelError, store.UserMessage(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (m *StoryManager) recordStoreError(op string, err error) {
	code := store.CodeOf(err)
	storeErrorsTotal.WithLabelValues(op, string(code)).Inc()
	m.logger.Error("Store call failed",
		zap.String("operation", op),
		zap.String("code", string(code)),
		zap.Error(err),
	)
}

func (m *StoryManager) partialWrite(op, step, storyID string, err error) {
	partialWritesTotal.WithLabelValues(op, step).Inc()
	m.logger.Error("Write stopped part way, story left inconsistent",
		zap.String("operation", op),
		zap.String("step", step),
		zap.String("story_id", storyID),
		zap.Error(err),
	)
}

func (m *StoryManager) notify(ctx context.Context, level Level, message string) {
	m.notifier.Notify(ctx, Notice{Level: level, Message: message})
}
