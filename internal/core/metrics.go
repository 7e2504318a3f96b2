package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storiesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweaver_stories_created_total",
		Help: "Total number of stories created.",
	})

	chaptersAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweaver_chapters_added_total",
		Help: "Total number of chapters added after the first one.",
	})

	storyListFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storyweaver_story_list_fallbacks_total",
		Help: "Total number of story listings served by the client-side sorting fallback.",
	})

	partialWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweaver_partial_writes_total",
			Help: "Total number of multi-step writes that stopped after an earlier step had succeeded.",
		},
		[]string{"operation", "step"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyweaver_store_errors_total",
			Help: "Total number of failed store calls by operation and code.",
		},
		[]string{"operation", "code"},
	)
)
