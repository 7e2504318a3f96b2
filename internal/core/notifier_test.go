package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifierCollectsPerRequest(t *testing.T) {
	observed, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(observed))

	ctx, collector := WithNoticeCollector(context.Background())
	n.Notify(ctx, Notice{Level: LevelWarning, Message: "slow"})
	n.Notify(ctx, Notice{Level: LevelError, Message: "broken"})
	n.Notify(context.Background(), Notice{Level: LevelInfo, Message: "elsewhere"})

	assert.Equal(t, []Notice{
		{Level: LevelWarning, Message: "slow"},
		{Level: LevelError, Message: "broken"},
	}, collector.Notices())

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
		assert.Equal(t, "elsewhere", entries[2].Message)
		assert.Equal(t, "notices", entries[0].LoggerName)
	}
}
