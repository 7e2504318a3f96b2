package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message meant for the person using the app.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers notices raised while serving a call.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NoticeCollector gathers the notices of one request.
type NoticeCollector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *NoticeCollector) add(n Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
}

// Notices returns a copy of everything collected so far.
func (c *NoticeCollector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

type collectorKey struct{}

// WithNoticeCollector returns a context whose notices are gathered in the
// returned collector.
func WithNoticeCollector(ctx context.Context) (context.Context, *NoticeCollector) {
	c := &NoticeCollector{}
	return context.WithValue(ctx, collectorKey{}, c), c
}

func collectorFrom(ctx context.Context) *NoticeCollector {
	c, _ := ctx.Value(collectorKey{}).(*NoticeCollector)
	return c
}

// LogNotifier logs every notice and hands it to the request's collector,
// if the context carries one.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notices")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	switch notice.Level {
	case LevelError:
		n.logger.Error(notice.Message)
	case LevelWarning:
		n.logger.Warn(notice.Message)
	default:
		n.logger.Info(notice.Message)
	}
	if c := collectorFrom(ctx); c != nil {
		c.add(notice)
	}
}

// CollectedNotices returns the notices gathered for ctx so far, or nil when
// ctx has no collector.
func CollectedNotices(ctx context.Context) []Notice {
	if c := collectorFrom(ctx); c != nil {
		return c.Notices()
	}
	return nil
}
