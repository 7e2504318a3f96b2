package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gwi.com/story-weaver/internal/core"
)

// MockPromptSuggester is a mock type for the PromptSuggester type
type MockPromptSuggester struct {
	mock.Mock
}

// SuggestPrompt provides a mock function with given fields: ctx, story, recent
func (_m *MockPromptSuggester) SuggestPrompt(ctx context.Context, story core.Story, recent []core.Chapter) (string, error) {
	ret := _m.Called(ctx, story, recent)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, core.Story, []core.Chapter) string); ok {
		r0 = rf(ctx, story, recent)
	} else {
		r0 = ret.String(0)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, core.Story, []core.Chapter) error); ok {
		r1 = rf(ctx, story, recent)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockPromptSuggester creates a new instance of MockPromptSuggester. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPromptSuggester(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPromptSuggester {
	m := &MockPromptSuggester{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ core.PromptSuggester = (*MockPromptSuggester)(nil)
