package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AdamTheFirstGitman/scribe/config"
	"github.com/AdamTheFirstGitman/scribe/discussion"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/router"
)

func TestDiscussionOptions_WiresConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Discussion.MaxTurns = 4
	cfg.Discussion.StallTurns = 2

	var opts discussion.Options
	for _, fn := range discussionOptions(cfg, logging.NoOpLogger{}) {
		fn(&opts)
	}

	assert.Equal(t, 4, opts.MaxTurns)
	assert.Equal(t, 2, opts.StallTurns)
	assert.NotNil(t, opts.Logger)
}

func TestRouterOptions_WiresConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Routing.MentionStrategy = "word"
	cfg.Routing.Classifier = "keyword"

	var opts router.Options
	for _, fn := range routerOptions(cfg, logging.NoOpLogger{}) {
		fn(&opts)
	}

	assert.Equal(t, router.MatchWordBoundary, opts.Strategy)
	assert.Nil(t, opts.Classifier)
}

func TestBuildModel_FallsBackToMock(t *testing.T) {
	cfg := config.Default()
	cfg.Models.AnthropicAPIKey = ""
	cfg.Models.OpenAIAPIKey = ""

	m := buildModel(cfg, "claude-3-5-sonnet-20241022")
	_, ok := m.(*model.MockModel)
	assert.True(t, ok)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logging.LogLevelDebug, logLevel("debug"))
	assert.Equal(t, logging.LogLevelWarn, logLevel("warn"))
	assert.Equal(t, logging.LogLevelError, logLevel("error"))
	assert.Equal(t, logging.LogLevelInfo, logLevel("info"))
	assert.Equal(t, logging.LogLevelInfo, logLevel(""))
}
