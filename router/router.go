// Package router decides which agent (or the discussion protocol) handles a
// request. Routing is a pure priority cascade over the request mode and the
// input text; only the final automatic tier consults the intent classifier.
package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/intent"
	"github.com/AdamTheFirstGitman/scribe/logging"
)

// Routing reasons recorded on AgentState for observability.
const (
	ReasonForcedMode      = "forced_mode"
	ReasonBothMentioned   = "both_agents_mentioned"
	ReasonExplicitMention = "explicit_mention"
	ReasonIntentAuto      = "intent_classifier_auto"
	ReasonFallback        = "fallback_default"
)

// MatchStrategy controls how agent names are detected in input text.
type MatchStrategy string

const (
	// MatchSubstring is the historical behavior: a case-insensitive substring
	// scan. It can misfire on partial-word containment ("plumeria" mentions
	// plume), which is why the strategy is configurable.
	MatchSubstring MatchStrategy = "substring"
	// MatchWordBoundary only accepts whole-word mentions.
	MatchWordBoundary MatchStrategy = "word_boundary"
)

// Options configure a Router.
type Options struct {
	Strategy   MatchStrategy
	Classifier intent.Classifier
	Logger     logging.Logger
}

// Router maps a populated AgentState to a routing decision.
type Router struct {
	strategy   MatchStrategy
	classifier intent.Classifier
	logger     logging.Logger

	wordPatterns map[string]*regexp.Regexp
}

// New creates a Router. The classifier may be nil, in which case the
// automatic tier goes straight to the fallback policy.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		Strategy:   MatchSubstring,
		Classifier: intent.NewKeywordClassifier(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Router{
		strategy:     opts.Strategy,
		classifier:   opts.Classifier,
		logger:       opts.Logger,
		wordPatterns: map[string]*regexp.Regexp{},
	}
	for _, name := range []string{core.RolePlume, core.RoleMimir} {
		r.wordPatterns[name] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
	return r
}

// WithStrategy selects the mention matching strategy.
func WithStrategy(s MatchStrategy) func(o *Options) {
	return func(o *Options) { o.Strategy = s }
}

// WithClassifier sets the intent classifier used for automatic routing.
func WithClassifier(c intent.Classifier) func(o *Options) {
	return func(o *Options) { o.Classifier = c }
}

// WithLogger sets the router's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Route resolves the target for the given state. It never returns an error:
// an unrecognized state falls back to the restitution agent. Route is
// idempotent; calling it twice on the same state yields the same decision.
func (r *Router) Route(ctx context.Context, state *core.AgentState) core.RoutingDecision {
	decision := r.decide(ctx, state)
	state.Routing = &decision
	state.RoutingReason = decision.Reason

	// A forced mode that contradicts an explicit mention of the other agent
	// is honored, but flagged.
	if decision.Reason == ReasonForcedMode && decision.Target != core.TargetDiscussion {
		other := core.RoleMimir
		if decision.Target == core.TargetMimir {
			other = core.RolePlume
		}
		if r.mentions(state.InputText, other) {
			state.AddWarning(core.WarnRoutingAmbiguity)
			r.logger.Warn("router.ambiguous", "target", decision.Target, "mentioned", other)
		}
	}
	r.logger.Info("router.decision",
		"session_id", state.SessionID,
		"target", decision.Target,
		"reason", decision.Reason,
	)
	return decision
}

func (r *Router) decide(ctx context.Context, state *core.AgentState) core.RoutingDecision {
	switch state.Mode {
	case core.ModePlume:
		return core.RoutingDecision{Target: core.TargetPlume, Reason: ReasonForcedMode}
	case core.ModeMimir:
		return core.RoutingDecision{Target: core.TargetMimir, Reason: ReasonForcedMode}
	case core.ModeDiscussion:
		return core.RoutingDecision{Target: core.TargetDiscussion, Reason: ReasonForcedMode}
	case core.ModeAuto:
		// fall through to text inspection
	default:
		return core.RoutingDecision{Target: core.TargetPlume, Reason: ReasonFallback}
	}

	plume := r.mentions(state.InputText, core.RolePlume)
	mimir := r.mentions(state.InputText, core.RoleMimir)
	switch {
	case plume && mimir:
		return core.RoutingDecision{Target: core.TargetDiscussion, Reason: ReasonBothMentioned}
	case plume:
		return core.RoutingDecision{Target: core.TargetPlume, Reason: ReasonExplicitMention}
	case mimir:
		return core.RoutingDecision{Target: core.TargetMimir, Reason: ReasonExplicitMention}
	}

	return core.RoutingDecision{Target: r.autoTarget(ctx, state), Reason: ReasonIntentAuto}
}

// mentions reports whether the input text refers to the named agent under the
// configured strategy.
func (r *Router) mentions(text, name string) bool {
	if r.strategy == MatchWordBoundary {
		return r.wordPatterns[name].MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), name)
}

// autoTarget runs the intent classifier and maps its outcome to a target.
// Classifier failures degrade through intent.Resolve rather than failing the
// request.
func (r *Router) autoTarget(ctx context.Context, state *core.AgentState) string {
	hasContext := len(state.Context) > 0

	var (
		classification intent.Classification
		err            error
	)
	if r.classifier != nil {
		snippets := make([]string, len(state.Context))
		for i, s := range state.Context {
			snippets[i] = s.Content
		}
		classification, err = r.classifier.Classify(ctx, state.InputText, snippets)
		if err != nil {
			r.logger.Warn("router.classifier_failed", "error", err.Error())
		}
	}

	switch intent.Resolve(classification, err, hasContext) {
	case intent.IntentResearch:
		return core.TargetMimir
	case intent.IntentDiscussion:
		return core.TargetDiscussion
	default:
		return core.TargetPlume
	}
}
