// Package discussion implements the bounded round-robin protocol between the
// two agents. Each turn the active agent sees the running transcript plus
// retrieved context, may invoke tools, and appends one textual turn. The hard
// max-turns ceiling always terminates the exchange; a termination token and
// an optional stall guard can end it earlier. When the full protocol cannot
// run, a two-step draft/review exchange produces the same output contract and
// the same stream event types.
package discussion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamTheFirstGitman/scribe/agent"
	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/model"
)

// TerminationToken ends the discussion when it appears in an agent message.
// Both role prompts mention it so either agent can close the exchange.
const TerminationToken = "[END_DISCUSSION]"

// DefaultMaxTurns is the ceiling applied when the caller passes none. It is a
// cost and runaway-loop safety net, not a target length.
const DefaultMaxTurns = 6

// FallbackAnswer is synthesized when no transcript turn qualifies as a final
// answer.
const FallbackAnswer = "The agents could not reach a conclusion on this topic."

// Options configure an Engine.
type Options struct {
	MaxTurns int
	// StallTurns ends the discussion after this many consecutive turns
	// without substantive new content. Zero disables the guard.
	StallTurns int
	// Probe checks whether the full protocol can run. A model.ErrUnavailable
	// result switches to the degraded draft/review exchange. Nil means
	// always available.
	Probe  func(ctx context.Context) error
	Logger logging.Logger
}

// Outcome is the result of one discussion run.
type Outcome struct {
	Transcript  []core.DiscussionTurn
	FinalAnswer string
	Usage       model.TokenUsage
	Degraded    bool
}

// Engine drives a discussion between the restitution and archivist agents.
// It is stateless between runs and safe for concurrent use.
type Engine struct {
	plume      *agent.Agent
	mimir      *agent.Agent
	maxTurns   int
	stallTurns int
	probe      func(ctx context.Context) error
	logger     logging.Logger
}

// NewEngine creates a discussion engine over the two agents.
func NewEngine(plume, mimir *agent.Agent, optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{
		plume:      plume,
		mimir:      mimir,
		maxTurns:   opts.MaxTurns,
		stallTurns: opts.StallTurns,
		probe:      opts.Probe,
		logger:     opts.Logger,
	}
}

// WithMaxTurns overrides the turn ceiling.
func WithMaxTurns(n int) func(o *Options) {
	return func(o *Options) { o.MaxTurns = n }
}

// WithStallGuard enables the stall guard at n consecutive stalled turns.
func WithStallGuard(n int) func(o *Options) {
	return func(o *Options) { o.StallTurns = n }
}

// WithProbe sets the availability probe.
func WithProbe(p func(ctx context.Context) error) func(o *Options) {
	return func(o *Options) { o.Probe = p }
}

// WithLogger sets the engine's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Run executes the discussion. The transcript is appended to state turn by
// turn, with matching agent_action / agent_message events emitted in the same
// step, so the live stream and the final transcript never diverge. The
// returned transcript length never exceeds the configured ceiling.
func (e *Engine) Run(ctx context.Context, state *core.AgentState, in agent.Input, emit agent.Emitter) (*Outcome, error) {
	if e.maxTurns <= 0 {
		// A zero ceiling degenerates to an immediate fallback answer.
		return &Outcome{FinalAnswer: FallbackAnswer}, nil
	}

	if e.probe != nil {
		if err := e.probe(ctx); err != nil {
			if errors.Is(err, model.ErrUnavailable) {
				e.logger.Warn("discussion.runtime_unavailable", "error", err.Error())
				return e.runDegraded(ctx, state, in, emit)
			}
			return nil, err
		}
	}

	outcome := &Outcome{}
	order := [2]*agent.Agent{e.plume, e.mimir}
	stalled := 0

	for turn := 0; turn < e.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		active := order[turn%2]

		result, err := e.takeTurn(ctx, state, in, active, outcome, emit)
		if err != nil {
			if errors.Is(err, model.ErrUnavailable) && turn == 0 {
				e.logger.Warn("discussion.runtime_unavailable", "error", err.Error())
				return e.runDegraded(ctx, state, in, emit)
			}
			return nil, err
		}

		content, terminate := stripTermination(result.Content)
		e.appendTurn(state, outcome, active.Role(), content, result.ToolCallIDs, emit)

		if terminate {
			e.logger.Info("discussion.termination_token", "agent", active.Role(), "turn", turn+1)
			break
		}
		if e.stallTurns > 0 {
			if substantive(content, outcome.Transcript) {
				stalled = 0
			} else {
				stalled++
				if stalled >= e.stallTurns {
					e.logger.Info("discussion.stalled", "turns", stalled)
					break
				}
			}
		}
	}

	outcome.FinalAnswer = finalAnswer(outcome.Transcript)
	return outcome, nil
}

// takeTurn runs one agent turn against the transcript accumulated so far.
func (e *Engine) takeTurn(
	ctx context.Context,
	state *core.AgentState,
	in agent.Input,
	active *agent.Agent,
	outcome *Outcome,
	emit agent.Emitter,
) (*agent.Result, error) {
	emit.Emit(core.NewAgentActionEvent(active.Role(), "composing", core.StatusStarted))

	turnInput := agent.Input{
		SessionID:  in.SessionID,
		UserText:   discussionPrompt(in.UserText, active.Role()),
		Context:    in.Context,
		Transcript: outcome.Transcript,
	}
	result, err := active.Respond(ctx, state, turnInput, emit)
	if err != nil {
		return nil, err
	}

	outcome.Usage.PromptTokens += result.Usage.PromptTokens
	outcome.Usage.CompletionTokens += result.Usage.CompletionTokens
	outcome.Usage.TotalTokens += result.Usage.TotalTokens
	return result, nil
}

// appendTurn mutates transcript and stream in the same step.
func (e *Engine) appendTurn(
	state *core.AgentState,
	outcome *Outcome,
	role, content string,
	toolCallIDs []string,
	emit agent.Emitter,
) {
	turn := core.NewDiscussionTurn(role, content, toolCallIDs)
	outcome.Transcript = append(outcome.Transcript, turn)
	state.AppendTurn(turn)
	state.InvolveAgent(role)
	emit.Emit(core.NewAgentMessageEvent(role, content))
	emit.Emit(core.NewAgentActionEvent(role, "composing", core.StatusCompleted))
}

// runDegraded substitutes a two-step non-interactive exchange: Plume drafts,
// Mimir reviews. The output contract and event types are identical to the
// full protocol.
func (e *Engine) runDegraded(ctx context.Context, state *core.AgentState, in agent.Input, emit agent.Emitter) (*Outcome, error) {
	outcome := &Outcome{Degraded: true}

	draftIn := agent.Input{
		SessionID: in.SessionID,
		UserText:  fmt.Sprintf("Draft a complete answer to: %s", in.UserText),
		Context:   in.Context,
	}
	emit.Emit(core.NewAgentActionEvent(core.RolePlume, "composing", core.StatusStarted))
	draft, err := e.plume.Respond(ctx, state, draftIn, emit)
	if err != nil {
		return nil, err
	}
	outcome.addUsage(draft.Usage)
	e.appendTurnDegraded(state, outcome, core.RolePlume, draft.Content, draft.ToolCallIDs, emit)

	reviewIn := agent.Input{
		SessionID:  in.SessionID,
		UserText:   fmt.Sprintf("Review and improve the draft answer to: %s", in.UserText),
		Context:    in.Context,
		Transcript: outcome.Transcript,
	}
	emit.Emit(core.NewAgentActionEvent(core.RoleMimir, "composing", core.StatusStarted))
	review, err := e.mimir.Respond(ctx, state, reviewIn, emit)
	if err != nil {
		return nil, err
	}
	outcome.addUsage(review.Usage)
	e.appendTurnDegraded(state, outcome, core.RoleMimir, review.Content, review.ToolCallIDs, emit)

	outcome.FinalAnswer = finalAnswer(outcome.Transcript)
	return outcome, nil
}

func (e *Engine) appendTurnDegraded(
	state *core.AgentState,
	outcome *Outcome,
	role, content string,
	toolCallIDs []string,
	emit agent.Emitter,
) {
	content, _ = stripTermination(content)
	e.appendTurn(state, outcome, role, content, toolCallIDs, emit)
}

func (o *Outcome) addUsage(u model.TokenUsage) {
	o.Usage.PromptTokens += u.PromptTokens
	o.Usage.CompletionTokens += u.CompletionTokens
	o.Usage.TotalTokens += u.TotalTokens
}

// discussionPrompt frames the topic for the active role.
func discussionPrompt(topic, role string) string {
	return fmt.Sprintf(
		"Discussion topic: %s\n\nYou are %s. Build on the transcript so far. When the answer is settled, include %s in your message.",
		topic, role, TerminationToken,
	)
}

// stripTermination removes the termination token and reports whether it was
// present.
func stripTermination(content string) (string, bool) {
	if !strings.Contains(content, TerminationToken) {
		return content, false
	}
	return strings.TrimSpace(strings.ReplaceAll(content, TerminationToken, "")), true
}

// substantive reports whether content adds anything beyond the same agent's
// previous turn. The transcript already includes content as the last entry,
// so under round-robin that previous turn sits two entries back from it.
func substantive(content string, transcript []core.DiscussionTurn) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	if len(transcript) >= 3 {
		prev := strings.TrimSpace(transcript[len(transcript)-3].Content)
		if prev != "" && strings.EqualFold(prev, trimmed) {
			return false
		}
	}
	return true
}

// finalAnswer extracts the last turn whose content is non-empty and not a
// pure tool-call acknowledgment; absent one it synthesizes a fallback rather
// than returning empty output.
func finalAnswer(transcript []core.DiscussionTurn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		content := strings.TrimSpace(transcript[i].Content)
		if content == "" {
			continue
		}
		if len(transcript[i].ToolCalls) > 0 && looksLikeAcknowledgment(content) {
			continue
		}
		return content
	}
	return FallbackAnswer
}

// looksLikeAcknowledgment flags turn content that only narrates tool usage.
func looksLikeAcknowledgment(content string) bool {
	lower := strings.ToLower(content)
	if len(content) > 80 {
		return false
	}
	for _, marker := range []string{"calling", "invoking", "running the", "let me use", "using the tool"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
