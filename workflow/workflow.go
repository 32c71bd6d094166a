// Package workflow implements the orchestrator state machine driving one
// request end to end:
//
//	INTAKE -> [TRANSCRIBE] -> ROUTE -> [CONTEXT_RETRIEVAL] -> EXECUTE -> STORE -> FINALIZE
//
// Bracketed stages are conditionally skipped. Each stage converts its
// failures into a typed outcome recorded on AgentState: contained failures
// become warnings, fatal failures end the request with exactly one terminal
// error event. Nothing escapes the workflow uncaught.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AdamTheFirstGitman/scribe/agent"
	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/cost"
	"github.com/AdamTheFirstGitman/scribe/discussion"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/metrics"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/router"
	"github.com/AdamTheFirstGitman/scribe/stream"
)

// Stage names, used in processing events, checkpoints and metrics labels.
const (
	StageIntake           = "intake"
	StageTranscribe       = "transcribe"
	StageRoute            = "route"
	StageContextRetrieval = "context_retrieval"
	StageExecute          = "execute"
	StageStore            = "store"
	StageFinalize         = "finalize"
)

// Defaults for agent execution retries and context merging.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultRetrievalLimit = 5
	DefaultMemoryLimit    = 10
)

// Collaborators are the external services the workflow consumes. Any field
// may be nil; the corresponding stage is skipped or degrades to a warning.
type Collaborators struct {
	Transcriber core.Transcriber
	Retriever   core.Retriever
	Memory      core.MemoryStore
	Notes       core.NoteStore
	Checkpoints core.CheckpointStore
}

// Options tune the orchestrator.
type Options struct {
	MaxAttempts    int
	RetryBackoff   time.Duration
	RetrievalLimit int
	MemoryLimit    int
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	Cost           *cost.Tracker
}

// Orchestrator owns the process-wide pieces (router, agents, discussion
// engine, collaborators) and runs one state machine per request. It is safe
// for concurrent use; everything request-scoped lives on the AgentState and
// the per-request stream channel.
type Orchestrator struct {
	router     *router.Router
	plume      *agent.Agent
	mimir      *agent.Agent
	discussion *discussion.Engine
	collab     Collaborators

	maxAttempts    int
	retryBackoff   time.Duration
	retrievalLimit int
	memoryLimit    int

	logger  logging.Logger
	metrics *metrics.Metrics
	cost    *cost.Tracker
}

// New assembles an orchestrator.
func New(rt *router.Router, plume, mimir *agent.Agent, disc *discussion.Engine, collab Collaborators, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxAttempts:    DefaultMaxAttempts,
		RetryBackoff:   DefaultRetryBackoff,
		RetrievalLimit: DefaultRetrievalLimit,
		MemoryLimit:    DefaultMemoryLimit,
		Logger:         logging.NoOpLogger{},
		Metrics:        metrics.NewUnregistered(),
		Cost:           cost.NewTracker(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Orchestrator{
		router:         rt,
		plume:          plume,
		mimir:          mimir,
		discussion:     disc,
		collab:         collab,
		maxAttempts:    opts.MaxAttempts,
		retryBackoff:   opts.RetryBackoff,
		retrievalLimit: opts.RetrievalLimit,
		memoryLimit:    opts.MemoryLimit,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		cost:           opts.Cost,
	}
}

// Validate rejects malformed requests before any stream starts.
func (o *Orchestrator) Validate(req *core.OrchestrationRequest) error {
	*req = req.Normalize()
	if req.InputText == "" && len(req.VoiceData) == 0 {
		return &core.InputError{Reason: "input_text or voice_data is required"}
	}
	if !req.Mode.Valid() {
		return &core.InputError{Reason: fmt.Sprintf("unknown mode %q", req.Mode)}
	}
	return nil
}

// Run drives one request through the state machine, emitting events onto ch
// and closing it when done. Run never panics out and never emits more than
// one terminal event. Callers run it in its own goroutine; cancellation of
// ctx stops work at the next stage, tool or turn boundary.
func (o *Orchestrator) Run(ctx context.Context, req core.OrchestrationRequest, ch *stream.Channel) {
	defer ch.Close()

	state := core.NewAgentState(req)
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("workflow.panic", "session_id", state.SessionID, "panic", fmt.Sprintf("%v", rec))
			ch.Emit(core.NewErrorEvent("", fmt.Sprintf("internal error: %v", rec)))
			o.observeRequest(state, started, "panic")
		}
	}()

	ch.Emit(core.NewStartEvent(state.SessionID))

	type stage struct {
		name string
		skip bool
		fn   func(context.Context, *core.AgentState, *stream.Channel) error
	}
	stages := []stage{
		{StageIntake, false, o.intake},
		{StageTranscribe, len(req.VoiceData) == 0, func(ctx context.Context, s *core.AgentState, ch *stream.Channel) error {
			return o.transcribe(ctx, s, req.VoiceData, req.VoiceMimeType)
		}},
		{StageRoute, false, o.route},
		{StageContextRetrieval, false, o.retrieveContext}, // skip decided after routing
		{StageExecute, false, o.execute},
		{StageStore, false, o.store},
	}

	for _, st := range stages {
		if st.skip {
			continue
		}
		if st.name == StageContextRetrieval && !o.wantsRetrieval(state) {
			continue
		}
		if err := o.runStage(ctx, state, ch, st.name, st.fn); err != nil {
			o.fail(state, ch, st.name, err)
			o.observeRequest(state, started, "error")
			return
		}
	}

	// FINALIZE assembles and emits the terminal complete event.
	if err := o.runStage(ctx, state, ch, StageFinalize, func(ctx context.Context, s *core.AgentState, ch *stream.Channel) error {
		return o.finalize(s, ch, started)
	}); err != nil {
		o.fail(state, ch, StageFinalize, err)
		o.observeRequest(state, started, "error")
		return
	}
	o.observeRequest(state, started, "complete")
}

// runStage wraps one stage with processing events, metrics and
// checkpointing. Checkpoint failures are contained as warnings.
func (o *Orchestrator) runStage(
	ctx context.Context,
	state *core.AgentState,
	ch *stream.Channel,
	name string,
	fn func(context.Context, *core.AgentState, *stream.Channel) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch.Emit(core.NewProcessingEvent(name, core.StatusStarted))
	o.logger.Debug("workflow.stage.start", "stage", name, "session_id", state.SessionID)
	stageStart := time.Now()

	if err := fn(ctx, state, ch); err != nil {
		return err
	}

	o.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(stageStart).Seconds())
	ch.Emit(core.NewProcessingEvent(name, core.StatusCompleted))
	o.checkpoint(ctx, state, name)
	return nil
}

// fail emits the single terminal error event.
func (o *Orchestrator) fail(state *core.AgentState, ch *stream.Channel, stage string, err error) {
	state.AddError(err.Error())
	o.logger.Error("workflow.stage.failed", "stage", stage, "session_id", state.SessionID, "error", err.Error())
	ch.Emit(core.NewErrorEvent(stage, err.Error()))
}

// checkpoint persists the state snapshot after a stage transition;
// best-effort.
func (o *Orchestrator) checkpoint(ctx context.Context, state *core.AgentState, stage string) {
	if o.collab.Checkpoints == nil {
		return
	}
	if err := o.collab.Checkpoints.Save(ctx, state.SessionID, stage, state); err != nil {
		storageErr := &core.StorageError{Op: "checkpoint", Err: err}
		state.AddWarning(storageErr.Error())
		o.logger.Warn("workflow.checkpoint_failed", "stage", stage, "error", err.Error())
	}
}

// intake merges the conversational memory snapshot into the state context.
// Memory being down degrades to a warning.
func (o *Orchestrator) intake(ctx context.Context, state *core.AgentState, _ *stream.Channel) error {
	if o.collab.Memory == nil || state.ConversationID == "" {
		return nil
	}
	recent, err := o.collab.Memory.Recent(ctx, state.ConversationID, o.memoryLimit)
	if err != nil {
		storageErr := &core.StorageError{Op: "memory snapshot", Err: err}
		state.AddWarning(storageErr.Error())
		return nil
	}
	for _, msg := range recent {
		state.Context = append(state.Context, core.Snippet{
			ID:      msg.ID,
			Source:  "memory",
			Content: fmt.Sprintf("%s: %s", msg.Role, msg.Content),
		})
	}
	return nil
}

// transcribe converts voice input to text. Failure is fatal: without text
// there is nothing to route. The audio payload stays off the state record so
// checkpoints remain small.
func (o *Orchestrator) transcribe(ctx context.Context, state *core.AgentState, audio []byte, mimeType string) error {
	if o.collab.Transcriber == nil {
		return &core.TranscriptionError{Err: errors.New("no transcriber configured")}
	}
	text, err := o.collab.Transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return &core.TranscriptionError{Err: err}
	}
	if state.InputText != "" {
		state.InputText += "\n"
	}
	state.InputText += text
	return nil
}

func (o *Orchestrator) route(ctx context.Context, state *core.AgentState, _ *stream.Channel) error {
	o.router.Route(ctx, state)
	return nil
}

func (o *Orchestrator) wantsRetrieval(state *core.AgentState) bool {
	if state.Routing == nil || o.collab.Retriever == nil {
		return false
	}
	return state.Routing.Target == core.TargetMimir || state.Routing.Target == core.TargetDiscussion
}

// retrieveContext merges knowledge search results into the state context.
// Retrieval being down degrades to a warning; the agents just see less.
func (o *Orchestrator) retrieveContext(ctx context.Context, state *core.AgentState, _ *stream.Channel) error {
	snippets, err := o.collab.Retriever.Search(ctx, state.InputText, o.retrievalLimit)
	if err != nil {
		state.AddWarning(fmt.Sprintf("context retrieval failed: %v", err))
		return nil
	}
	state.Context = append(state.Context, snippets...)
	return nil
}

// execute dispatches to the routed agent or the discussion engine, retrying
// agent execution failures with bounded backoff. State is restored from a
// pre-attempt snapshot between retries so a half-finished attempt cannot
// leak turns or tool calls into the final state.
func (o *Orchestrator) execute(ctx context.Context, state *core.AgentState, ch *stream.Channel) error {
	snapshot, err := state.Marshal()
	if err != nil {
		return &core.AgentExecutionError{Agent: state.Routing.Target, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			restored, restoreErr := core.UnmarshalState(snapshot)
			if restoreErr == nil {
				*state = *restored
			}
			if !o.sleep(ctx, o.backoffFor(attempt)) {
				return ctx.Err()
			}
			o.logger.Info("workflow.execute.retry", "attempt", attempt, "session_id", state.SessionID)
		}

		lastErr = o.executeOnce(ctx, state, ch)
		if lastErr == nil {
			return nil
		}

		var agentErr *core.AgentExecutionError
		if !errors.As(lastErr, &agentErr) || ctx.Err() != nil {
			// Only agent execution failures are retryable.
			return lastErr
		}
		o.logger.Warn("workflow.execute.attempt_failed", "attempt", attempt, "error", lastErr.Error())
	}
	return lastErr
}

func (o *Orchestrator) executeOnce(ctx context.Context, state *core.AgentState, ch *stream.Channel) error {
	in := agent.Input{
		SessionID: state.SessionID,
		UserText:  state.InputText,
		Context:   state.Context,
	}

	state.AgentUsed = state.Routing.Target

	switch state.Routing.Target {
	case core.TargetDiscussion:
		outcome, err := o.discussion.Run(ctx, state, in, ch)
		if err != nil {
			return err
		}
		state.FinalOutput = outcome.FinalAnswer
		o.accountUsage(state, o.plume.ModelInfo().Name, outcome.Usage)
		o.metrics.DiscussionTurns.Observe(float64(len(outcome.Transcript)))
		return nil

	case core.TargetMimir:
		return o.executeSolo(ctx, state, o.mimir, in, ch)

	default:
		return o.executeSolo(ctx, state, o.plume, in, ch)
	}
}

func (o *Orchestrator) executeSolo(ctx context.Context, state *core.AgentState, a *agent.Agent, in agent.Input, ch *stream.Channel) error {
	result, err := a.Respond(ctx, state, in, ch)
	if err != nil {
		return err
	}
	state.FinalOutput = result.Content
	state.InvolveAgent(a.Role())
	ch.Emit(core.NewAgentMessageEvent(a.Role(), result.Content))
	o.accountUsage(state, a.ModelInfo().Name, result.Usage)
	return nil
}

// store persists the exchange; failures downgrade to warnings.
func (o *Orchestrator) store(ctx context.Context, state *core.AgentState, _ *stream.Channel) error {
	agentRole := state.AgentUsed

	if o.collab.Notes != nil && state.ConversationID != "" {
		userMsg := core.Message{
			ID:             core.NewID(),
			ConversationID: state.ConversationID,
			Role:           "user",
			Content:        state.InputText,
			Created:        time.Now().UTC(),
		}
		agentMsg := core.Message{
			ID:             core.NewID(),
			ConversationID: state.ConversationID,
			Role:           "agent",
			Agent:          agentRole,
			Content:        state.FinalOutput,
			Created:        time.Now().UTC(),
		}
		for _, msg := range []core.Message{userMsg, agentMsg} {
			if err := o.collab.Notes.AppendMessage(ctx, msg); err != nil {
				storageErr := &core.StorageError{Op: "append message", Err: err}
				state.AddWarning(storageErr.Error())
				o.logger.Warn("workflow.store_failed", "error", err.Error())
				break
			}
		}
	}

	if o.collab.Memory != nil && state.ConversationID != "" {
		msg := core.Message{
			ID:             core.NewID(),
			ConversationID: state.ConversationID,
			Role:           "agent",
			Agent:          agentRole,
			Content:        state.FinalOutput,
			Created:        time.Now().UTC(),
		}
		if err := o.collab.Memory.Record(ctx, msg); err != nil {
			storageErr := &core.StorageError{Op: "memory record", Err: err}
			state.AddWarning(storageErr.Error())
		}
	}
	return nil
}

// finalize assembles the terminal complete event.
func (o *Orchestrator) finalize(state *core.AgentState, ch *stream.Channel, started time.Time) error {
	result := &core.FinalResult{
		Response:         state.FinalOutput,
		AgentUsed:        state.AgentUsed,
		AgentsInvolved:   state.AgentsInvolved,
		TokensUsed:       state.TokensUsed,
		Cost:             state.Cost,
		ClickableObjects: state.ClickableObjects(),
		ProcessingMS:     time.Since(started).Milliseconds(),
		Warnings:         state.Warnings,
	}
	ch.Emit(core.NewCompleteEvent(result))
	return nil
}

func (o *Orchestrator) accountUsage(state *core.AgentState, modelName string, usage model.TokenUsage) {
	state.TokensUsed += usage.TotalTokens
	spent := o.cost.Record(state.SessionID, modelName, usage)
	state.Cost += spent
	o.metrics.TokensTotal.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	o.metrics.TokensTotal.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	o.metrics.CostTotal.Add(spent)
}

func (o *Orchestrator) observeRequest(state *core.AgentState, started time.Time, outcome string) {
	target := "unrouted"
	if state.Routing != nil {
		target = state.Routing.Target
	}
	o.metrics.RequestsTotal.WithLabelValues(target, outcome).Inc()
	o.metrics.RequestDuration.WithLabelValues(target).Observe(time.Since(started).Seconds())
	for _, tc := range state.ToolCalls {
		o.metrics.ToolCallsTotal.WithLabelValues(tc.Tool, string(tc.Status)).Inc()
	}
}

// backoffFor doubles the base per retry: attempt 2 waits one base, attempt 3
// waits two, and so on.
func (o *Orchestrator) backoffFor(attempt int) time.Duration {
	return o.retryBackoff * time.Duration(1<<(attempt-2))
}

// sleep waits d or until ctx is cancelled, reporting whether the full wait
// elapsed.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
