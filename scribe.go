// Package scribe provides a high-level façade over the workflow orchestrator
// and its collaborators (notes, memory, retrieval, logging) enabling rapid
// construction of the two-agent note system. Most applications interact with
// this package by:
//  1. Creating a Scribe via New() (optionally overriding default in-memory services)
//  2. Invoking requests asynchronously (Invoke) or synchronously (InvokeSync)
//
// The façade delegates orchestration to workflow.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// note store, real model adapters and a structured logger.
package scribe

import (
	"context"

	"github.com/AdamTheFirstGitman/scribe/agent"
	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/discussion"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/memory"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/retrieval"
	"github.com/AdamTheFirstGitman/scribe/router"
	"github.com/AdamTheFirstGitman/scribe/stream"
	"github.com/AdamTheFirstGitman/scribe/tool"
	"github.com/AdamTheFirstGitman/scribe/workflow"
)

// Options configures the Scribe instance.
type Options struct {
	// PlumeModel drives the restitution agent. Defaults to a mock.
	PlumeModel model.Model
	// MimirModel drives the archivist agent. Defaults to a mock.
	MimirModel model.Model

	// Notes persists notes and conversations. Nil disables persistence;
	// the workflow downgrades storage to warnings.
	Notes core.NoteStore
	// Memory holds conversational history. Defaults to in-memory.
	Memory core.MemoryStore
	// Transcriber converts voice input. Nil rejects voice requests.
	Transcriber core.Transcriber

	// QueueSize bounds each request's event queue.
	QueueSize int

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Scribe is the high-level façade aggregating the orchestrator and services.
type Scribe struct {
	opts Options
	orch *workflow.Orchestrator
}

// New creates a Scribe with optional overrides. Any unset service is
// initialized with an in-memory or mock implementation.
func New(optFns ...func(o *Options)) (*Scribe, error) {
	opts := Options{
		PlumeModel: model.NewMockModel("plume-mock"),
		MimirModel: model.NewMockModel("mimir-mock"),
		Memory:     memory.NewInMemoryStore(),
		QueueSize:  stream.DefaultQueueSize,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry()
	if err := tool.RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	var retriever core.Retriever
	if opts.Notes != nil {
		retriever = retrieval.NewLocal(opts.Notes)
	}

	deps := tool.Deps{Notes: opts.Notes, Retriever: retriever}
	logOpt := func(o *agent.Options) { o.Logger = opts.Logger }
	plume := agent.NewPlume(opts.PlumeModel, registry, deps, logOpt)
	mimir := agent.NewMimir(opts.MimirModel, registry, deps, logOpt)
	disc := discussion.NewEngine(plume, mimir, discussion.WithLogger(opts.Logger))

	orch := workflow.New(
		router.New(router.WithLogger(opts.Logger)),
		plume, mimir, disc,
		workflow.Collaborators{
			Transcriber: opts.Transcriber,
			Retriever:   retriever,
			Memory:      opts.Memory,
			Notes:       opts.Notes,
		},
		func(o *workflow.Options) { o.Logger = opts.Logger },
	)

	return &Scribe{opts: opts, orch: orch}, nil
}

// Invoke starts an asynchronous orchestration. It validates the request,
// then runs the workflow in its own goroutine; the returned channel carries
// the event stream and closes when the run finishes.
func (s *Scribe) Invoke(ctx context.Context, req core.OrchestrationRequest) (*stream.Channel, error) {
	if err := s.orch.Validate(&req); err != nil {
		return nil, err
	}
	ch := stream.NewChannel(s.opts.QueueSize)
	go s.orch.Run(ctx, req, ch)
	return ch, nil
}

// InvokeSync is a synchronous helper that drains the stream, accumulates
// events and returns them along with the final result.
func (s *Scribe) InvokeSync(ctx context.Context, req core.OrchestrationRequest) ([]core.StreamEvent, *core.FinalResult, error) {
	ch, err := s.Invoke(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	var events []core.StreamEvent
	var result *core.FinalResult
	collect := func(ev core.StreamEvent) {
		events = append(events, ev)
		if ev.Type == core.EventComplete {
			if fr, ok := ev.Result.(*core.FinalResult); ok {
				result = fr
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return events, result, ctx.Err()
		case ev := <-ch.Events():
			collect(ev)
		case <-ch.Done():
			for {
				ev, ok := ch.TryNext()
				if !ok {
					return events, result, nil
				}
				collect(ev)
			}
		}
	}
}
