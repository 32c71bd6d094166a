package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AdamTheFirstGitman/scribe/model"
)

// DefaultCallTimeout bounds a single tool invocation unless the registry is
// configured otherwise.
const DefaultCallTimeout = 30 * time.Second

// Registry maps tool names to implementations and declares, per agent role,
// which tools that role may invoke. Registration happens at startup; after
// that the registry is read-only and safe for concurrent use across requests.
//
// Tool sets are disjoint by capability: the restitution role gets authoring
// tools, the archivist role gets discovery tools. The registry only checks
// that a requested tool is in the invoking role's allowed set; deciding when
// to fire a tool is the agent's job.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	roles   map[string]map[string]bool
	timeout time.Duration
}

// NewRegistry creates an empty registry with the default per-call timeout.
func NewRegistry(optFns ...func(r *Registry)) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool),
		roles:   make(map[string]map[string]bool),
		timeout: DefaultCallTimeout,
	}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// WithCallTimeout overrides the per-invocation timeout. Zero disables it.
func WithCallTimeout(d time.Duration) func(r *Registry) {
	return func(r *Registry) { r.timeout = d }
}

// Register adds a tool and grants the given roles permission to invoke it.
// Registering the same name twice is a configuration error.
func (r *Registry) Register(t Tool, roles ...string) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("registry: tool must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("registry: duplicate tool %q", name)
	}
	r.tools[name] = t
	for _, role := range roles {
		if r.roles[role] == nil {
			r.roles[role] = make(map[string]bool)
		}
		r.roles[role][name] = true
	}
	return nil
}

// MustRegister is Register for wiring code where a failure is a programming error.
func (r *Registry) MustRegister(t Tool, roles ...string) {
	if err := r.Register(t, roles...); err != nil {
		panic(err)
	}
}

// ToolsFor returns the tools the given role may invoke, sorted by name so the
// declarations sent to models are stable across requests.
func (r *Registry) ToolsFor(role string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.roles[role]))
	for name := range r.roles[role] {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// DefinitionsFor returns model-facing tool declarations for the given role.
func (r *Registry) DefinitionsFor(role string) []model.ToolDefinition {
	tools := r.ToolsFor(role)
	defs := make([]model.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Validate checks the role table after wiring: every granted tool must be
// registered and no tool may belong to more than one role, keeping the
// capability sets disjoint.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner := make(map[string]string)
	roles := make([]string, 0, len(r.roles))
	for role := range r.roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		for name := range r.roles[role] {
			if _, exists := r.tools[name]; !exists {
				return fmt.Errorf("registry: role %q granted unregistered tool %q", role, name)
			}
			if prev, taken := owner[name]; taken {
				return fmt.Errorf("registry: tool %q granted to both %q and %q", name, prev, role)
			}
			owner[name] = role
		}
	}
	return nil
}

// Allowed reports whether the role may invoke the named tool.
func (r *Registry) Allowed(role, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[role][name]
}

// Invoke executes a tool on behalf of toolCtx.Agent(). Out-of-scope calls are
// rejected with FORBIDDEN before the tool runs. The call is bounded by the
// registry timeout; on expiry a TIMEOUT error is returned and the runaway
// goroutine is abandoned to its cancelled context. Panics inside the tool are
// contained and surfaced as EXECUTION_ERROR.
func (r *Registry) Invoke(toolCtx *Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	t, exists := r.tools[name]
	allowed := r.roles[toolCtx.Agent()][name]
	timeout := r.timeout
	r.mu.RUnlock()

	if !exists {
		return nil, NewToolError(name, "unknown tool", CodeForbidden)
	}
	if !allowed {
		return nil, NewToolError(name, fmt.Sprintf("tool not allowed for agent %q", toolCtx.Agent()), CodeForbidden)
	}

	ctx := toolCtx.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type callResult struct {
		value any
		err   error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- callResult{err: NewToolError(name, fmt.Sprintf("tool panicked: %v", rec), CodeExecution)}
			}
		}()
		value, err := t.Call(toolCtx.withContext(ctx), args)
		done <- callResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewToolError(name, fmt.Sprintf("tool call exceeded %s", timeout), CodeTimeout)
		}
		return nil, NewToolError(name, "tool call cancelled", CodeExecution)
	}
}
