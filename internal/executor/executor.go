// Package executor runs tool invocations inside sessions.
//
// Every invocation goes through the same pipeline: session lookup, tool
// resolution, parameter validation, authorization of every target path,
// then execution under the invocation deadline. Failures before execution
// never touch the file system.
package executor

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/toolrun/internal/event"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/internal/metrics"
	"github.com/opencode-ai/toolrun/internal/permission"
	"github.com/opencode-ai/toolrun/internal/session"
	"github.com/opencode-ai/toolrun/internal/tool"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// MaxBatchSize is the maximum number of invocations run by one batch.
const MaxBatchSize = 10

// Executor runs invocations.
type Executor struct {
	registry  *tool.Registry
	sessions  *session.Service
	validator *permission.Validator
	metrics   *metrics.Recorder

	defaultTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records invocation metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithDefaultTimeout applies a timeout to invocations that carry no
// deadline. Zero disables it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) { e.defaultTimeout = d }
}

// New creates an Executor.
func New(registry *tool.Registry, sessions *session.Service, validator *permission.Validator, opts ...Option) *Executor {
	e := &Executor{
		registry:  registry,
		sessions:  sessions,
		validator: validator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the tool registry.
func (e *Executor) Registry() *tool.Registry {
	return e.registry
}

// Sessions returns the session service.
func (e *Executor) Sessions() *session.Service {
	return e.sessions
}

// prepared is an invocation that passed every pre-execution check.
type prepared struct {
	tool tool.Tool
	desc types.ToolDescriptor
	call *tool.Call
}

// Invoke runs one invocation. The result is always populated. The error is
// non-nil only when the invocation was rejected before execution (unknown
// session or tool, invalid parameters, permission denied); it carries the
// same kind as result.Error.
func (e *Executor) Invoke(ctx context.Context, inv types.ToolInvocation) (types.ToolResult, error) {
	start := time.Now()
	callID := generateCallID()

	p, err := e.prepare(ctx, inv, callID)
	if err != nil {
		return e.finish(inv, callID, start, nil, err), err
	}

	event.Publish(event.Event{
		Type: event.ToolInvoked,
		Data: event.ToolInvokedData{SessionID: inv.SessionID, CallID: callID, Tool: inv.Tool},
	})

	ctx, cancel := e.withDeadline(ctx, inv.Deadline)
	defer cancel()

	out, err := p.tool.Execute(ctx, p.call)
	if err != nil && ctx.Err() != nil && types.KindOf(err) != types.KindCancelled {
		err = types.CancelledError(ctx)
	}
	return e.finish(inv, callID, start, out, err), nil
}

func (e *Executor) prepare(ctx context.Context, inv types.ToolInvocation, callID string) (*prepared, error) {
	sess, err := e.sessions.Get(ctx, inv.SessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, types.NewError(types.KindInvalidParameters, "session closed")
	}

	t, err := e.registry.Resolve(inv.Tool)
	if err != nil {
		return nil, err
	}
	desc := t.Describe()

	params := inv.Parameters
	if params == nil {
		params = map[string]any{}
	}
	if err := t.ValidateParameters(params); err != nil {
		return nil, types.AsError(err, types.KindInvalidParameters)
	}

	paths := make(map[string]string)
	for _, target := range t.Targets(params) {
		resolved, err := e.validator.Authorize(sess.Directory, target.Path, desc.SideEffect)
		if err != nil {
			e.metrics.RecordDenial(inv.Tool)
			return nil, err
		}
		paths[target.Path] = resolved
	}

	return &prepared{
		tool: t,
		desc: desc,
		call: &tool.Call{
			SessionID: sess.ID,
			CallID:    callID,
			WorkDir:   sess.Directory,
			Params:    params,
			Paths:     paths,
		},
	}, nil
}

func (e *Executor) withDeadline(ctx context.Context, deadline *time.Time) (context.Context, context.CancelFunc) {
	if deadline != nil {
		return context.WithDeadline(ctx, *deadline)
	}
	if e.defaultTimeout > 0 {
		return context.WithTimeout(ctx, e.defaultTimeout)
	}
	return context.WithCancel(ctx)
}

// finish builds the result and emits the log line, metrics and completion
// event.
func (e *Executor) finish(inv types.ToolInvocation, callID string, start time.Time, out *tool.Result, err error) types.ToolResult {
	result := types.ToolResult{
		Tool:     inv.Tool,
		CallID:   callID,
		Outcome:  types.OutcomeSuccess,
		Duration: time.Since(start),
	}
	if out != nil {
		result.Title = out.Title
		result.Output = out.Output
		result.Payload = out.Payload
	}
	if err != nil {
		terr := types.AsError(err, types.KindIOFailure)
		result.Outcome = types.OutcomeFailure
		if terr.Kind == types.KindCancelled {
			result.Outcome = types.OutcomeCancelled
		}
		result.Error = &types.ToolError{
			Kind:   terr.Kind,
			Reason: terr.Reason,
			Detail: terr.Error(),
		}
	}

	e.metrics.RecordInvocation(inv.Tool, string(result.Outcome), result.Duration)

	logger := logging.Invocation(inv.SessionID, callID, inv.Tool)
	logEvent := logger.Info()
	if result.Outcome == types.OutcomeFailure {
		logEvent = logger.Warn()
	}
	logEvent = logEvent.
		Str("outcome", string(result.Outcome)).
		Dur("duration", result.Duration)
	if result.Error != nil {
		logEvent = logEvent.Str("kind", string(result.Error.Kind)).Str("error", result.Error.Detail)
	}
	logEvent.Msg("tool invocation")

	event.Publish(event.Event{
		Type: event.ToolCompleted,
		Data: event.ToolCompletedData{
			SessionID: inv.SessionID,
			CallID:    callID,
			Tool:      inv.Tool,
			Outcome:   result.Outcome,
			Duration:  result.Duration,
			Error:     result.Error,
		},
	})
	return result
}

// InvokeChain runs steps strictly in order inside one session. Each step
// observes every commit of the steps before it. After a failed or cancelled
// step the remaining steps are skipped unless that step set
// ContinueOnError. One result is returned per step, in input order.
func (e *Executor) InvokeChain(ctx context.Context, sessionID string, steps []types.ToolInvocation) []types.ToolResult {
	results := make([]types.ToolResult, len(steps))
	stopped := false
	for i, step := range steps {
		if stopped {
			results[i] = skipped(step)
			continue
		}
		step.SessionID = sessionID
		results[i], _ = e.Invoke(ctx, step)
		if results[i].Stops() && !step.ContinueOnError {
			stopped = true
		}
	}
	return results
}

// InvokeBatch runs up to MaxBatchSize read-only invocations concurrently.
// Mutating tools and invocations past the limit fail with
// InvalidParameters without running.
func (e *Executor) InvokeBatch(ctx context.Context, sessionID string, steps []types.ToolInvocation) []types.ToolResult {
	results := make([]types.ToolResult, len(steps))

	g, gctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		step.SessionID = sessionID
		if i >= MaxBatchSize {
			results[i] = rejected(step, types.NewError(types.KindInvalidParameters, "maximum of %d invocations per batch", MaxBatchSize))
			continue
		}
		if desc, ok := e.registry.Descriptor(step.Tool); ok && desc.SideEffect != types.ReadOnly {
			results[i] = rejected(step, types.NewError(types.KindInvalidParameters, "tool %q is not allowed in a batch", step.Tool))
			continue
		}
		g.Go(func() error {
			results[i], _ = e.Invoke(gctx, step)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func skipped(step types.ToolInvocation) types.ToolResult {
	return types.ToolResult{Tool: step.Tool, Outcome: types.OutcomeSkipped}
}

func rejected(step types.ToolInvocation, err *types.Error) types.ToolResult {
	return types.ToolResult{
		Tool:    step.Tool,
		Outcome: types.OutcomeFailure,
		Error:   &types.ToolError{Kind: err.Kind, Reason: err.Reason, Detail: err.Error()},
	}
}

func generateCallID() string {
	return "call_" + ulid.Make().String()
}
