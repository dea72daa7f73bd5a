package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/config"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/internal/metrics"
	"github.com/opencode-ai/toolrun/internal/permission"
	"github.com/opencode-ai/toolrun/internal/session"
	"github.com/opencode-ai/toolrun/internal/storage"
	"github.com/opencode-ai/toolrun/internal/tool"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// RequiredTools must be registered for the runtime to start.
var RequiredTools = []string{"read", "write", "edit", "multiedit"}

// Runtime is the programmatic surface of the tool runtime: session
// management plus invocation, wired from one configuration.
type Runtime struct {
	executor *Executor
	sessions *session.Service
	registry *tool.Registry
	metrics  *metrics.Recorder
	storage  *storage.Storage
}

// RuntimeOptions overrides parts of the wiring.
type RuntimeOptions struct {
	// Fs is the filesystem tools operate on and session directories are
	// validated against. Defaults to the OS filesystem. Permission checks
	// always consult the OS tree, so a non-OS Fs must mirror it.
	Fs afero.Fs

	// Storage overrides the configured session storage. Nil uses the
	// configured path unless persistence is disabled.
	Storage *storage.Storage

	// Metrics overrides the recorder. Nil creates a new one.
	Metrics *metrics.Recorder
}

// NewRuntime builds a Runtime from cfg and restores persisted sessions.
// Registry misconfiguration and invalid configuration are fatal.
func NewRuntime(ctx context.Context, cfg *types.Config, opts RuntimeOptions) (*Runtime, error) {
	if cfg == nil {
		cfg = &types.Config{}
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New()
	}

	registry := tool.ConfiguredRegistry(fs, cfg)
	if err := registry.Require(RequiredTools...); err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	validator, err := permission.FromConfig(cfg.Permission)
	if err != nil {
		return nil, fmt.Errorf("permission config: %w", err)
	}

	timeout, err := config.DefaultTimeout(cfg)
	if err != nil {
		return nil, err
	}

	store := opts.Storage
	if store == nil {
		if path := config.StoragePath(cfg); path != "" {
			store = storage.New(path)
		}
	}

	sessions := session.NewService(store, session.WithMetrics(rec), session.WithFs(fs))
	if err := sessions.Restore(ctx); err != nil {
		// Partial restores keep every readable record.
		logging.Warn().Err(err).Msg("some sessions could not be restored")
	}

	return &Runtime{
		executor: New(registry, sessions, validator, WithMetrics(rec), WithDefaultTimeout(timeout)),
		sessions: sessions,
		registry: registry,
		metrics:  rec,
		storage:  store,
	}, nil
}

// CreateSession creates a session rooted at directory, optionally under
// parentID.
func (r *Runtime) CreateSession(ctx context.Context, directory, parentID string) (*types.Session, error) {
	return r.sessions.Create(ctx, directory, parentID)
}

// GetSession returns a session.
func (r *Runtime) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	return r.sessions.Get(ctx, sessionID)
}

// ListSessions returns every session ordered by creation.
func (r *Runtime) ListSessions(ctx context.Context) ([]*types.Session, error) {
	return r.sessions.List(ctx)
}

// DeleteSession closes a session.
func (r *Runtime) DeleteSession(ctx context.Context, sessionID string) error {
	return r.sessions.Delete(ctx, sessionID)
}

// SessionChildren returns the direct children of a session.
func (r *Runtime) SessionChildren(ctx context.Context, sessionID string) ([]*types.Session, error) {
	return r.sessions.Children(ctx, sessionID)
}

// Invoke runs one tool. deadline may be nil.
func (r *Runtime) Invoke(ctx context.Context, sessionID, toolName string, params map[string]any, deadline *time.Time) (types.ToolResult, error) {
	return r.executor.Invoke(ctx, types.ToolInvocation{
		Tool:       toolName,
		Parameters: params,
		SessionID:  sessionID,
		Deadline:   deadline,
	})
}

// InvokeChain runs steps sequentially.
func (r *Runtime) InvokeChain(ctx context.Context, sessionID string, steps []types.ToolInvocation) []types.ToolResult {
	return r.executor.InvokeChain(ctx, sessionID, steps)
}

// InvokeBatch runs read-only steps concurrently.
func (r *Runtime) InvokeBatch(ctx context.Context, sessionID string, steps []types.ToolInvocation) []types.ToolResult {
	return r.executor.InvokeBatch(ctx, sessionID, steps)
}

// Tools returns the registered tool descriptors.
func (r *Runtime) Tools() []types.ToolDescriptor {
	return r.registry.Descriptors()
}

// Executor returns the underlying executor.
func (r *Runtime) Executor() *Executor {
	return r.executor
}

// Metrics returns the metrics recorder.
func (r *Runtime) Metrics() *metrics.Recorder {
	return r.metrics
}

// Storage returns the session store, or nil when persistence is disabled.
func (r *Runtime) Storage() *storage.Storage {
	return r.storage
}
