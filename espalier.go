package espalier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/internal/runtime"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/espalier/pkg/registry"
)

// Controller is the high-level entry point of the Espalier library: a named
// set of mount actions and event handlers trained along the fixed dispatch
// pipeline. A Controller is immutable after New and shared read-only across
// all sessions of its type; the host serializes dispatch per session.
//
// Handlers are synchronous. A handler that wants long-running work must
// schedule it in the background, return immediately, and have the result
// delivered later as a new event into HandleEvent.
type Controller struct {
	name     string
	pipeline *runtime.Pipeline
	views    ports.ViewResolver
	render   domain.RenderOverride
	logger   *slog.Logger
}

type config struct {
	builder      *registry.Builder
	pipelineOpts []runtime.Option
	views        ports.ViewResolver
	render       domain.RenderOverride
	logger       *slog.Logger
}

// Option defines a functional option for configuring a Controller.
type Option func(*config)

// MountAction declares a mount action: a handler invoked once, when a
// session is first established for the given action name.
func MountAction(name string, fn domain.HandlerFunc) Option {
	return func(c *config) {
		c.builder.MountAction(name, fn)
	}
}

// Event declares an event handler: invoked each time a matching named event
// arrives during the session's life.
func Event(name string, fn domain.HandlerFunc) Option {
	return func(c *config) {
		c.builder.Event(name, fn)
	}
}

// WithApplySession overrides the session application step of the mount
// pipeline. The default is identity.
func WithApplySession(h domain.SessionHook) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithApplySession(h))
	}
}

// WithBeforeActionMount overrides the pre-mount hook. The default is identity.
func WithBeforeActionMount(h domain.StepHook) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithBeforeActionMount(h))
	}
}

// WithActionMount overrides the mount dispatch step. The override receives
// the default dispatch as next and may delegate to it.
func WithActionMount(h domain.DispatchOverride) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithActionMount(h))
	}
}

// WithBeforeEventHandler overrides the pre-event hook. The default is identity.
func WithBeforeEventHandler(h domain.StepHook) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithBeforeEventHandler(h))
	}
}

// WithEventHandler overrides the event dispatch step. The override receives
// the default dispatch as next and may delegate to it.
func WithEventHandler(h domain.DispatchOverride) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithEventHandler(h))
	}
}

// WithRender overrides the render hook. The conventional resolution stays
// reachable through next.
func WithRender(h domain.RenderOverride) Option {
	return func(c *config) {
		c.render = h
	}
}

// WithViewResolver injects the view source used by the default render hook.
func WithViewResolver(vr ports.ViewResolver) Option {
	return func(c *config) {
		c.views = vr
	}
}

// WithLogger sets a custom structured logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.pipelineOpts = append(c.pipelineOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// New builds a Controller. Registration is validated here, once: a name
// declared under both roles or twice under one role fails New rather than
// being resolved by implicit precedence at dispatch time.
func New(name string, opts ...Option) (*Controller, error) {
	if name == "" {
		return nil, fmt.Errorf("controller name is required")
	}

	cfg := &config{builder: registry.NewBuilder()}
	for _, opt := range opts {
		opt(cfg)
	}

	reg, err := cfg.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", name, err)
	}

	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	logger := cfg.logger.With("controller", name)

	pipelineOpts := append([]runtime.Option{runtime.WithLogger(logger)}, cfg.pipelineOpts...)

	return &Controller{
		name:     name,
		pipeline: runtime.New(name, reg, pipelineOpts...),
		views:    cfg.views,
		render:   cfg.render,
		logger:   logger,
	}, nil
}

// Name returns the controller name.
func (c *Controller) Name() string {
	return c.name
}

// Actions returns the registered mount-action names, sorted.
func (c *Controller) Actions() []string {
	return c.pipeline.Registry().Actions()
}

// Events returns the registered event names, sorted.
func (c *Controller) Events() []string {
	return c.pipeline.Registry().Events()
}

// Mount runs the mount pipeline for a session's initial mount.
func (c *Controller) Mount(ctx context.Context, rawAction string, params domain.Params, sess domain.Session) (domain.Envelope, error) {
	return c.pipeline.Mount(ctx, rawAction, params, sess)
}

// HandleEvent runs the event pipeline against the current persisted state.
func (c *Controller) HandleEvent(ctx context.Context, rawEvent string, params domain.Params, state *domain.State) (domain.Envelope, error) {
	return c.pipeline.HandleEvent(ctx, rawEvent, params, state)
}

// Render resolves the renderable output for a registered action. The action
// name is validated even though it usually comes from a trusted router.
func (c *Controller) Render(ctx context.Context, rawAction string, state *domain.State) (*domain.Rendered, error) {
	key, err := c.pipeline.Registry().ResolveAction(rawAction)
	if err != nil {
		return nil, err
	}
	if c.render != nil {
		return c.render(ctx, key, state, c.RenderDefault)
	}
	return c.RenderDefault(ctx, key, state)
}

// RenderDefault is the conventional render hook: resolve the view named
// after the controller (strip the "Live" suffix, append "View") and ask it
// for the template named after the action.
func (c *Controller) RenderDefault(ctx context.Context, key domain.HandlerKey, state *domain.State) (*domain.Rendered, error) {
	if c.views == nil {
		return nil, fmt.Errorf("controller %s: no view resolver configured", c.name)
	}

	viewName := ViewName(c.name)
	view, err := c.views.Resolve(ctx, viewName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve view %s: %w", viewName, err)
	}

	content, err := view.Template(ctx, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s/%s: %w", viewName, key, err)
	}

	return &domain.Rendered{
		View:     viewName,
		Template: string(key),
		Content:  content,
	}, nil
}

// ViewName derives the conventional view identifier from a controller name:
// the fixed "Live" suffix is stripped and "View" appended, so "ArticlesLive"
// resolves to "ArticlesView".
func ViewName(controller string) string {
	return strings.TrimSuffix(controller, "Live") + "View"
}

// Ensure Controller satisfies the dispatcher port.
var _ ports.LiveDispatcher = (*Controller)(nil)
