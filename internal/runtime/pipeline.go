// Package runtime contains the fixed two-phase dispatch pipelines shared by
// every controller: validate the raw name, apply the pre-hooks gated on the
// termination marker, dispatch to the registered handler, and normalize the
// outcome into a transport envelope.
package runtime

import (
	"context"
	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/registry"
)

// Pipeline executes mount and event dispatch for one controller.
// It holds the frozen registry plus the overridable steps; everything here
// is read-only after construction and safe to share across sessions.
type Pipeline struct {
	controller string
	registry   *registry.Registry

	applySession       domain.SessionHook
	beforeActionMount  domain.StepHook
	actionMount        domain.DispatchOverride
	beforeEventHandler domain.StepHook
	eventHandler       domain.DispatchOverride

	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithApplySession overrides the session application step.
func WithApplySession(h domain.SessionHook) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.applySession = h
		}
	}
}

// WithBeforeActionMount overrides the pre-mount hook.
func WithBeforeActionMount(h domain.StepHook) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.beforeActionMount = h
		}
	}
}

// WithActionMount overrides the mount dispatch step.
func WithActionMount(h domain.DispatchOverride) Option {
	return func(p *Pipeline) {
		p.actionMount = h
	}
}

// WithBeforeEventHandler overrides the pre-event hook.
func WithBeforeEventHandler(h domain.StepHook) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.beforeEventHandler = h
		}
	}
}

// WithEventHandler overrides the event dispatch step.
func WithEventHandler(h domain.DispatchOverride) Option {
	return func(p *Pipeline) {
		p.eventHandler = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(p *Pipeline) {
		p.hooks = h
	}
}

// New creates a pipeline for the given controller and frozen registry.
// Defaults: identity session application, identity pre-hooks, dispatch by
// registered name.
func New(controller string, reg *registry.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		controller:         controller,
		registry:           reg,
		applySession:       identitySession,
		beforeActionMount:  identityStep,
		beforeEventHandler: identityStep,
		logger:             logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry exposes the frozen handler sets for introspection.
func (p *Pipeline) Registry() *registry.Registry {
	return p.registry
}

func identitySession(_ context.Context, s *domain.State, _ domain.Session) *domain.State {
	return s
}

func identityStep(_ context.Context, s *domain.State, _ domain.HandlerKey, _ domain.Params) *domain.State {
	return s
}
