package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
)

// HandleEvent runs the event pipeline against the current persisted session
// state. Resolution of the raw name runs first and unconditionally; it is
// also the resource-exhaustion guard, so it must reject before any handler
// key exists for the string.
func (p *Pipeline) HandleEvent(ctx context.Context, rawEvent string, params domain.Params, state *domain.State) (domain.Envelope, error) {
	started := time.Now()

	key, err := p.registry.ResolveEvent(rawEvent)
	if err != nil {
		p.logger.Warn("event rejected", "controller", p.controller, "err", err)
		p.emitReject(ctx, domain.RejectEvent, rawEvent)
		return domain.Envelope{}, err
	}

	if state == nil {
		state = domain.NewState()
	}

	// A state persisted mid-redirect re-enters clean: the marker cancels a
	// single pipeline run, not the session.
	if state.Redirected() {
		state = state.ClearRedirect()
	}

	state = domain.UnlessRedirected(state, func(s *domain.State) *domain.State {
		return p.beforeEventHandler(ctx, s, key, params)
	})

	var out domain.Outcome = state
	if !state.Redirected() {
		out, err = p.DispatchEvent(ctx, state, key, params)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("event %q failed: %w", key, err)
		}
		if out == nil {
			out = state
		}
	}

	env := normalize(out, domain.DispositionNoFurtherAction)
	p.emitDispatch(ctx, string(key), env, time.Since(started))
	return env, nil
}

// DispatchEvent is the default event dispatch: look up the handler for the
// validated key and invoke it. Exposed so an EventHandler override can
// delegate to it explicitly.
func (p *Pipeline) DispatchEvent(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) (domain.Outcome, error) {
	if p.eventHandler != nil {
		return p.eventHandler(ctx, s, key, params, p.dispatchEvent)
	}
	return p.dispatchEvent(ctx, s, key, params)
}

func (p *Pipeline) dispatchEvent(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) (domain.Outcome, error) {
	fn, ok := p.registry.EventHandler(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, key)
	}
	return fn(ctx, s, params)
}
