package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
)

// Mount runs the mount pipeline: validate the raw action name, apply the
// session payload, run the pre-mount hook, dispatch to the registered mount
// action, normalize. The validation step is unconditional; every step after
// applySession is gated by the termination marker.
func (p *Pipeline) Mount(ctx context.Context, rawAction string, params domain.Params, sess domain.Session) (domain.Envelope, error) {
	started := time.Now()

	key, err := p.registry.ResolveAction(rawAction)
	if err != nil {
		p.logger.Warn("mount rejected", "controller", p.controller, "err", err)
		p.emitReject(ctx, domain.RejectAction, rawAction)
		return domain.Envelope{}, err
	}

	state := p.applySession(ctx, domain.NewState(), sess)

	state = domain.UnlessRedirected(state, func(s *domain.State) *domain.State {
		return p.beforeActionMount(ctx, s, key, params)
	})

	var out domain.Outcome = state
	if !state.Redirected() {
		out, err = p.DispatchAction(ctx, state, key, params)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("mount %q failed: %w", key, err)
		}
		if out == nil {
			out = state
		}
	}

	env := normalize(out, domain.DispositionContinue)
	p.emitMount(ctx, string(key), env, time.Since(started))
	return env, nil
}

// DispatchAction is the default mount dispatch: look up the handler for the
// validated key and invoke it. Exposed so an ActionMount override can
// delegate to it explicitly.
func (p *Pipeline) DispatchAction(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) (domain.Outcome, error) {
	if p.actionMount != nil {
		return p.actionMount(ctx, s, key, params, p.dispatchAction)
	}
	return p.dispatchAction(ctx, s, key, params)
}

func (p *Pipeline) dispatchAction(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) (domain.Outcome, error) {
	fn, ok := p.registry.ActionHandler(key)
	if !ok {
		// Keys only come from ResolveAction, so this indicates a forged key.
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, key)
	}
	return fn(ctx, s, params)
}
